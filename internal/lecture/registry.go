package lecture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/realtime"
	"github.com/studymate/backend/pkg/queue"
)

var (
	// ErrSessionNotFound means the lecture id is unknown.
	ErrSessionNotFound = errors.New("lecture session not found")
	// ErrSessionInactive means the lecture exists but has been stopped.
	ErrSessionInactive = errors.New("lecture session not active")
)

// Tuning holds the per-session buffer parameters.
type Tuning struct {
	FastWindow     time.Duration
	FastWordLimit  int
	SlowFlushCount int
	Retention      time.Duration
}

// sessionState owns everything scoped to one lecture session. The mutex
// serializes fragment processing for this session only; different sessions
// share no mutable state.
type sessionState struct {
	mu         sync.Mutex
	session    *models.LectureSession
	fast       *FastBuffer
	slow       *SlowBuffer
	transcript strings.Builder
}

// Registry tracks live lecture sessions and owns their buffers. Buffers are
// keyed by lecture id and allocated on start, so concurrent lectures can
// never share window state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionState
	tuning   Tuning
	hub      *realtime.Hub
	repo     *Repository  // optional write-behind persistence
	archive  *queue.Queue // optional transcript archival on stop
	logger   *zap.Logger
}

// NewRegistry creates a session registry. repo and archive may be nil.
func NewRegistry(tuning Tuning, hub *realtime.Hub, repo *Repository, archive *queue.Queue, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*sessionState),
		tuning:   tuning,
		hub:      hub,
		repo:     repo,
		archive:  archive,
		logger:   logger,
	}
}

// Start allocates a fresh session with empty fast/slow buffers and announces
// it on the event stream. Persistence failures are logged, never fatal.
func (r *Registry) Start(ctx context.Context, userID, courseID string, materialIDs []string, metadata map[string]string) *models.LectureSession {
	session := &models.LectureSession{
		ID:          uuid.New(),
		UserID:      userID,
		CourseID:    courseID,
		MaterialIDs: materialIDs,
		Metadata:    metadata,
		StartedAt:   time.Now(),
		Active:      true,
	}
	state := &sessionState{
		session: session,
		fast:    NewFastBuffer(r.tuning.FastWindow, r.tuning.FastWordLimit),
		slow:    NewSlowBuffer(r.tuning.SlowFlushCount, r.tuning.Retention),
	}

	r.mu.Lock()
	r.sessions[session.ID] = state
	r.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.InsertSession(ctx, session); err != nil {
			r.logger.Warn("persist session failed", zap.Error(err), zap.String("lecture_id", session.ID.String()))
		}
	}
	if r.hub != nil {
		r.hub.Publish(session.ID, realtime.EventLectureStarted, map[string]any{
			"lectureId": session.ID,
			"courseId":  session.CourseID,
			"startedAt": session.StartedAt,
		})
	}

	r.logger.Info("lecture started",
		zap.String("lecture_id", session.ID.String()),
		zap.String("course_id", courseID),
	)
	return session
}

// Stop marks the session inactive and stamps the end time. Subsequent
// fragments for the session fail fast; in-flight work may complete. The
// accumulated transcript is queued for archival when a queue is configured.
func (r *Registry) Stop(ctx context.Context, lectureID uuid.UUID) (*models.LectureSession, error) {
	state, ok := r.state(lectureID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	state.mu.Lock()
	now := time.Now()
	state.session.Active = false
	state.session.EndedAt = &now
	session := *state.session
	transcript := state.transcript.String()
	// Release the buffered text; the session object itself stays for lookups.
	state.fast.reset()
	state.slow.reset()
	state.transcript.Reset()
	state.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.CloseSession(ctx, lectureID, now); err != nil {
			r.logger.Warn("persist session stop failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
		}
	}
	if r.archive != nil && transcript != "" {
		err := r.archive.EnqueueTranscriptArchive(ctx, queue.TranscriptArchivePayload{
			LectureID:  lectureID,
			CourseID:   session.CourseID,
			Transcript: transcript,
		})
		if err != nil {
			r.logger.Warn("enqueue transcript archive failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
		}
	}
	if r.hub != nil {
		r.hub.Publish(lectureID, realtime.EventLectureStopped, map[string]any{
			"lectureId": lectureID,
			"endedAt":   now,
		})
	}

	r.logger.Info("lecture stopped", zap.String("lecture_id", lectureID.String()))
	return &session, nil
}

// Get returns a copy of the session, or nil when unknown.
func (r *Registry) Get(lectureID uuid.UUID) *models.LectureSession {
	state, ok := r.state(lectureID)
	if !ok {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	session := *state.session
	return &session
}

// SessionState implements realtime.SessionGate for subscription checks.
func (r *Registry) SessionState(lectureID uuid.UUID) (exists, active bool) {
	state, ok := r.state(lectureID)
	if !ok {
		return false, false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return true, state.session.Active
}

func (r *Registry) state(lectureID uuid.UUID) (*sessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.sessions[lectureID]
	return state, ok
}
