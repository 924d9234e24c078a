package lecture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/backend/internal/classify"
	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/realtime"
)

// TextIngestor is the slice of the ingestion pipeline the orchestrator needs.
type TextIngestor interface {
	Ingest(ctx context.Context, text string, metadata map[string]string) (int, error)
}

// Orchestrator joins the two buffer paths per incoming fragment: the slow
// buffer feeds semantic ingestion, the fast buffer feeds live highlight
// classification. The two paths run concurrently and a failure in one never
// suppresses the other.
type Orchestrator struct {
	registry   *Registry
	ingestor   TextIngestor
	classifier classify.Classifier
	hub        *realtime.Hub
	logger     *zap.Logger
}

// NewOrchestrator wires the fragment pipeline. classifier and hub may be nil
// for ingestion-only deployments.
func NewOrchestrator(registry *Registry, ingestor TextIngestor, classifier classify.Classifier, hub *realtime.Hub, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:   registry,
		ingestor:   ingestor,
		classifier: classifier,
		hub:        hub,
		logger:     logger,
	}
}

// OnFragment processes one transcript fragment for an active session.
// Unknown or stopped sessions fail fast with no buffer mutation. Both buffer
// feeds happen under the session lock; the resulting ingestion and
// classification tasks run outside it, concurrently.
func (o *Orchestrator) OnFragment(ctx context.Context, lectureID uuid.UUID, text string, startMs, endMs int64) (models.FragmentResult, error) {
	if text == "" {
		return models.FragmentResult{RagStatus: models.RagStatusBuffering}, nil
	}

	state, ok := o.registry.state(lectureID)
	if !ok {
		return models.FragmentResult{}, ErrSessionNotFound
	}

	state.mu.Lock()
	if !state.session.Active {
		state.mu.Unlock()
		return models.FragmentResult{}, ErrSessionInactive
	}

	state.fast.AddFragment(text)
	state.slow.AddFragment(text)
	if state.transcript.Len() > 0 {
		state.transcript.WriteByte(' ')
	}
	state.transcript.WriteString(text)

	var slowText string
	if state.slow.ShouldFlush() {
		slowText = state.slow.Flush()
	}
	fastText, fastReady := state.fast.FlushIfReady()
	session := *state.session
	state.mu.Unlock()

	result := models.FragmentResult{RagStatus: models.RagStatusBuffering}

	var wg sync.WaitGroup
	if slowText != "" && o.ingestor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			count, err := o.ingestor.Ingest(ctx, slowText, ingestMetadata(&session))
			if err != nil {
				// Ingestion failure is pipeline status, never an exception to
				// the caller. The dequeued window is dropped.
				o.logger.Error("lecture window ingestion failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
				result.RagStatus = models.RagStatusFailed
				return
			}
			result.RagStatus = models.RagStatusIngested
			result.StoredChunks = count
		}()
	}
	if fastReady && fastText != "" && o.classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result.HighlightEmitted = o.classifyAndPublish(ctx, &session, fastText, startMs, endMs)
		}()
	}
	wg.Wait()

	if o.hub != nil {
		o.hub.Publish(lectureID, realtime.EventStatus, result)
	}
	return result, nil
}

// classifyAndPublish runs the highlight decision for a flushed fast window.
// Classifier failures are fail-open: logged and treated as "no highlight".
func (o *Orchestrator) classifyAndPublish(ctx context.Context, session *models.LectureSession, text string, startMs, endMs int64) bool {
	verdict, err := o.classifier.Classify(ctx, text)
	if err != nil {
		o.logger.Warn("highlight classification failed", zap.Error(err), zap.String("lecture_id", session.ID.String()))
		return false
	}
	if !verdict.IsHighlight {
		return false
	}

	excerpt := verdict.Excerpt
	if excerpt == "" {
		excerpt = text
	}
	event := models.HighlightEvent{
		LectureID:      session.ID,
		ChunkID:        fmt.Sprintf("%s-%d", session.ID, time.Now().UnixMilli()),
		Highlight:      true,
		Type:           verdict.Type,
		Text:           excerpt,
		Confidence:     verdict.Confidence,
		TimestampStart: startMs,
		TimestampEnd:   endMs,
	}

	if o.hub != nil {
		o.hub.Publish(session.ID, realtime.EventHighlight, event)
	}
	if o.registry.repo != nil {
		if err := o.registry.repo.InsertHighlight(ctx, &event); err != nil {
			o.logger.Warn("persist highlight failed", zap.Error(err), zap.String("lecture_id", session.ID.String()))
		}
	}
	return true
}

// ingestMetadata builds the vector payload metadata for a session's window.
func ingestMetadata(session *models.LectureSession) map[string]string {
	metadata := map[string]string{
		"lecture_id": session.ID.String(),
		"course_id":  session.CourseID,
		"source":     "live_lecture",
	}
	for k, v := range session.Metadata {
		if _, taken := metadata[k]; !taken {
			metadata[k] = v
		}
	}
	return metadata
}
