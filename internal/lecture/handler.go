package lecture

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/transcribe"
	"github.com/studymate/backend/pkg/response"
	"github.com/studymate/backend/pkg/storage"
)

// maxAudioChunkBytes bounds one uploaded audio chunk (a few seconds of audio).
const maxAudioChunkBytes = 8 * 1024 * 1024

// StartRequest is the body for POST /lectures/start.
type StartRequest struct {
	UserID      string            `json:"userId" binding:"required"`
	CourseID    string            `json:"courseId" binding:"required"`
	MaterialIDs []string          `json:"materialIds"`
	Metadata    map[string]string `json:"metadata"`
}

// StopRequest is the body for POST /lectures/stop.
type StopRequest struct {
	LectureID string `json:"lectureId" binding:"required"`
}

// FragmentRequest is the body for POST /lectures/:id/transcript.
type FragmentRequest struct {
	Text  string `json:"text" binding:"required"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// Handler exposes the lecture lifecycle and transcript input over HTTP.
type Handler struct {
	registry     *Registry
	orchestrator *Orchestrator
	transcriber  transcribe.Transcriber // optional
	archive      *storage.S3            // optional
	logger       *zap.Logger
}

// NewHandler creates a lecture handler. transcriber and archive may be nil
// when no speech-to-text key or archive bucket is configured; the endpoints
// that need them then return 503.
func NewHandler(registry *Registry, orchestrator *Orchestrator, transcriber transcribe.Transcriber, archive *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, orchestrator: orchestrator, transcriber: transcriber, archive: archive, logger: logger}
}

// Start handles POST /lectures/start.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session := h.registry.Start(c.Request.Context(), req.UserID, req.CourseID, req.MaterialIDs, req.Metadata)
	response.Created(c, gin.H{"lectureId": session.ID})
}

// Stop handles POST /lectures/stop.
func (h *Handler) Stop(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	lectureID, err := uuid.Parse(req.LectureID)
	if err != nil {
		response.BadRequest(c, "invalid lectureId")
		return
	}
	if _, err := h.registry.Stop(c.Request.Context(), lectureID); err != nil {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, gin.H{"ok": true})
}

// Get handles GET /lectures/:id.
func (h *Handler) Get(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	session := h.registry.Get(lectureID)
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, session)
}

// Fragment handles POST /lectures/:id/transcript: one already-transcribed
// fragment into the dual-buffer pipeline.
func (h *Handler) Fragment(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	var req FragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.orchestrator.OnFragment(c.Request.Context(), lectureID, req.Text, req.Start, req.End)
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	response.OK(c, result)
}

// Audio handles POST /lectures/:id/audio: multipart audio chunk, transcribed
// then fed to the pipeline.
func (h *Handler) Audio(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	if h.transcriber == nil {
		response.ServiceUnavailable(c, "transcription not configured")
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "audio file required")
		return
	}
	defer file.Close()
	if header.Size > maxAudioChunkBytes {
		response.BadRequest(c, "audio chunk too large")
		return
	}
	audio, err := io.ReadAll(io.LimitReader(file, maxAudioChunkBytes))
	if err != nil {
		response.Internal(c, "read audio")
		return
	}

	text, err := h.transcriber.Transcribe(c.Request.Context(), audio, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("transcription failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
		response.Internal(c, "transcription failed")
		return
	}
	if text == "" {
		response.OK(c, gin.H{"status": "empty"})
		return
	}

	now := time.Now().UnixMilli()
	result, err := h.orchestrator.OnFragment(c.Request.Context(), lectureID, text, now, now)
	if err != nil {
		h.writeSessionError(c, err)
		return
	}
	response.OK(c, gin.H{
		"transcript":       text,
		"ragStatus":        result.RagStatus,
		"storedChunks":     result.StoredChunks,
		"highlightEmitted": result.HighlightEmitted,
	})
}

// Highlights handles GET /lectures/:id/highlights from the archive.
func (h *Handler) Highlights(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	if h.registry.repo == nil {
		response.ServiceUnavailable(c, "highlight archive not configured")
		return
	}
	list, err := h.registry.repo.ListHighlights(c.Request.Context(), lectureID)
	if err != nil {
		response.Internal(c, "failed to list highlights")
		return
	}
	if list == nil {
		list = []models.HighlightEvent{}
	}
	response.OK(c, gin.H{"highlights": list})
}

// TranscriptURL handles GET /lectures/:id/transcript-url: a pre-signed
// download link for the archived transcript of a finished lecture.
func (h *Handler) TranscriptURL(c *gin.Context) {
	lectureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid lecture id")
		return
	}
	if h.archive == nil {
		response.ServiceUnavailable(c, "transcript archive not configured")
		return
	}

	session := h.registry.Get(lectureID)
	if session == nil && h.registry.repo != nil {
		session, _ = h.registry.repo.GetSession(c.Request.Context(), lectureID)
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	if session.Active {
		response.Conflict(c, "lecture still running, transcript not archived yet")
		return
	}

	expires := h.archive.PresignExpire()
	key := storage.TranscriptKey(session.CourseID, lectureID.String())
	url, err := h.archive.GeneratePresignedDownloadURL(c.Request.Context(), h.archive.ArchiveBucket(), key, expires)
	if err != nil {
		h.logger.Error("presign transcript failed", zap.Error(err), zap.String("lecture_id", lectureID.String()))
		response.Internal(c, "failed to sign download url")
		return
	}
	response.OK(c, gin.H{"url": url, "expiresInSeconds": int(expires.Seconds())})
}

func (h *Handler) writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, "no active session")
	case errors.Is(err, ErrSessionInactive):
		response.Conflict(c, "lecture has ended")
	default:
		response.Internal(c, "fragment processing failed")
	}
}
