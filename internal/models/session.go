package models

import (
	"time"

	"github.com/google/uuid"
)

// LectureSession tracks one live lecture from start to stop.
// Exactly one mutable session object exists per ID for the process lifetime.
type LectureSession struct {
	ID          uuid.UUID         `json:"lecture_id"`
	UserID      string            `json:"user_id"`
	CourseID    string            `json:"course_id"`
	MaterialIDs []string          `json:"material_ids"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	EndedAt     *time.Time        `json:"ended_at,omitempty"`
	Active      bool              `json:"active"`
}

// FragmentResult is the outcome of processing one transcript fragment.
type FragmentResult struct {
	RagStatus        string `json:"ragStatus"`
	StoredChunks     int    `json:"storedChunks,omitempty"`
	HighlightEmitted bool   `json:"highlightEmitted"`
}

// Rag statuses reported per fragment.
const (
	RagStatusBuffering = "buffering"
	RagStatusIngested  = "ingested"
	RagStatusFailed    = "failed"
)
