package models

import "github.com/google/uuid"

// Highlight types produced by the classifier.
const (
	HighlightTypeDefinition = "definition"
	HighlightTypeFormula    = "formula"
	HighlightTypeExample    = "example"
	HighlightTypeConcept    = "concept"
)

// HighlightEvent is a teachable moment detected in the live transcript.
// It is fanned out to stream subscribers and never persisted as part of delivery;
// archival to Postgres is best-effort and separate.
type HighlightEvent struct {
	LectureID      uuid.UUID `json:"lectureId"`
	ChunkID        string    `json:"chunkId"`
	Highlight      bool      `json:"highlight"`
	Type           string    `json:"type,omitempty"`
	Text           string    `json:"text,omitempty"`
	Confidence     float64   `json:"confidence,omitempty"`
	TimestampStart int64     `json:"timestampStart"`
	TimestampEnd   int64     `json:"timestampEnd"`
}
