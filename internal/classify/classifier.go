// Package classify decides whether a flushed transcript window is a
// teachable moment (definition, formula, example) worth flagging live.
package classify

import "context"

// Result is the structured verdict for one transcript window.
type Result struct {
	IsHighlight bool    `json:"isHighlight"`
	Type        string  `json:"type,omitempty"`
	Title       string  `json:"title,omitempty"`
	Excerpt     string  `json:"excerpt,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// Classifier is the highlight-detection collaborator. Implementations must
// treat their own soft failures as "no highlight"; hard failures are returned
// and handled fail-open by the caller.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}
