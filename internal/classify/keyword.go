package classify

import (
	"context"
	"strings"
)

const keywordConfidence = 0.85

// Keyword is a rule-based fallback classifier for deployments without an LLM
// key. It flags windows that announce a formula, definition or example.
type Keyword struct{}

// NewKeyword creates the rule-based classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify never fails; unmatched text is simply not a highlight.
func (k *Keyword) Classify(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)

	var kind string
	switch {
	case strings.Contains(lower, "formula") || strings.Contains(lower, "equation"):
		kind = "formula"
	case strings.Contains(lower, "for example") || strings.Contains(lower, "an example"):
		kind = "example"
	case strings.Contains(lower, "definition") || strings.Contains(lower, "is defined as"):
		kind = "definition"
	default:
		return Result{}, nil
	}

	return Result{
		IsHighlight: true,
		Type:        kind,
		Excerpt:     excerpt(text, 250),
		Confidence:  keywordConfidence,
	}, nil
}

func excerpt(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
