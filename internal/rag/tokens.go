package rag

import "strings"

// ApproximateTokens estimates the token count of a text span for chunk
// budgeting. English prose averages roughly 0.75 words per token, so the
// estimate is words * 4/3. Cheap and close enough for window sizing; the
// chunker never needs exact counts.
func ApproximateTokens(text string) int {
	words := len(strings.Fields(text))
	return words + words/3
}
