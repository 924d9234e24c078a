package rag

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxTokens bounds the estimated size of one chunk.
	DefaultMaxTokens = 180
	// DefaultOverlapTokens is the number of trailing words carried into the
	// next chunk for local continuity.
	DefaultOverlapTokens = 30
)

// A heading-like line: short, starts with a capital, no terminal punctuation.
var headingLine = regexp.MustCompile(`^[A-Z][^\n]{2,79}[^.?!\s]$`)

// Chunk segments text into embedding-sized spans. The text is normalized,
// split into sections on heading-like lines, sections into sentences, and
// sentences greedily packed under maxTokens. When a sentence would overflow
// the budget the current buffer is emitted and the next buffer is seeded with
// the trailing overlapTokens words of it. A chunk may exceed maxTokens by at
// most one sentence; empty chunks are never returned.
func Chunk(text string, maxTokens, overlapTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}

	text = NormalizeText(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for _, section := range splitSections(text) {
		buffer := ""
		tokenCount := 0

		for _, sentence := range splitSentences(section) {
			t := ApproximateTokens(sentence)

			if tokenCount+t > maxTokens && buffer != "" {
				chunks = append(chunks, strings.TrimSpace(buffer))

				words := strings.Fields(buffer)
				if len(words) > overlapTokens {
					words = words[len(words)-overlapTokens:]
				}
				buffer = strings.Join(words, " ") + " " + sentence
				tokenCount = ApproximateTokens(buffer)
			} else {
				if buffer != "" {
					buffer += " "
				}
				buffer += sentence
				tokenCount += t
			}
		}

		if trimmed := strings.TrimSpace(buffer); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	return kept
}

// splitSections breaks normalized text on heading-like lines. A matching line
// starts a new section that includes the heading itself.
func splitSections(text string) []string {
	lines := strings.Split(text, "\n")
	var sections []string
	var current []string

	for _, line := range lines {
		if headingLine.MatchString(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, " "))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, " "))
	}
	return sections
}

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '?', '!':
			if i+1 >= len(runes) || runes[i+1] == ' ' {
				s := strings.TrimSpace(string(runes[start : i+1]))
				if s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
