package rag

import (
	"regexp"
	"strings"
)

var (
	blankLines = regexp.MustCompile(`\n{2,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
)

// NormalizeText collapses whitespace in raw transcript or document text:
// carriage returns are dropped, blank-line runs become a single newline and
// space runs become a single space. Single newlines survive so section
// boundaries stay visible to the chunker.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = blankLines.ReplaceAllString(text, "\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
