package lecture

import (
	"strings"
	"time"
)

const (
	// DefaultFastWindow bounds how long a fast window accumulates before it
	// is ready regardless of content, so classification keeps a cadence even
	// during slow speech.
	DefaultFastWindow = 8 * time.Second
	// DefaultFastWordLimit caps classifier input size.
	DefaultFastWordLimit = 25
)

// FastBuffer is the short-horizon accumulator feeding live highlight
// classification. Not safe for concurrent use; the registry serializes
// fragment processing per session.
type FastBuffer struct {
	buffer    string
	start     time.Time
	wordCount int
	window    time.Duration
	wordLimit int
	now       func() time.Time
}

// NewFastBuffer creates an empty fast buffer. Non-positive arguments select
// the defaults.
func NewFastBuffer(window time.Duration, wordLimit int) *FastBuffer {
	if window <= 0 {
		window = DefaultFastWindow
	}
	if wordLimit <= 0 {
		wordLimit = DefaultFastWordLimit
	}
	return &FastBuffer{window: window, wordLimit: wordLimit, now: time.Now}
}

// AddFragment appends text, inserting a separating space only when needed.
// The first append after a reset stamps the window start.
func (b *FastBuffer) AddFragment(text string) {
	if text == "" {
		return
	}
	if b.buffer == "" {
		b.start = b.now()
	}
	if b.buffer != "" && !strings.HasSuffix(b.buffer, " ") && !strings.HasPrefix(text, " ") {
		b.buffer += " "
	}
	b.buffer += text
	b.wordCount = len(strings.Fields(b.buffer))
}

// IsReady reports whether the window should be handed to the classifier:
// the window is old enough, big enough, or ends at a sentence boundary.
func (b *FastBuffer) IsReady() bool {
	if b.buffer == "" {
		return false
	}
	if b.now().Sub(b.start) >= b.window {
		return true
	}
	if b.wordCount >= b.wordLimit {
		return true
	}
	trimmed := strings.TrimSpace(b.buffer)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '?', '!':
		return true
	}
	return false
}

// FlushIfReady returns the trimmed window and resets the buffer when ready;
// otherwise it returns false and leaves all state untouched.
func (b *FastBuffer) FlushIfReady() (string, bool) {
	if !b.IsReady() {
		return "", false
	}
	text := strings.TrimSpace(b.buffer)
	b.reset()
	return text, true
}

func (b *FastBuffer) reset() {
	b.buffer = ""
	b.start = time.Time{}
	b.wordCount = 0
}
