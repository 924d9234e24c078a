package lecture

import (
	"strings"
	"time"
)

const (
	// DefaultSlowFlushCount is the fragment count that triggers an ingestion
	// flush. Deliberately decoupled from the fast buffer's timing so the
	// ingestion cadence differs from the classification cadence.
	DefaultSlowFlushCount = 5
	// DefaultRetention is the sliding window beyond which buffered fragments
	// are pruned. Pruning bounds memory; it is not a flush trigger.
	DefaultRetention = 15 * time.Minute
)

type slowFragment struct {
	text string
	at   time.Time
}

// SlowBuffer ("lecture memory") is the longer-horizon accumulator feeding the
// ingestion path. Not safe for concurrent use; the registry serializes
// fragment processing per session.
type SlowBuffer struct {
	fragments  []slowFragment
	flushCount int
	retention  time.Duration
	now        func() time.Time
}

// NewSlowBuffer creates an empty slow buffer. Non-positive arguments select
// the defaults.
func NewSlowBuffer(flushCount int, retention time.Duration) *SlowBuffer {
	if flushCount <= 0 {
		flushCount = DefaultSlowFlushCount
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &SlowBuffer{flushCount: flushCount, retention: retention, now: time.Now}
}

// AddFragment appends a timestamped fragment and prunes entries older than
// the retention window.
func (b *SlowBuffer) AddFragment(text string) {
	if text == "" {
		return
	}
	b.fragments = append(b.fragments, slowFragment{text: text, at: b.now()})
	b.prune()
}

// ShouldFlush reports whether enough non-pruned fragments have accumulated.
func (b *SlowBuffer) ShouldFlush() bool {
	b.prune()
	return len(b.fragments) >= b.flushCount
}

// Flush concatenates and clears the buffer unconditionally.
func (b *SlowBuffer) Flush() string {
	b.prune()
	parts := make([]string, 0, len(b.fragments))
	for _, f := range b.fragments {
		parts = append(parts, f.text)
	}
	b.fragments = nil
	return strings.Join(parts, " ")
}

// Len returns the current fragment count after pruning.
func (b *SlowBuffer) Len() int {
	b.prune()
	return len(b.fragments)
}

func (b *SlowBuffer) reset() {
	b.fragments = nil
}

func (b *SlowBuffer) prune() {
	cutoff := b.now().Add(-b.retention)
	kept := b.fragments[:0]
	for _, f := range b.fragments {
		if f.at.After(cutoff) {
			kept = append(kept, f)
		}
	}
	b.fragments = kept
}
