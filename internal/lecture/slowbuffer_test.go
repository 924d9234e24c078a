package lecture

import (
	"fmt"
	"testing"
	"time"
)

func newTestSlowBuffer(t *testing.T, flushCount int, retention time.Duration) (*SlowBuffer, *time.Time) {
	t.Helper()
	b := NewSlowBuffer(flushCount, retention)
	clock := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestSlowBufferFlushAtCount(t *testing.T) {
	b, _ := newTestSlowBuffer(t, 5, DefaultRetention)

	for i := 1; i <= 4; i++ {
		b.AddFragment(fmt.Sprintf("fragment %d", i))
		if b.ShouldFlush() {
			t.Fatalf("flush signalled at %d fragments", i)
		}
	}
	b.AddFragment("fragment 5")
	if !b.ShouldFlush() {
		t.Fatal("flush not signalled at 5 fragments")
	}

	text := b.Flush()
	want := "fragment 1 fragment 2 fragment 3 fragment 4 fragment 5"
	if text != want {
		t.Fatalf("flushed %q, want %q", text, want)
	}
	if b.Len() != 0 {
		t.Fatalf("buffer holds %d fragments after flush", b.Len())
	}
}

func TestSlowBufferRetentionPruning(t *testing.T) {
	b, clock := newTestSlowBuffer(t, 5, 15*time.Minute)

	b.AddFragment("stale one")
	b.AddFragment("stale two")
	*clock = clock.Add(16 * time.Minute)
	b.AddFragment("fresh")

	if got := b.Len(); got != 1 {
		t.Fatalf("len = %d after pruning, want 1", got)
	}
	if text := b.Flush(); text != "fresh" {
		t.Fatalf("flushed %q, stale fragments survived pruning", text)
	}
}

func TestSlowBufferPruningDelaysFlush(t *testing.T) {
	b, clock := newTestSlowBuffer(t, 3, 15*time.Minute)

	b.AddFragment("old one")
	b.AddFragment("old two")
	*clock = clock.Add(20 * time.Minute)
	b.AddFragment("new one")

	// The two pruned fragments no longer count toward the threshold.
	if b.ShouldFlush() {
		t.Fatal("flush signalled on pruned fragments")
	}
	b.AddFragment("new two")
	b.AddFragment("new three")
	if !b.ShouldFlush() {
		t.Fatal("flush not signalled at threshold of fresh fragments")
	}
}

func TestSlowBufferFlushUnconditional(t *testing.T) {
	b, _ := newTestSlowBuffer(t, 5, DefaultRetention)

	b.AddFragment("only one")
	if b.ShouldFlush() {
		t.Fatal("flush signalled below threshold")
	}
	if text := b.Flush(); text != "only one" {
		t.Fatalf("unconditional flush returned %q", text)
	}
}

func TestSlowBufferEmptyFragmentIgnored(t *testing.T) {
	b, _ := newTestSlowBuffer(t, 5, DefaultRetention)

	b.AddFragment("")
	if b.Len() != 0 {
		t.Fatal("empty fragment was buffered")
	}
}
