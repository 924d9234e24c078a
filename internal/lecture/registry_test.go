package lecture

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Tuning{}, nil, nil, nil, nil)
}

func TestRegistryStartAllocatesIsolatedBuffers(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first := r.Start(ctx, "user-1", "course-phys", nil, nil)
	second := r.Start(ctx, "user-2", "course-chem", nil, nil)
	if first.ID == second.ID {
		t.Fatal("two sessions share an id")
	}

	firstState, _ := r.state(first.ID)
	secondState, _ := r.state(second.ID)
	firstState.fast.AddFragment("only the first session hears this")
	if got := secondState.fast.buffer; got != "" {
		t.Fatalf("second session fast buffer = %q, buffers are shared", got)
	}
	if firstState.slow == secondState.slow {
		t.Fatal("two sessions share a slow buffer")
	}
}

func TestRegistryStopMarksInactive(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	stopped, err := r.Stop(ctx, session.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Active {
		t.Fatal("stopped session still active")
	}
	if stopped.EndedAt == nil || stopped.EndedAt.IsZero() {
		t.Fatal("stopped session missing end time")
	}

	exists, active := r.SessionState(session.ID)
	if !exists || active {
		t.Fatalf("SessionState = (%v, %v) after stop, want (true, false)", exists, active)
	}
}

func TestRegistryStopReleasesBuffers(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	state, _ := r.state(session.ID)
	state.fast.AddFragment("buffered words without an ending")
	state.slow.AddFragment("buffered words without an ending")
	state.transcript.WriteString("buffered words without an ending")

	if _, err := r.Stop(ctx, session.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if state.fast.buffer != "" {
		t.Fatalf("stopped session retains fast buffer %q", state.fast.buffer)
	}
	if n := state.slow.Len(); n != 0 {
		t.Fatalf("stopped session retains %d slow fragments", n)
	}
	if n := state.transcript.Len(); n != 0 {
		t.Fatalf("stopped session retains %d transcript bytes", n)
	}
	// The session itself remains addressable after its buffers are gone.
	if got := r.Get(session.ID); got == nil || got.Active {
		t.Fatal("stopped session no longer addressable")
	}
}

func TestRegistryStopUnknownSession(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Stop(context.Background(), uuid.New()); err != ErrSessionNotFound {
		t.Fatalf("stop unknown session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", []string{"mat-1"}, map[string]string{"semester_id": "s1"})
	got := r.Get(session.ID)
	if got == nil {
		t.Fatal("Get returned nil for a live session")
	}
	if got.CourseID != "course-phys" || got.UserID != "user-1" {
		t.Fatalf("Get returned %+v", got)
	}

	got.Active = false
	if exists, active := r.SessionState(session.ID); !exists || !active {
		t.Fatal("mutating the returned session affected registry state")
	}

	if r.Get(uuid.New()) != nil {
		t.Fatal("Get returned a session for an unknown id")
	}
}

func TestRegistryStartStampsStart(t *testing.T) {
	r := newTestRegistry(t)

	before := time.Now()
	session := r.Start(context.Background(), "user-1", "course-phys", nil, nil)
	after := time.Now()

	if session.StartedAt.Before(before) || session.StartedAt.After(after) {
		t.Fatalf("StartedAt = %v outside [%v, %v]", session.StartedAt, before, after)
	}
	if !session.Active {
		t.Fatal("new session not active")
	}
}
