package lecture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/studymate/backend/internal/classify"
	"github.com/studymate/backend/internal/models"
)

type stubIngestor struct {
	mu       sync.Mutex
	windows  []string
	metadata []map[string]string
	chunks   int
	err      error
}

func (s *stubIngestor) Ingest(_ context.Context, text string, metadata map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, text)
	s.metadata = append(s.metadata, metadata)
	if s.err != nil {
		return 0, s.err
	}
	return s.chunks, nil
}

type stubClassifier struct {
	mu      sync.Mutex
	windows []string
	result  classify.Result
	err     error
}

func (s *stubClassifier) Classify(_ context.Context, text string) (classify.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, text)
	return s.result, s.err
}

func (s *stubClassifier) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func TestOnFragmentUnknownSession(t *testing.T) {
	r := newTestRegistry(t)
	o := NewOrchestrator(r, &stubIngestor{}, &stubClassifier{}, nil, nil)

	_, err := o.OnFragment(context.Background(), uuid.New(), "orphan fragment", 0, 0)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestOnFragmentStoppedSession(t *testing.T) {
	r := newTestRegistry(t)
	ingestor := &stubIngestor{}
	o := NewOrchestrator(r, ingestor, &stubClassifier{}, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	if _, err := r.Stop(ctx, session.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	_, err := o.OnFragment(ctx, session.ID, "too late.", 0, 1000)
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("err = %v, want ErrSessionInactive", err)
	}

	// Rejected fragments must leave no trace in any buffer.
	state, _ := r.state(session.ID)
	if state.fast.buffer != "" || state.slow.Len() != 0 || state.transcript.Len() != 0 {
		t.Fatal("rejected fragment mutated session buffers")
	}
	if len(ingestor.windows) != 0 {
		t.Fatal("rejected fragment reached the ingestor")
	}
}

func TestOnFragmentEmptyText(t *testing.T) {
	r := newTestRegistry(t)
	o := NewOrchestrator(r, &stubIngestor{}, &stubClassifier{}, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	result, err := o.OnFragment(ctx, session.ID, "", 0, 0)
	if err != nil {
		t.Fatalf("empty fragment: %v", err)
	}
	if result.RagStatus != models.RagStatusBuffering {
		t.Fatalf("RagStatus = %q, want %q", result.RagStatus, models.RagStatusBuffering)
	}
}

func TestOnFragmentSlowFlushIngests(t *testing.T) {
	r := newTestRegistry(t)
	ingestor := &stubIngestor{chunks: 2}
	o := NewOrchestrator(r, ingestor, nil, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, map[string]string{"semester_id": "sem-3"})

	for i := 1; i <= 4; i++ {
		result, err := o.OnFragment(ctx, session.ID, fmt.Sprintf("fragment %d", i), 0, 0)
		if err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		if result.RagStatus != models.RagStatusBuffering {
			t.Fatalf("fragment %d: RagStatus = %q before flush threshold", i, result.RagStatus)
		}
	}

	result, err := o.OnFragment(ctx, session.ID, "fragment 5", 0, 0)
	if err != nil {
		t.Fatalf("fragment 5: %v", err)
	}
	if result.RagStatus != models.RagStatusIngested {
		t.Fatalf("RagStatus = %q, want %q", result.RagStatus, models.RagStatusIngested)
	}
	if result.StoredChunks != 2 {
		t.Fatalf("StoredChunks = %d, want 2", result.StoredChunks)
	}

	if len(ingestor.windows) != 1 {
		t.Fatalf("ingestor called %d times, want 1", len(ingestor.windows))
	}
	want := "fragment 1 fragment 2 fragment 3 fragment 4 fragment 5"
	if ingestor.windows[0] != want {
		t.Fatalf("ingested window %q, want %q", ingestor.windows[0], want)
	}

	md := ingestor.metadata[0]
	if md["lecture_id"] != session.ID.String() || md["course_id"] != "course-phys" {
		t.Fatalf("window metadata = %v", md)
	}
	if md["source"] != "live_lecture" || md["semester_id"] != "sem-3" {
		t.Fatalf("window metadata = %v", md)
	}
}

func TestOnFragmentIngestFailureIsStatus(t *testing.T) {
	r := newTestRegistry(t)
	ingestor := &stubIngestor{err: errors.New("vector store down")}
	classifier := &stubClassifier{result: classify.Result{IsHighlight: true, Type: models.HighlightTypeDefinition, Confidence: 0.9}}
	o := NewOrchestrator(r, ingestor, classifier, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	for i := 1; i <= 4; i++ {
		if _, err := o.OnFragment(ctx, session.ID, fmt.Sprintf("part %d", i), 0, 0); err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
	}

	// The fifth fragment trips both paths: the slow flush fails, the fast
	// window still classifies.
	result, err := o.OnFragment(ctx, session.ID, "and that concludes the proof.", 4000, 8000)
	if err != nil {
		t.Fatalf("fragment with failing ingestor returned error: %v", err)
	}
	if result.RagStatus != models.RagStatusFailed {
		t.Fatalf("RagStatus = %q, want %q", result.RagStatus, models.RagStatusFailed)
	}
	if !result.HighlightEmitted {
		t.Fatal("ingestion failure suppressed the classification path")
	}
	if classifier.calls() != 1 {
		t.Fatalf("classifier called %d times, want 1", classifier.calls())
	}
}

func TestOnFragmentClassifierFailOpen(t *testing.T) {
	r := newTestRegistry(t)
	classifier := &stubClassifier{err: errors.New("model timeout")}
	o := NewOrchestrator(r, nil, classifier, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	result, err := o.OnFragment(ctx, session.ID, "a complete sentence right away.", 0, 2000)
	if err != nil {
		t.Fatalf("classifier failure surfaced as fragment error: %v", err)
	}
	if result.HighlightEmitted {
		t.Fatal("highlight emitted despite classifier failure")
	}
}

func TestOnFragmentNoHighlightVerdict(t *testing.T) {
	r := newTestRegistry(t)
	classifier := &stubClassifier{result: classify.Result{IsHighlight: false}}
	o := NewOrchestrator(r, nil, classifier, nil, nil)
	ctx := context.Background()

	session := r.Start(ctx, "user-1", "course-phys", nil, nil)
	result, err := o.OnFragment(ctx, session.ID, "nothing remarkable was said.", 0, 2000)
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}
	if result.HighlightEmitted {
		t.Fatal("highlight emitted on a negative verdict")
	}
	if classifier.calls() != 1 {
		t.Fatalf("classifier called %d times, want 1", classifier.calls())
	}
}
