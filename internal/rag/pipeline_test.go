package rag

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	calls   int
	failOn  int // 1-based call index to fail on; 0 = never
	vectors [][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn > 0 && f.calls == f.failOn {
		return nil, errors.New("embedding service down")
	}
	if len(f.vectors) > 0 {
		return f.vectors[(f.calls-1)%len(f.vectors)], nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeStore struct {
	upserted  [][]Point
	upsertErr error
	hits      []ScoredText
	searchErr error

	lastFilters map[string]string
	lastLimit   int
}

func (f *fakeStore) Upsert(_ context.Context, points []Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, points)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, filters map[string]string, limit int) ([]ScoredText, error) {
	f.lastFilters = filters
	f.lastLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func TestIngestStoresAllChunksInOneBatch(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &fakeStore{}
	ing := NewIngestor(emb, store, nil)

	meta := map[string]string{"course_id": "c1", "lecture_id": "l1", "source": "live_lecture"}
	stored, err := ing.Ingest(context.Background(), manySentences(40, 12), meta)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stored < 2 {
		t.Fatalf("expected several chunks stored, got %d", stored)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("expected a single batch upsert, got %d", len(store.upserted))
	}
	points := store.upserted[0]
	if len(points) != stored {
		t.Errorf("stored count %d does not match points %d", stored, len(points))
	}
	seen := make(map[string]bool)
	for i, p := range points {
		if p.ID == "" || seen[p.ID] {
			t.Errorf("point %d has missing or duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Payload["position"] != i {
			t.Errorf("point %d position = %v", i, p.Payload["position"])
		}
		if p.Payload["course_id"] != "c1" || p.Payload["source"] != "live_lecture" {
			t.Errorf("point %d missing metadata: %v", i, p.Payload)
		}
		if p.Payload["text"] == "" || p.Payload["timestamp"] == "" {
			t.Errorf("point %d missing text/timestamp", i)
		}
	}
}

func TestIngestEmptyTextIsNoop(t *testing.T) {
	store := &fakeStore{}
	ing := NewIngestor(&fakeEmbedder{}, store, nil)
	stored, err := ing.Ingest(context.Background(), "   \n ", nil)
	if err != nil || stored != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", stored, err)
	}
	if len(store.upserted) != 0 {
		t.Error("empty input must not reach the store")
	}
}

func TestIngestAbortsOnEmbeddingFailure(t *testing.T) {
	store := &fakeStore{}
	ing := NewIngestor(&fakeEmbedder{failOn: 2}, store, nil)
	stored, err := ing.Ingest(context.Background(), manySentences(40, 12), nil)
	if err == nil {
		t.Fatal("expected error from embedding failure")
	}
	if stored != 0 {
		t.Errorf("failed ingest reported %d stored", stored)
	}
	if len(store.upserted) != 0 {
		t.Error("no partial batch may be committed after an embedding failure")
	}
}

func TestIngestPropagatesStoreFailure(t *testing.T) {
	ing := NewIngestor(&fakeEmbedder{}, &fakeStore{upsertErr: errors.New("collection unavailable")}, nil)
	if _, err := ing.Ingest(context.Background(), manySentences(10, 10), nil); err == nil {
		t.Fatal("expected upsert error to propagate")
	}
}

func TestRetrieveFiltersThresholdAndRanks(t *testing.T) {
	store := &fakeStore{hits: []ScoredText{
		{Text: "borderline", Score: 0.35}, // at threshold: dropped
		{Text: "weak", Score: 0.1},
		{Text: "strong", Score: 0.9},
		{Text: "medium", Score: 0.6},
	}}
	r := NewRetriever(&fakeEmbedder{}, store, nil)

	got, err := r.Retrieve(context.Background(), "what is entropy?", map[string]string{"course_id": "c1"}, 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	want := []string{"strong", "medium"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result %d = %q, want %q", i, got[i], want[i])
		}
	}
	if store.lastFilters["course_id"] != "c1" {
		t.Errorf("filters not forwarded: %v", store.lastFilters)
	}
	if store.lastLimit != 5*overFetch {
		t.Errorf("search limit = %d, want %d", store.lastLimit, 5*overFetch)
	}
}

func TestRetrieveCapsAtTopK(t *testing.T) {
	hits := make([]ScoredText, 12)
	for i := range hits {
		hits[i] = ScoredText{Text: string(rune('a' + i)), Score: 0.5 + float32(i)*0.01}
	}
	r := NewRetriever(&fakeEmbedder{}, &fakeStore{hits: hits}, nil)
	got, err := r.Retrieve(context.Background(), "q", nil, 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	// Highest scores first.
	if got[0] != "l" || got[1] != "k" || got[2] != "j" {
		t.Errorf("results not score-ordered: %v", got)
	}
}

func TestRetrieveOneRelevantChunk(t *testing.T) {
	store := &fakeStore{hits: []ScoredText{
		{Text: "Newton's second law: F = ma.", Score: 0.9},
		{Text: "The French Revolution began in 1789.", Score: 0.1},
	}}
	r := NewRetriever(&fakeEmbedder{}, store, nil)
	got, err := r.Retrieve(context.Background(), "what is Newton's second law?", map[string]string{"course_id": "c1"}, DefaultTopK)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0] != "Newton's second law: F = ma." {
		t.Errorf("got %v, want exactly the on-topic chunk", got)
	}
}

func TestRetrieveErrorsAreDistinctFromEmpty(t *testing.T) {
	// Empty result is success.
	r := NewRetriever(&fakeEmbedder{}, &fakeStore{}, nil)
	got, err := r.Retrieve(context.Background(), "q", nil, 0)
	if err != nil {
		t.Fatalf("empty search must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}

	// Embedding failure surfaces as ErrRetrieval.
	r = NewRetriever(&fakeEmbedder{failOn: 1}, &fakeStore{}, nil)
	if _, err := r.Retrieve(context.Background(), "q", nil, 0); !errors.Is(err, ErrRetrieval) {
		t.Errorf("embed failure: got %v, want ErrRetrieval", err)
	}

	// Search failure surfaces as ErrRetrieval.
	r = NewRetriever(&fakeEmbedder{}, &fakeStore{searchErr: errors.New("grpc unavailable")}, nil)
	if _, err := r.Retrieve(context.Background(), "q", nil, 0); !errors.Is(err, ErrRetrieval) {
		t.Errorf("search failure: got %v, want ErrRetrieval", err)
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		name         string
		similarities []float64
		contexts     int
		selfRated    float64
		want         float64
	}{
		{"full coverage high similarity", []float64{0.9, 0.9}, 4, 0.8, 0.9},
		{"defaults self rating", []float64{0.5}, 2, 0, 0.56},
		{"no contexts", nil, 0, 0.5, 0.15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Confidence(tc.similarities, tc.contexts, tc.selfRated); got != tc.want {
				t.Errorf("Confidence = %v, want %v", got, tc.want)
			}
		})
	}
}
