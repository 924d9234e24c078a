package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Embedder turns a text span into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Point is one vector record staged for upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredText is a search hit with its similarity score.
type ScoredText struct {
	Text  string
	Score float32
}

// Store abstracts the vector store used for ingestion and retrieval.
type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]ScoredText, error)
}

// Ingestor runs the ingestion pipeline: chunk, embed, batch-upsert.
type Ingestor struct {
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

// NewIngestor creates the ingestion pipeline.
func NewIngestor(embedder Embedder, store Store, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{embedder: embedder, store: store, logger: logger}
}

// Ingest chunks text, embeds every chunk and upserts all records in one batch.
// Returns the number of records stored. Any embedding or store failure aborts
// the whole call with no partial-commit guarantee; retry policy belongs to the
// caller.
func (i *Ingestor) Ingest(ctx context.Context, text string, metadata map[string]string) (int, error) {
	chunks := Chunk(text, DefaultMaxTokens, DefaultOverlapTokens)
	if len(chunks) == 0 {
		return 0, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	points := make([]Point, 0, len(chunks))
	for pos, chunk := range chunks {
		vector, err := i.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d: %w", pos, err)
		}
		payload := map[string]any{
			"text":      chunk,
			"position":  pos,
			"timestamp": timestamp,
		}
		for k, v := range metadata {
			payload[k] = v
		}
		points = append(points, Point{
			ID:      uuid.New().String(),
			Vector:  vector,
			Payload: payload,
		})
	}

	if err := i.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	i.logger.Debug("text ingested", zap.Int("chunks", len(points)))
	return len(points), nil
}
