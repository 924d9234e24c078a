// Package vectorstore wraps the Qdrant gRPC client behind the rag.Store
// interface: one collection, cosine distance, payload indexes for the
// metadata fields retrieval filters on.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/studymate/backend/internal/rag"
)

// Payload fields indexed as keywords for equality filtering.
var keywordFields = []string{"course_id", "semester_id", "type", "source", "lecture_id"}

// Config holds Qdrant connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	VectorSize uint64
}

// Qdrant is a rag.Store backed by a Qdrant collection.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// New connects to Qdrant and ensures the collection and payload indexes exist.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	q := &Qdrant{client: client, collection: cfg.Collection, logger: logger}
	if err := q.ensureCollection(ctx, cfg.VectorSize); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("collection exists: %w", err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	// Index creation is idempotent on existing collections.
	for _, field := range keywordFields {
		_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: q.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", field, err)
		}
	}
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "timestamp",
		FieldType:      qdrant.FieldType_FieldTypeDatetime.Enum(),
	})
	if err != nil {
		return fmt.Errorf("index timestamp: %w", err)
	}

	q.logger.Info("qdrant collection ready",
		zap.String("collection", q.collection),
		zap.Uint64("vector_size", vectorSize),
	)
	return nil
}

// Upsert writes all points in a single batch and waits for commit.
func (q *Qdrant) Upsert(ctx context.Context, points []rag.Point) error {
	if len(points) == 0 {
		return nil
	}
	qp := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qp = append(qp, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         qp,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Search runs nearest-neighbor search with equality must-filters and returns
// scored payload texts.
func (q *Qdrant) Search(ctx context.Context, vector []float32, filters map[string]string, limit int) ([]rag.ScoredText, error) {
	query := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filters) > 0 {
		must := make([]*qdrant.Condition, 0, len(filters))
		for field, value := range filters {
			must = append(must, qdrant.NewMatch(field, value))
		}
		query.Filter = &qdrant.Filter{Must: must}
	}

	scored, err := q.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	hits := make([]rag.ScoredText, 0, len(scored))
	for _, p := range scored {
		var text string
		if v, ok := p.Payload["text"]; ok {
			text = v.GetStringValue()
		}
		hits = append(hits, rag.ScoredText{Text: text, Score: p.Score})
	}
	return hits, nil
}
