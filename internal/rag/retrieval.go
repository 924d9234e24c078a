package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

const (
	// DefaultTopK is the number of contexts returned per query.
	DefaultTopK = 5
	// scoreThreshold drops weakly similar hits; results scoring at or below
	// it never reach the caller.
	scoreThreshold = 0.35
	// overFetch multiplies the search limit so threshold filtering does not
	// starve the final list.
	overFetch = 4
)

// ErrRetrieval marks an embedding or search failure during a query, as
// opposed to a successful query with no relevant results.
var ErrRetrieval = errors.New("retrieval failed")

// Retriever answers similarity queries against the vector store.
type Retriever struct {
	embedder Embedder
	store    Store
	logger   *zap.Logger
}

// NewRetriever creates the retrieval engine.
func NewRetriever(embedder Embedder, store Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds the question, searches with equality filters, drops hits
// scoring at or below the quality threshold and returns at most topK payload
// texts sorted by descending score. Failures wrap ErrRetrieval so callers can
// tell "retrieval broken" from "nothing relevant found".
func (r *Retriever) Retrieve(ctx context.Context, question string, filters map[string]string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %v", ErrRetrieval, err)
	}

	hits, err := r.store.Search(ctx, vector, filters, topK*overFetch)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrRetrieval, err)
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.Score > scoreThreshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	if len(kept) > topK {
		kept = kept[:topK]
	}
	contexts := make([]string, 0, len(kept))
	for _, h := range kept {
		contexts = append(contexts, h.Text)
	}

	r.logger.Debug("retrieval complete", zap.Int("hits", len(hits)), zap.Int("kept", len(contexts)))
	return contexts, nil
}
