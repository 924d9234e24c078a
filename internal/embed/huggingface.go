// Package embed provides embedding clients for the ingestion and retrieval
// pipelines. The reference deployment uses sentence-transformers/all-MiniLM-L6-v2
// (384 dimensions) behind the Hugging Face Inference API.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultModel is the sentence-transformer used by the reference deployment.
	DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultDimension is the vector size of DefaultModel.
	DefaultDimension = 384

	defaultBaseURL = "https://api-inference.huggingface.co"
	requestTimeout = 30 * time.Second
)

// HuggingFace embeds text via the Inference API feature-extraction pipeline.
type HuggingFace struct {
	token   string
	model   string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHuggingFace creates a Hugging Face embedding client. Empty model selects
// DefaultModel; empty baseURL selects the public Inference API.
func NewHuggingFace(token, model, baseURL string, logger *zap.Logger) *HuggingFace {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HuggingFace{
		token:   token,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Embed returns the feature-extraction vector for text.
func (h *HuggingFace) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", h.baseURL, h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature extraction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature extraction: status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	return parseVector(raw)
}

// parseVector accepts both response shapes the pipeline returns: a flat
// vector for a single input, or a single-element batch.
func parseVector(raw []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil && len(batch) > 0 && len(batch[0]) > 0 {
		return batch[0], nil
	}
	return nil, fmt.Errorf("unexpected embedding response: %s", truncate(raw, 200))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
