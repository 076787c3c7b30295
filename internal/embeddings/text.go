// Package embeddings computes fixed-dimension text vectors through the
// Ollama embeddings API.
package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jobfinder/assistant/internal/apperr"
)

// ErrRejected marks input the embedding service permanently refuses
// (typically text over the model's length limit). Never retried.
var ErrRejected = errors.New("embedding rejected")

// TextEmbedder generates text embeddings using Ollama
type TextEmbedder struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewTextEmbedder creates a new text embedder. dimension is the system-wide
// vector dimension; a response of any other length is a fatal
// misconfiguration.
func NewTextEmbedder(baseURL, model string, dimension int) *TextEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &TextEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Dimension returns the configured vector dimension.
func (e *TextEmbedder) Dimension() int {
	return e.dimension
}

// Embed generates an embedding for the given text
func (e *TextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("text cannot be empty")
	}

	url := fmt.Sprintf("%s/api/embeddings", e.baseURL)
	payload := map[string]any{
		"model":  e.model,
		"prompt": text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transient("embedding request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: ollama API error: %d - %s", ErrRejected, resp.StatusCode, string(body))
		}
		return nil, apperr.Transient("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Transient("failed to decode response: %v", err)
	}

	if len(result.Embedding) == 0 {
		return nil, apperr.Transient("empty embedding returned")
	}
	if e.dimension > 0 && len(result.Embedding) != e.dimension {
		return nil, apperr.Fatal("embedding dimension mismatch: model %s returned %d, configured %d",
			e.model, len(result.Embedding), e.dimension)
	}

	return result.Embedding, nil
}
