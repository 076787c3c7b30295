// Package ollama wraps the Ollama generation API used to synthesize
// assistant answers.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jobfinder/assistant/internal/apperr"
)

// Client wraps Ollama API interactions
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a new Ollama client. model may be empty; ResolveModel
// picks one at startup then.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // generation requests can be slow
		},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces an answer for the assembled prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/api/generate", c.baseURL)

	jsonData, err := json.Marshal(&generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": 0.2,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperr.Transient("generation request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", apperr.Transient("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var genResp generateResponse
		if err := decoder.Decode(&genResp); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		result.WriteString(genResp.Response)
		if genResp.Done {
			break
		}
	}

	return result.String(), nil
}

type modelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Models the assistant prefers when none is configured, best first.
var priorityModels = []string{
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"mistral",
	"llama3",
}

// ResolveModel verifies the configured model exists, or picks the best
// available one when the config leaves it empty.
func (c *Client) ResolveModel(ctx context.Context) (string, error) {
	models, err := c.listModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("no models available")
	}

	if c.model != "" {
		for _, m := range models {
			if m.Name == c.model {
				return c.model, nil
			}
		}
		// Configured model absent: fall through to selection.
	}

	for _, priority := range priorityModels {
		for _, m := range models {
			if strings.Contains(strings.ToLower(m.Name), priority) {
				c.model = m.Name
				return m.Name, nil
			}
		}
	}

	// No known model name: the largest is usually the most capable.
	sort.Slice(models, func(i, j int) bool { return models[i].Size > models[j].Size })
	c.model = models[0].Name
	return c.model, nil
}

func (c *Client) listModels(ctx context.Context) ([]modelInfo, error) {
	url := fmt.Sprintf("%s/api/tags", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transient("failed to list models: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.Transient("ollama API error: %d - %s", resp.StatusCode, string(body))
	}

	var result struct {
		Models []modelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Models, nil
}
