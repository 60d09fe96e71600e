package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HuggingFaceEmbedder calls the Hugging Face inference API's
// feature-extraction pipeline. Useful for sentence-transformers models
// without running them locally.
type HuggingFaceEmbedder struct {
	// baseURL is the inference API base
	// (default "https://api-inference.huggingface.co").
	baseURL string
	// apiKey is the Hugging Face access token.
	apiKey string
	// model is the repository id (e.g. "sentence-transformers/all-MiniLM-L6-v2").
	model string
	// client is the shared HTTP client. Cold models can take a while to
	// load server-side, hence the generous timeout.
	client *http.Client
}

// HuggingFaceConfig holds the settings for constructing a HuggingFaceEmbedder.
type HuggingFaceConfig struct {
	// BaseURL overrides the inference API base URL. Empty means the
	// public endpoint.
	BaseURL string
	// APIKey is the Hugging Face access token.
	APIKey string
	// Model is the model repository id.
	Model string
}

// NewHuggingFaceEmbedder constructs a HuggingFaceEmbedder from the given config.
func NewHuggingFaceEmbedder(cfg *HuggingFaceConfig) *HuggingFaceEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	return &HuggingFaceEmbedder{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// hfEmbedRequest is the JSON body sent to the feature-extraction pipeline.
type hfEmbedRequest struct {
	Inputs  []string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// Embed converts a batch of texts into their corresponding embeddings.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := hfEmbedRequest{Inputs: texts}
	body.Options.WaitForModel = true

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("huggingface embedder: marshal request: %w", err)
	}

	url := e.baseURL + "/pipeline/feature-extraction/" + e.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("huggingface embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return nil, fmt.Errorf("huggingface embedder: %s", msg)
	}

	var embeddings [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("huggingface embedder: decode response: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface embedder: expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	return embeddings, nil
}
