package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider talks to an external embedding service over HTTP: a
// provider_info-shaped health/info endpoint and a batch /embed endpoint.
// This is the shape every non-mock provider in the configuration knob
// table (openai, ollama, gemini, mistral, siliconflow, custom*) reduces to
// from the engine's point of view.
type HTTPProvider struct {
	name     string
	baseURL  string
	client   *http.Client
}

// NewHTTPProvider builds a Provider that calls baseURL's /info and /embed
// endpoints. name is the provider name used for DefaultDimensions
// fallback if the provider proves unreachable.
func NewHTTPProvider(name, baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProvider{name: name, baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type infoResponse struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

func (p *HTTPProvider) Info(ctx context.Context) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/info", nil)
	if err != nil {
		return Info{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// Unreachable: report unavailable rather than erroring, so the
		// caller can fall back to DefaultDimensions(p.name).
		return Info{Name: p.name, Available: false}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{Name: p.name, Available: false}, nil
	}

	var body infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Info{Name: p.name, Available: false}, nil
	}
	return Info{Name: p.name, Model: body.Model, Dimensions: body.Dimensions, Available: true}, nil
}

type embedRequestBody struct {
	Texts []string `json:"texts"`
}

type embedResponseBody struct {
	// Embeddings accepts both single-result and list-result shapes: most
	// providers return a list; a provider answering one text at a time
	// returns Embedding instead.
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
	Model      string      `json:"model"`
}

func (p *HTTPProvider) Embed(ctx context.Context, requests []EmbedRequest) ([]EmbedResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	texts := make([]string, len(requests))
	for i, r := range requests {
		texts[i] = r.Text
	}

	start := time.Now()
	payload, err := json.Marshal(embedRequestBody{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request to %s failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: %s returned status %d", p.name, resp.StatusCode)
	}

	var body embedResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}

	vectors := body.Embeddings
	if vectors == nil && body.Embedding != nil {
		vectors = [][]float32{body.Embedding}
	}
	if len(vectors) != len(requests) {
		return nil, fmt.Errorf("embedder: %s returned %d vectors for %d requests", p.name, len(vectors), len(requests))
	}

	elapsed := time.Since(start)
	results := make([]EmbedResult, len(vectors))
	for i, vec := range vectors {
		results[i] = EmbedResult{
			Vector:         vec,
			Model:          body.Model,
			Dimensions:     len(vec),
			ProcessingTime: elapsed,
		}
	}
	return results, nil
}
