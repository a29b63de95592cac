package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"
)

// MockProvider generates deterministic embeddings from a text's hash. It
// never fails to resolve a dimension and is reported available unless
// SetEmbedError has configured a failure, which makes it a safe default for
// a project that hasn't configured a real provider yet.
type MockProvider struct {
	mu         sync.Mutex
	dimensions int
	model      string
	embedError error
}

// NewMockProvider creates a deterministic, in-process embedding provider.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &MockProvider{dimensions: dimensions, model: "mock-hash-embed"}
}

// SetEmbedError configures the mock to fail its next Embed calls, for
// exercising the engine's EmbedderUnavailable recovery path.
func (p *MockProvider) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedError = err
}

func (p *MockProvider) Info(ctx context.Context) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{Name: "mock", Model: p.model, Dimensions: p.dimensions, Available: p.embedError == nil}, nil
}

func (p *MockProvider) Embed(ctx context.Context, requests []EmbedRequest) ([]EmbedResult, error) {
	p.mu.Lock()
	embedError := p.embedError
	dims := p.dimensions
	model := p.model
	p.mu.Unlock()

	if embedError != nil {
		return nil, embedError
	}

	results := make([]EmbedResult, len(requests))
	for i, req := range requests {
		start := time.Now()
		results[i] = EmbedResult{
			Vector:         hashEmbedding(req.Text, dims),
			Model:          model,
			Dimensions:     dims,
			ProcessingTime: time.Since(start),
		}
	}
	return results, nil
}

// hashEmbedding turns text into a deterministic, reproducible vector of the
// requested dimensionality, normalized to [-1, 1].
func hashEmbedding(text string, dimensions int) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, dimensions)
	for j := 0; j < dimensions; j++ {
		offset := (j * 4) % len(hash)
		val := binary.BigEndian.Uint32(hash[offset : offset+4])
		vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
	}
	return vec
}
