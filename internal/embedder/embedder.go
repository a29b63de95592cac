// Package embedder defines the engine's Embedder contract (spec §6,
// consumed-external-collaborator): provider_info() and embed(), plus a
// per-provider default-dimension fallback table used when a provider is
// unreachable.
package embedder

import (
	"context"
	"strings"
	"time"
)

// Metadata carries through an embed request unchanged, for the caller to
// re-associate a result with its source chunk.
type Metadata map[string]string

// EmbedRequest is one item submitted to Provider.Embed.
type EmbedRequest struct {
	Text     string
	Metadata Metadata
}

// EmbedResult is the embedding produced for one EmbedRequest, in the same
// order as the request slice.
type EmbedResult struct {
	Vector         []float32
	Model          string
	Dimensions     int
	ProcessingTime time.Duration
}

// Info describes a provider's identity and availability, as returned by
// Provider.Info.
type Info struct {
	Name        string
	Model       string
	Dimensions  int
	Available   bool
}

// Provider is the Embedder contract described in spec §6.
type Provider interface {
	Info(ctx context.Context) (Info, error)
	Embed(ctx context.Context, requests []EmbedRequest) ([]EmbedResult, error)
}

// DefaultDimensions is the fallback dimension table consulted when a
// provider is unreachable and its real dimensionality can't be queried.
func DefaultDimensions(providerName string) int {
	switch {
	case providerName == "openai":
		return 1536
	case providerName == "ollama":
		return 768
	case providerName == "gemini":
		return 768
	case providerName == "mistral":
		return 1024
	case providerName == "siliconflow":
		return 1024
	case strings.HasPrefix(providerName, "custom"):
		return 768
	default:
		return 1024
	}
}

// ResolveDimensions queries provider for its real dimensionality, falling
// back to DefaultDimensions(providerName) if the provider is unreachable or
// reports itself unavailable.
func ResolveDimensions(ctx context.Context, provider Provider, providerName string) int {
	info, err := provider.Info(ctx)
	if err != nil || !info.Available || info.Dimensions <= 0 {
		return DefaultDimensions(providerName)
	}
	return info.Dimensions
}
