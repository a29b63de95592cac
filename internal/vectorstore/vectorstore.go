// Package vectorstore defines the engine's Vector Store contract (spec §6,
// consumed-external-collaborator) and a chromem-go backed implementation of
// it.
package vectorstore

import "context"

// Metric names the similarity metric a collection is created with. The
// engine only ever requests Cosine, but the contract names the concept so
// an alternative Store can honor a different request.
type Metric string

const Cosine Metric = "cosine"

// VectorPoint is one embedded chunk: its id, its embedding, and an opaque
// string-valued payload used for later filtering (e.g. by file_path).
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Filter is an equality filter over a VectorPoint's payload: every key/value
// pair must match for a point to be selected.
type Filter map[string]string

// Store is the Vector Store contract described in spec §6.
type Store interface {
	CreateCollection(ctx context.Context, name string, dim int, metric Metric) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, name string, points []VectorPoint) error
	DeletePoints(ctx context.Context, name string, ids []string) error
	FindPointIDsByPayload(ctx context.Context, name string, filter Filter) ([]string, error)
}
