package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromemStore_upsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore()
	require.NoError(t, s.CreateCollection(ctx, "project-abc", 3, Cosine))

	point := VectorPoint{ID: "chunk-1", Vector: []float32{0.1, 0.2, 0.3}, Payload: map[string]string{"file_path": "a.go"}}
	require.NoError(t, s.Upsert(ctx, "project-abc", []VectorPoint{point}))
	require.NoError(t, s.Upsert(ctx, "project-abc", []VectorPoint{point}))

	ids, err := s.FindPointIDsByPayload(ctx, "project-abc", Filter{"file_path": "a.go"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chunk-1"}, ids)
}

func TestChromemStore_findPointIDsByPayloadFiltersByAllKeys(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore()
	require.NoError(t, s.CreateCollection(ctx, "proj", 3, Cosine))

	require.NoError(t, s.Upsert(ctx, "proj", []VectorPoint{
		{ID: "c1", Vector: []float32{1, 0, 0}, Payload: map[string]string{"file_path": "a.go", "language": "go"}},
		{ID: "c2", Vector: []float32{0, 1, 0}, Payload: map[string]string{"file_path": "a.go", "language": "python"}},
		{ID: "c3", Vector: []float32{0, 0, 1}, Payload: map[string]string{"file_path": "b.go", "language": "go"}},
	}))

	ids, err := s.FindPointIDsByPayload(ctx, "proj", Filter{"file_path": "a.go", "language": "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestChromemStore_deletePointsRemovesFromPayloadIndex(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore()
	require.NoError(t, s.CreateCollection(ctx, "proj", 3, Cosine))
	require.NoError(t, s.Upsert(ctx, "proj", []VectorPoint{
		{ID: "c1", Vector: []float32{1, 0, 0}, Payload: map[string]string{"file_path": "a.go"}},
	}))

	require.NoError(t, s.DeletePoints(ctx, "proj", []string{"c1"}))

	ids, err := s.FindPointIDsByPayload(ctx, "proj", Filter{"file_path": "a.go"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChromemStore_deleteCollectionClearsPayloadIndex(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore()
	require.NoError(t, s.CreateCollection(ctx, "proj", 3, Cosine))
	require.NoError(t, s.Upsert(ctx, "proj", []VectorPoint{
		{ID: "c1", Vector: []float32{1, 0, 0}, Payload: map[string]string{"file_path": "a.go"}},
	}))

	require.NoError(t, s.DeleteCollection(ctx, "proj"))

	ids, err := s.FindPointIDsByPayload(ctx, "proj", Filter{"file_path": "a.go"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChromemStore_upsertCreatesCollectionIfMissing(t *testing.T) {
	ctx := context.Background()
	s := NewChromemStore()

	err := s.Upsert(ctx, "auto-created", []VectorPoint{
		{ID: "c1", Vector: []float32{1, 0}, Payload: map[string]string{"file_path": "x.go"}},
	})
	require.NoError(t, err)

	ids, err := s.FindPointIDsByPayload(ctx, "auto-created", Filter{"file_path": "x.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}
