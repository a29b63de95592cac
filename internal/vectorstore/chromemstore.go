package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// unusedEmbeddingFunc is handed to chromem-go's CreateCollection, which
// requires one even though this store only ever upserts precomputed
// vectors (via Document.Embedding) and queries by id/payload, never by raw
// text. It must never actually run.
func unusedEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("vectorstore: embedding function invoked, but this store only accepts precomputed vectors")
}

// ChromemStore implements Store on top of an in-process chromem-go
// database. chromem-go has no native "list ids matching a metadata filter"
// query that doesn't also require a query vector, so ChromemStore keeps a
// small shadow payload index alongside each collection purely to answer
// FindPointIDsByPayload.
type ChromemStore struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	payloads    map[string]map[string]map[string]string // collection -> point id -> payload
}

// NewChromemStore creates an empty, in-memory vector store.
func NewChromemStore() *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		payloads:    make(map[string]map[string]map[string]string),
	}
}

func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dim int, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.db.GetOrCreateCollection(name, nil, unusedEmbeddingFunc)
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", name, err)
	}
	s.collections[name] = col
	if s.payloads[name] == nil {
		s.payloads[name] = make(map[string]map[string]string)
	}
	return nil
}

func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.DeleteCollection(name)
	delete(s.collections, name)
	delete(s.payloads, name)
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, name string, points []VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	col, ok := s.collections[name]
	if !ok {
		var err error
		col, err = s.db.GetOrCreateCollection(name, nil, unusedEmbeddingFunc)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("vectorstore: upsert into missing collection %s: %w", name, err)
		}
		s.collections[name] = col
	}
	if s.payloads[name] == nil {
		s.payloads[name] = make(map[string]map[string]string)
	}
	s.mu.Unlock()

	for _, p := range points {
		// chromem-go's vec0-style collections don't support INSERT OR
		// REPLACE; delete then add gives the idempotent-upsert semantics
		// the contract requires.
		_ = col.Delete(ctx, nil, nil, p.ID)

		doc := chromem.Document{
			ID:        p.ID,
			Embedding: p.Vector,
			Metadata:  p.Payload,
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("vectorstore: upsert point %s: %w", p.ID, err)
		}
	}

	s.mu.Lock()
	for _, p := range points {
		s.payloads[name][p.ID] = p.Payload
	}
	s.mu.Unlock()

	return nil
}

func (s *ChromemStore) DeletePoints(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	col, ok := s.collections[name]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("vectorstore: delete points from %s: %w", name, err)
	}

	s.mu.Lock()
	for _, id := range ids {
		delete(s.payloads[name], id)
	}
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) FindPointIDsByPayload(ctx context.Context, name string, filter Filter) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID, ok := s.payloads[name]
	if !ok {
		return nil, nil
	}

	var ids []string
	for id, payload := range byID {
		if matchesFilter(payload, filter) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func matchesFilter(payload map[string]string, filter Filter) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}
