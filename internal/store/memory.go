package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process memory.
// It is meant for tests and local runs; nothing survives a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]map[string]any{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, dst any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	s.mu.RLock()
	doc, ok := s.data[collection][id]
	var b []byte
	var err error
	if ok {
		b, err = json.Marshal(doc)
	}
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, doc any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	fields, err := toFields(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = map[string]map[string]any{}
	}
	s.data[collection][id] = fields
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	patch, err := toFields(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := make(map[string]any, len(doc)+len(patch))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	s.data[collection][id] = merged
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.data[collection], id)
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ids := make([]string, 0, len(s.data[collection]))
	for id := range s.data[collection] {
		ids = append(ids, id)
	}
	// Stable base order so unordered queries are deterministic.
	sort.Strings(ids)
	docs := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, s.data[collection][id])
	}
	raws, err := applyQuery(docs, q)
	s.mu.RUnlock()
	return raws, err
}
