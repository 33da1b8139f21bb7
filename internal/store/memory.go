package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store with the same semantics as the real
// backends. It backs the test suites; nothing in production wiring uses it.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]json.RawMessage
	children map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]json.RawMessage),
		children: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Read(_ context.Context, path string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.docs[path]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), value...), true, nil
}

func (s *MemoryStore) Write(_ context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path, data)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]json.RawMessage)
	if existing, ok := s.docs[path]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("decode document for update: %w", err)
		}
	}
	for k, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal field %q: %w", k, err)
		}
		merged[k] = data
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal merged document: %w", err)
	}
	s.put(path, data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, path)
	parent, key := Split(path)
	if kids, ok := s.children[parent]; ok {
		delete(kids, key)
	}
	return nil
}

func (s *MemoryStore) RangeQuery(_ context.Context, parent, orderField string, opts RangeOptions) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for key := range s.children[parent] {
		value, ok := s.docs[Join(parent, key)]
		if !ok {
			continue
		}
		docs = append(docs, Document{Key: key, Value: append(json.RawMessage(nil), value...)})
	}
	return applyRange(docs, orderField, opts), nil
}

func (s *MemoryStore) ConditionalSet(_ context.Context, path string, value any) (bool, json.RawMessage, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, nil, fmt.Errorf("marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.docs[path]; ok {
		return false, append(json.RawMessage(nil), current...), nil
	}
	s.put(path, data)
	return true, nil, nil
}

// put stores a document and registers it with its parent. Callers hold mu.
func (s *MemoryStore) put(path string, data json.RawMessage) {
	s.docs[path] = data
	parent, key := Split(path)
	if s.children[parent] == nil {
		s.children[parent] = make(map[string]struct{})
	}
	s.children[parent][key] = struct{}{}
}
