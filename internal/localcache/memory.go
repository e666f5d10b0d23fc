package localcache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"agrochat/internal/domain"
)

// MemoryStore implementa Store en memoria. Se usa en tests y como último
// recurso cuando el driver durable no puede abrirse.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, key string, session domain.ChatSession) error {
	val, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = val
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (*domain.ChatSession, error) {
	s.mu.Lock()
	val, ok := s.items[key]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var session domain.ChatSession
	if err := json.Unmarshal(val, &session); err != nil {
		// Payload corrupto: se trata como ausente.
		return nil, nil
	}
	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) PurgeAll(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			delete(s.items, k)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
