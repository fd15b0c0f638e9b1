// Package memory is an in-process offline cache store. Contents are lost when
// the process exits.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/centelha-ai/centelha/pkg/models"
)

// Store keeps namespaces in maps guarded by a read/write lock.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]models.CacheEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{namespaces: make(map[string]map[string]models.CacheEntry)}
}

func (s *Store) Open(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[namespace]; !ok {
		s.namespaces[namespace] = make(map[string]models.CacheEntry)
	}
	return nil
}

func (s *Store) Match(_ context.Context, namespace, key string) (models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.namespaces[namespace][key]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return entry.Clone(), true, nil
}

func (s *Store) Put(_ context.Context, namespace string, entry models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[namespace]
	if !ok {
		return fmt.Errorf("memory: put %s: %w", namespace, models.ErrNamespaceNotFound)
	}
	ns[entry.Key] = entry.Clone()
	return nil
}

func (s *Store) Namespaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) DeleteNamespace(_ context.Context, namespace string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.namespaces[namespace]
	delete(s.namespaces, namespace)
	return ok, nil
}

func (s *Store) Len(_ context.Context, namespace string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.namespaces[namespace])), nil
}

func (s *Store) Close() error { return nil }
