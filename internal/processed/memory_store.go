package processed

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	markers map[string]Marker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]Marker)}
}

func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.markers[key]
	return ok, nil
}

func (s *MemoryStore) Mark(_ context.Context, marker Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markers[marker.Key] = marker
	return nil
}

func (s *MemoryStore) Prune(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, marker := range s.markers {
		if marker.ProcessedAt.Before(olderThan) {
			delete(s.markers, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Marker, 0, len(s.markers))
	for _, marker := range s.markers {
		result = append(result, marker)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProcessedAt.After(result[j].ProcessedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
