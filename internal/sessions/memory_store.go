package sessions

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu         sync.RWMutex
	byToken    map[string]Session
	injections []Injection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]Session),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[session.Token]; exists {
		return ErrSessionExists
	}
	s.byToken[session.Token] = session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, token string) (Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byToken[token]
	return session, ok, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byToken[session.Token]; !exists {
		return ErrSessionNotFound
	}
	s.byToken[session.Token] = session
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byToken, token)
	return nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Session, 0, len(s.byToken))
	for _, session := range s.byToken {
		result = append(result, session)
	}
	sortSessions(result)
	return result, nil
}

func (s *MemoryStore) RecordInjection(_ context.Context, entry Injection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.injections = append(s.injections, entry)
	return nil
}

func (s *MemoryStore) ListInjections(_ context.Context, limit int) ([]Injection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Injection, 0, len(s.injections))
	for i := len(s.injections) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, s.injections[i])
	}
	return result, nil
}

func sortSessions(list []Session) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].Token < list[j].Token
	})
}
