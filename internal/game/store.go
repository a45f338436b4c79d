package game

import (
	"context"
	"sync"
)

// MatchPersistence stores match snapshots.
type MatchPersistence interface {
	Save(ctx context.Context, matchID string, snap MatchSnapshot) error
	Load(ctx context.Context, matchID string) (MatchSnapshot, bool, error)
}

// InMemoryMatchStore keeps snapshots in process. Used when Redis is off.
type InMemoryMatchStore struct {
	mu sync.Mutex
	m  map[string]MatchSnapshot
}

func NewInMemoryMatchStore() *InMemoryMatchStore {
	return &InMemoryMatchStore{
		m: make(map[string]MatchSnapshot),
	}
}

func (s *InMemoryMatchStore) Save(_ context.Context, matchID string, snap MatchSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[matchID] = snap
	return nil
}

func (s *InMemoryMatchStore) Load(_ context.Context, matchID string) (MatchSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[matchID]
	return snap, ok, nil
}
