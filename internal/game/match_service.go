package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/pingpong-score/internal/metrics"
)

const persistTimeout = 2 * time.Second

// MatchService owns the live matches and restores them from the
// snapshot store after a restart.
type MatchService struct {
	mu sync.Mutex
	in map[string]*Match

	cfg     Config
	persist MatchPersistence
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewMatchService(cfg Config, persist MatchPersistence, log *slog.Logger, m *metrics.Metrics) *MatchService {
	if persist == nil {
		persist = NewInMemoryMatchStore()
	}
	if log == nil {
		log = slog.Default()
	}
	return &MatchService{
		in:      make(map[string]*Match),
		cfg:     cfg,
		persist: persist,
		log:     log,
		metrics: m,
	}
}

// NewMatchID returns a fresh id matching the /ws/{id} alphabet.
func NewMatchID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *MatchService) Create(ctx context.Context, matchID string) (*Match, error) {
	m := NewMatch(matchID, s.cfg, s.log, s.metrics)

	m.mu.Lock()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if err := s.persist.Save(ctx, matchID, snap); err != nil {
		return nil, fmt.Errorf("save new match: %w", err)
	}

	m.onPersist = s.persistHook(matchID)

	s.mu.Lock()
	s.in[matchID] = m
	s.mu.Unlock()

	s.log.Info("match created", "match_id", matchID)
	return m, nil
}

func (s *MatchService) GetOrLoad(ctx context.Context, matchID string) (*Match, bool, error) {
	s.mu.Lock()
	m, ok := s.in[matchID]
	s.mu.Unlock()
	if ok {
		return m, true, nil
	}

	snap, found, err := s.persist.Load(ctx, matchID)
	if err != nil {
		return nil, false, fmt.Errorf("load match %s: %w", matchID, err)
	}
	if !found {
		return nil, false, nil
	}

	m = NewMatch(matchID, s.cfg, s.log, s.metrics)
	m.mu.Lock()
	m.restoreLocked(snap)
	m.mu.Unlock()
	m.onPersist = s.persistHook(matchID)

	s.mu.Lock()
	// another request may have restored it first
	if existing, ok := s.in[matchID]; ok {
		s.mu.Unlock()
		return existing, true, nil
	}
	s.in[matchID] = m
	s.mu.Unlock()

	s.log.Info("match restored", "match_id", matchID, "phase", snap.State.Phase)
	return m, true, nil
}

// Close releases every voice session.
func (s *MatchService) Close() {
	s.mu.Lock()
	matches := make([]*Match, 0, len(s.in))
	for _, m := range s.in {
		matches = append(matches, m)
	}
	s.mu.Unlock()

	for _, m := range matches {
		m.Close()
	}
}

// persistHook runs under the match lock, detached from any request context.
func (s *MatchService) persistHook(matchID string) func(MatchSnapshot) {
	return func(snap MatchSnapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persist.Save(ctx, matchID, snap); err != nil {
			s.log.Warn("snapshot save failed", "match_id", matchID, "err", err)
		}
	}
}
