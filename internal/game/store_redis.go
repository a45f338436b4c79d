package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMatchStore keeps snapshots under a TTL so abandoned matches expire.
type RedisMatchStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisMatchStore(rdb *redis.Client, ttl time.Duration) *RedisMatchStore {
	return &RedisMatchStore{rdb: rdb, ttl: ttl}
}

func (s *RedisMatchStore) key(matchID string) string {
	return fmt.Sprintf("pingpong:match:%s", matchID)
}

func (s *RedisMatchStore) Save(ctx context.Context, matchID string, snap MatchSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(matchID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", matchID, err)
	}
	return nil
}

func (s *RedisMatchStore) Load(ctx context.Context, matchID string) (MatchSnapshot, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return MatchSnapshot{}, false, nil
	}
	if err != nil {
		return MatchSnapshot{}, false, fmt.Errorf("redis get %s: %w", matchID, err)
	}

	var snap MatchSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return MatchSnapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
