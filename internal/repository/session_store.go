package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rps_arena/internal/domain"
	"rps_arena/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

const (
	matchKeyPrefix = "rps:match:"
	activeSetKey   = "rps:matches:active"
)

// SessionStore keeps snapshots of live matches in Redis so the engine can
// pick them up again after a restart.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func matchKey(id string) string {
	return matchKeyPrefix + id
}

// Save writes the snapshot and tracks the match in the active set until it
// is finished and settled
func (s *SessionStore) Save(ctx context.Context, snap *domain.MatchSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, matchKey(snap.Session.ID), b, s.ttl)
	if snap.Session.Finished() && snap.Settled {
		pipe.SRem(ctx, activeSetKey, snap.Session.ID)
	} else {
		pipe.SAdd(ctx, activeSetKey, snap.Session.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Delete drops a match snapshot
func (s *SessionStore) Delete(ctx context.Context, matchID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, matchKey(matchID))
	pipe.SRem(ctx, activeSetKey, matchID)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadAll returns the snapshots of every match still marked active.
// Ids whose snapshot expired are pruned from the set.
func (s *SessionStore) LoadAll(ctx context.Context) ([]*domain.MatchSnapshot, error) {
	ids, err := s.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}

	var res []*domain.MatchSnapshot
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, matchKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			s.rdb.SRem(ctx, activeSetKey, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load match %s: %w", id, err)
		}

		var snap domain.MatchSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			logger.Warn("skipping undecodable match snapshot", "match_id", id, "error", err)
			continue
		}
		res = append(res, &snap)
	}
	return res, nil
}
