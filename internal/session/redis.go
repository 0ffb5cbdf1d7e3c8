package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "user_state:"

type redisRecord struct {
	UserID       int64           `json:"user_id"`
	CurrentState string          `json:"current_state"`
	Context      json.RawMessage `json:"context"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RedisStore keeps one JSON document per user under "user_state:{id}".
// Keys carry no TTL.
type RedisStore struct {
	rdb redis.Cmdable
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(userID int64) string {
	return redisKeyPrefix + strconv.FormatInt(userID, 10)
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, userID int64) (Session, error) {
	data, err := r.rdb.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %d: %w", userID, err)
	}
	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Session{}, fmt.Errorf("decode session %d: %w", userID, err)
	}
	if len(rec.Context) == 0 {
		rec.Context = emptyContext
	}
	return Session{
		UserID:    rec.UserID,
		Mode:      Mode(rec.CurrentState),
		Context:   rec.Context,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	raw := s.Context
	if len(raw) == 0 {
		raw = emptyContext
	}
	data, err := json.Marshal(redisRecord{
		UserID:       s.UserID,
		CurrentState: string(s.Mode),
		Context:      raw,
		UpdatedAt:    s.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode session %d: %w", s.UserID, err)
	}
	if err := r.rdb.Set(ctx, redisKey(s.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}
