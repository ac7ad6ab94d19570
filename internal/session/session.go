// Package session implements the Bearer-token session store of spec §4.F
// on top of Redis: set-with-ttl, get, expire, delete, the same primitive
// operations playpool's idle worker uses against its own Redis sorted
// sets and string keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seednode/jarlsd/internal/ids"
)

const ttl = 24 * time.Hour

func keyFor(token string) string {
	return "session:" + token
}

// Data is what's stored under session:{token}.
type Data struct {
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// Store is a thin Redis-backed session store.
type Store struct {
	rdb *redis.Client
}

// Open parses a redis:// URL and returns a connected Store.
func Open(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Create mints a fresh 256-bit token and stores data under it with a 24h
// TTL, per §4.F.
func (s *Store) Create(ctx context.Context, data Data) (string, error) {
	token, err := ids.NewSessionToken()
	if err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}

	blob, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("session: marshal: %w", err)
	}

	if err := s.rdb.Set(ctx, keyFor(token), blob, ttl).Err(); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	return token, nil
}

// Validate looks up a session, returning ok=false for a missing/expired
// token.
func (s *Store) Validate(ctx context.Context, token string) (Data, bool, error) {
	raw, err := s.rdb.Get(ctx, keyFor(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, false, nil
	}
	if err != nil {
		return Data{}, false, fmt.Errorf("session: get: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, false, fmt.Errorf("session: unmarshal: %w", err)
	}
	return data, true, nil
}

// Extend refreshes a session's TTL to 24h, called on every authenticated
// operation.
func (s *Store) Extend(ctx context.Context, token string) error {
	ok, err := s.rdb.Expire(ctx, keyFor(token), ttl).Result()
	if err != nil {
		return fmt.Errorf("session: extend: %w", err)
	}
	if !ok {
		return errors.New("session: token not found")
	}
	return nil
}

// Invalidate explicitly deletes a session.
func (s *Store) Invalidate(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, keyFor(token)).Err(); err != nil {
		return fmt.Errorf("session: invalidate: %w", err)
	}
	return nil
}
