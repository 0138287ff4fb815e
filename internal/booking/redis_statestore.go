package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

// RedisStateStore keeps conversation state in Redis so sessions survive
// process restarts and can be shared across replicas.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// Get loads the user's state, returning a fresh idle state when absent.
func (s *RedisStateStore) Get(ctx context.Context, chatID int64) (*State, error) {
	data, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if err == redis.Nil {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("booking: failed to load session: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("booking: failed to decode session: %w", err)
	}
	return &state, nil
}

// Put stores the user's state with the session TTL.
func (s *RedisStateStore) Put(ctx context.Context, chatID int64, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("booking: failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(chatID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("booking: failed to persist session: %w", err)
	}
	return nil
}

// Reset deletes the user's stored state.
func (s *RedisStateStore) Reset(ctx context.Context, chatID int64) error {
	if err := s.client.Del(ctx, sessionKey(chatID)).Err(); err != nil {
		return fmt.Errorf("booking: failed to reset session: %w", err)
	}
	return nil
}
