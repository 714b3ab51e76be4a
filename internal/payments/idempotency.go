package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "__pending__"

// StoredResponse is a finished response kept for replay.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyStore remembers POST /payments responses per caller and Idempotency-Key.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewIdempotencyStore returns nil when client is nil; callers treat nil as disabled.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl, prefix: "idempotency:payments:"}
}

// Claim reserves key for the caller. It returns the stored response when the key
// already finished, or ErrRequestInFlight while another request holds it.
func (s *IdempotencyStore) Claim(ctx context.Context, email, key string) (*StoredResponse, error) {
	redisKey := s.key(email, key)
	ok, err := s.client.SetNX(ctx, redisKey, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("payments: idempotency claim: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.Claim(ctx, email, key)
	}
	if err != nil {
		return nil, fmt.Errorf("payments: idempotency lookup: %w", err)
	}
	if raw == pendingMarker {
		return nil, ErrRequestInFlight
	}
	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("payments: idempotency decode: %w", err)
	}
	return &stored, nil
}

// Complete stores the final response for replay.
func (s *IdempotencyStore) Complete(ctx context.Context, email, key string, resp StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("payments: idempotency encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(email, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("payments: idempotency store: %w", err)
	}
	return nil
}

// Release drops a claim so the client may retry after a failure that wrote nothing.
func (s *IdempotencyStore) Release(ctx context.Context, email, key string) error {
	if err := s.client.Del(ctx, s.key(email, key)).Err(); err != nil {
		return fmt.Errorf("payments: idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(email, key string) string {
	return s.prefix + strings.ToLower(strings.TrimSpace(email)) + ":" + strings.TrimSpace(key)
}
