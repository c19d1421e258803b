// Package dedupe keeps a Redis ledger of handled event ids so that a
// redelivered event does not notify its recipient twice.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "talentcloud:handled:"
	DefaultTTL = 7 * 24 * time.Hour
)

// Store implements dispatch.Deduplicator.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(eventID string) string {
	return keyPrefix + eventID
}

// Seen reports whether eventID was marked as handled.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Mark records eventID as handled. The entry expires after the store's TTL,
// which bounds how late a redelivery can still be recognized.
func (s *Store) Mark(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, s.key(eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}
	return nil
}
