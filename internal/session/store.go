// Package session keeps the request-scoped checkout state that used
// to live in browser storage: the pending order reference a success
// page can fall back to, and the cart snapshot to clear once the
// order is resolved.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("session entry not found")

type Cart struct {
	Items []CartItem `json:"items"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps a redis client. ttl bounds how long a pending
// reference survives a stalled gateway handoff; expiry doubles as the
// fallback-timer cancellation, so nothing is left to tear down.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

func refKey(sessionID string) string  { return fmt.Sprintf("checkout:ref:%s", sessionID) }
func cartKey(sessionID string) string { return fmt.Sprintf("checkout:cart:%s", sessionID) }

func (s *Store) SetPendingReference(ctx context.Context, sessionID, orderNumber string) error {
	if err := s.client.Set(ctx, refKey(sessionID), orderNumber, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) PendingReference(ctx context.Context, sessionID string) (string, error) {
	v, err := s.client.Get(ctx, refKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (s *Store) ClearPendingReference(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, refKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *Store) SetCart(ctx context.Context, sessionID string, cart *Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Cart(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
