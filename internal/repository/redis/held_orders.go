package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/pos-register/internal/domain"
)

// KeyPrefix is followed by the terminal ID.
const KeyPrefix = "pos:held_orders:"

// HeldOrderStore implements repository.HeldOrderStore using Redis. Each
// terminal's held orders are one JSON array under a single key.
type HeldOrderStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHeldOrderStore creates a Redis-backed held order store. A zero ttl keeps
// keys until they are overwritten.
func NewHeldOrderStore(client *redis.Client, ttl time.Duration) *HeldOrderStore {
	return &HeldOrderStore{
		client: client,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding a terminal's held orders.
func Key(terminalID string) string {
	return KeyPrefix + terminalID
}

// Load reads and decodes the held orders of a terminal.
func (s *HeldOrderStore) Load(ctx context.Context, terminalID string) ([]domain.HeldOrder, error) {
	data, err := s.client.Get(ctx, Key(terminalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.HeldOrder{}, nil
		}
		return nil, fmt.Errorf("redis get held orders: %w", err)
	}

	var held []domain.HeldOrder
	if err := json.Unmarshal(data, &held); err != nil {
		return nil, fmt.Errorf("unmarshal held orders: %w", err)
	}
	if held == nil {
		held = []domain.HeldOrder{}
	}
	for i := range held {
		if held[i].Cart.Items == nil {
			held[i].Cart.Items = []domain.LineItem{}
		}
	}
	return held, nil
}

// Save writes the full held-order list of a terminal.
func (s *HeldOrderStore) Save(ctx context.Context, terminalID string, held []domain.HeldOrder) error {
	if held == nil {
		held = []domain.HeldOrder{}
	}
	data, err := json.Marshal(held)
	if err != nil {
		return fmt.Errorf("marshal held orders: %w", err)
	}

	if err := s.client.Set(ctx, Key(terminalID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set held orders: %w", err)
	}
	return nil
}
