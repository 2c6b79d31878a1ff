package views

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const allocationsKeyPrefix = "allocations:"

// RedisStore keeps one hash per order, mapping sku to batch reference.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetAllocation(ctx context.Context, orderRef, sku, batchRef string) error {
	if err := s.client.HSet(ctx, allocationsKeyPrefix+orderRef, sku, batchRef).Err(); err != nil {
		return fmt.Errorf("failed to set allocation %s/%s: %w", orderRef, sku, err)
	}
	return nil
}

func (s *RedisStore) RemoveAllocation(ctx context.Context, orderRef, sku string) error {
	if err := s.client.HDel(ctx, allocationsKeyPrefix+orderRef, sku).Err(); err != nil {
		return fmt.Errorf("failed to remove allocation %s/%s: %w", orderRef, sku, err)
	}
	return nil
}

func (s *RedisStore) Allocations(ctx context.Context, orderRef string) ([]Allocation, error) {
	fields, err := s.client.HGetAll(ctx, allocationsKeyPrefix+orderRef).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read allocations for %s: %w", orderRef, err)
	}

	rows := make([]Allocation, 0, len(fields))
	for sku, batchRef := range fields {
		rows = append(rows, Allocation{OrderRef: orderRef, SKU: sku, BatchRef: batchRef})
	}
	sortBySKU(rows)
	return rows, nil
}
