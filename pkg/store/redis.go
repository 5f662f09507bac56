package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
)

const (
	redisReceiptPrefix = "shadowlock:receipt:"
	redisReceiptIndex  = "shadowlock:receipts"
)

// RedisReceiptStore keeps each receipt as a JSON value and orders them in a
// sorted set scored by timestamp.
type RedisReceiptStore struct {
	client *redis.Client
}

func NewRedisReceiptStore(client *redis.Client) *RedisReceiptStore {
	return &RedisReceiptStore{client: client}
}

func (s *RedisReceiptStore) Store(ctx context.Context, r *receipts.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	// One MULTI/EXEC: the key and its index entry land together. ZADD NX
	// keeps the first writer's score and re-indexes a key left unindexed.
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisReceiptPrefix+r.ReceiptID, data, 0)
		pipe.ZAddNX(ctx, redisReceiptIndex, redis.Z{
			Score:  float64(r.Timestamp.UnixMilli()),
			Member: r.ReceiptID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}
	return nil
}

func (s *RedisReceiptStore) Get(ctx context.Context, receiptID string) (*receipts.Receipt, error) {
	data, err := s.client.Get(ctx, redisReceiptPrefix+receiptID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var r receipts.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt %s: %w", receiptID, err)
	}
	return &r, nil
}

func (s *RedisReceiptStore) List(ctx context.Context, limit int) ([]*receipts.Receipt, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, redisReceiptIndex, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisReceiptPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*receipts.Receipt, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// indexed but expired or deleted
			continue
		}
		var r receipts.Receipt
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("failed to decode receipt %s: %w", ids[i], err)
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *RedisReceiptStore) Close() error {
	return s.client.Close()
}
