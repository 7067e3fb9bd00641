package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/go-redis/redis/v8"
)

// RedisRepository keeps values in a hash and insertion order in a list.
type RedisRepository struct {
	client   redis.UniversalClient
	hashKey  string
	orderKey string
}

// NewRedisRepository returns a RedisRepository whose keys share prefix.
func NewRedisRepository(client redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "symbiobot:"
	}
	return &RedisRepository{
		client:   client,
		hashKey:  prefix + "profiles",
		orderKey: prefix + "profiles:order",
	}
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.HGet(ctx, r.hashKey, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return value, nil
}

func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	added, err := r.client.HSet(ctx, r.hashKey, key, value).Result()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	if added > 0 {
		if err := r.client.RPush(ctx, r.orderKey, key).Err(); err != nil {
			return fmt.Errorf("redis rpush: %w", err)
		}
	}
	return nil
}

// SetMany writes all records in one MULTI/EXEC block. Keys that are not yet
// present are appended to the order list in the given order.
func (r *RedisRepository) SetMany(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	existing, err := r.client.HKeys(ctx, r.hashKey).Result()
	if err != nil {
		return fmt.Errorf("redis hkeys: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		known[k] = struct{}{}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, rec := range recs {
			pipe.HSet(ctx, r.hashKey, rec.Key, rec.Value)
			if _, ok := known[rec.Key]; !ok {
				pipe.RPush(ctx, r.orderKey, rec.Key)
				known[rec.Key] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis batch: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.hashKey, key)
		pipe.LRem(ctx, r.orderKey, 0, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *RedisRepository) List(ctx context.Context) ([]Record, error) {
	keys, err := r.client.LRange(ctx, r.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := r.client.HMGet(ctx, r.hashKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	result := make([]Record, 0, len(keys))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		result = append(result, Record{Key: keys[i], Value: []byte(s)})
	}
	return result, nil
}
