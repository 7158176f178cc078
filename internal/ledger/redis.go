package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slot-settlement/internal/status"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ledger:"

// RedisStore executes each instruction as an optimistic redis transaction:
// every record read is WATCHed and the staged writes go out in one
// MULTI/EXEC. A watched key changing underneath surfaces as
// status.ErrConcurrentModification.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(key string) string { return redisKeyPrefix + key }

func (s *RedisStore) Execute(ctx context.Context, fn func(tx *Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := newTx(ctx, func(ctx context.Context, key string) ([]byte, error) {
			rk := redisKey(key)
			if err := rtx.Watch(ctx, rk).Err(); err != nil {
				return nil, err
			}
			v, err := rtx.Get(ctx, rk).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			return v, err
		})

		if err := fn(tx); err != nil {
			return err
		}
		if !tx.Dirty() {
			return nil
		}

		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range tx.writes {
				if w.value == nil {
					pipe.Del(ctx, redisKey(w.key))
					continue
				}
				pipe.Set(ctx, redisKey(w.key), w.value, 0)
			}
			return nil
		})
		return err
	})
	if errors.Is(err, redis.TxFailedErr) {
		slog.Warn("ledger transaction aborted by concurrent write")
		return status.ErrConcurrentModification
	}
	return err
}

// Peek reads one record outside any transaction.
func (s *RedisStore) Peek(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger peek %s: %w", key, err)
	}
	return Unmarshal(data, v)
}

func (s *RedisStore) Close() error { return s.client.Close() }
