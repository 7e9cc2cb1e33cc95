package orderqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// drainScript reads the head range and trims exactly the returned items in a
// single server-side step, so concurrent drains never see the same record.
var drainScript = redis.NewScript(`
local key = KEYS[1]
local max = tonumber(ARGV[1])
local items = redis.call('LRANGE', key, 0, max - 1)
if #items > 0 then
  redis.call('LTRIM', key, #items, -1)
end
return items
`)

// RedisQueue is a Queue backed by a Redis list
type RedisQueue struct {
	client    redis.UniversalClient
	key       string
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewRedisQueue creates a queue on key. A non-positive opTimeout disables the
// per-operation deadline and leaves only the caller's context.
func NewRedisQueue(client redis.UniversalClient, key string, opTimeout time.Duration, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{
		client:    client,
		key:       key,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

func (q *RedisQueue) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.opTimeout)
}

// Push appends record to the tail of the list
func (q *RedisQueue) Push(ctx context.Context, record []byte) error {
	if len(record) == 0 {
		return ErrEmptyRecord
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	if err := q.client.RPush(ctx, q.key, record).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", q.key, err)
	}
	return nil
}

// DrainHead removes and returns up to max records from the head
func (q *RedisQueue) DrainHead(ctx context.Context, max int) ([][]byte, error) {
	if max <= 0 {
		return [][]byte{}, nil
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	items, err := drainScript.Run(ctx, q.client, []string{q.key}, max).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("drain %s: %w", q.key, err)
	}

	records := make([][]byte, 0, len(items))
	for _, item := range items {
		records = append(records, []byte(item))
	}
	if len(records) > 0 {
		q.logger.Debug("Drained order queue",
			zap.String("key", q.key),
			zap.Int("count", len(records)))
	}
	return records, nil
}

// Len returns the current list length
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()

	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", q.key, err)
	}
	return n, nil
}
