package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisQueue carries JSON task payloads between the dispatcher and the
// workers.
type RedisQueue struct {
	rdb       *redis.Client
	queueName string
}

func NewRedisQueue(rdb *redis.Client, queueName string) *RedisQueue {
	return &RedisQueue{rdb: rdb, queueName: queueName}
}

// Pop blocks until a payload is available (BRPOP).
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.rdb.BRPop(ctx, 0, q.queueName).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", nil
	}
	return res[1], nil
}

// Push enqueues a payload, used to hand retryable tasks back to the
// dispatcher.
func (q *RedisQueue) Push(ctx context.Context, payload string) error {
	return q.rdb.LPush(ctx, q.queueName, payload).Err()
}
