package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed queue: LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	Client redis.UniversalClient
	Name   string
}

func NewRedisQueue(client redis.UniversalClient, name string) *RedisQueue {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	return &RedisQueue{Client: client, Name: name}
}

func (q *RedisQueue) deadName() string {
	return q.Name + deadSuffix
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	raw, err := encode(task)
	if err != nil {
		return err
	}
	return q.Client.LPush(ctx, q.Name, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	if wait <= 0 {
		wait = time.Second
	}
	res, err := q.Client.BRPop(ctx, wait, q.Name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop %s: unexpected reply %v", q.Name, res)
	}
	task, err := decode([]byte(res[1]))
	if err != nil {
		// An undecodable payload cannot be retried; park it as-is.
		_ = q.Client.LPush(ctx, q.deadName(), res[1]).Err()
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return task, nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, task Task, reason string) error {
	task.LastError = reason
	raw, err := encode(task)
	if err != nil {
		return err
	}
	return q.Client.LPush(ctx, q.deadName(), raw).Err()
}

func (q *RedisQueue) DeadLetterLen(ctx context.Context) (int64, error) {
	return q.Client.LLen(ctx, q.deadName()).Result()
}
