package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrEmpty = errors.New("queue: empty")

// Queue 基于 Redis list 的简单任务队列，LPUSH 入队 BRPOP 出队
type Queue struct {
	rdb *redis.Client
	key string
}

func New(rdb *redis.Client, key string) *Queue {
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Key() string {
	return q.key
}

func (q *Queue) Push(ctx context.Context, job interface{}) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, payload).Err()
}

// Pop 阻塞等待最多 timeout，超时返回 ErrEmpty
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	// BRPOP 以秒为单位，小于 1s 会变成 0 即永久阻塞
	if timeout < time.Second {
		timeout = time.Second
	}
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	// res[0] 是 key, res[1] 是值
	return []byte(res[1]), nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Consume 循环出队直到 ctx 取消；handler 的错误交给 onError
func (q *Queue) Consume(ctx context.Context, handler func(context.Context, []byte) error, onError func(error)) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := q.Pop(ctx, time.Second)
		if errors.Is(err, ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onError(err)
			// 连接异常时退避，避免空转
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := handler(ctx, payload); err != nil {
			onError(err)
		}
	}
}
