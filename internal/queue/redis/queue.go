// Package redis provides a Redis list backed task queue shared between the
// API and worker processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/snapshot"
)

const (
	defaultQueueName    = "memote:queue:snapshots"
	defaultPollInterval = time.Second
)

// Config names the list and how long each blocking pop waits.
type Config struct {
	Name         string
	PollInterval time.Duration
}

// Queue pushes items with LPUSH and pops them with BRPOP, giving FIFO order.
type Queue struct {
	client *goredis.Client
	name   string
	poll   time.Duration
	logger *zap.Logger
}

// NewQueue wraps client.
func NewQueue(client *goredis.Client, cfg Config, logger *zap.Logger) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Name == "" {
		cfg.Name = defaultQueueName
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, name: cfg.Name, poll: cfg.PollInterval, logger: logger}, nil
}

// Enqueue pushes a job onto the list.
func (q *Queue) Enqueue(ctx context.Context, item snapshot.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", item.JobID, err)
	}
	q.logger.Debug("job enqueued in redis", zap.String("queue", q.name), zap.String("job_id", item.JobID))
	return nil
}

// Dequeue blocks until an item arrives or ctx ends. It polls in short BRPOP
// rounds so cancellation is observed promptly.
func (q *Queue) Dequeue(ctx context.Context) (snapshot.QueueItem, error) {
	for {
		if err := ctx.Err(); err != nil {
			return snapshot.QueueItem{}, fmt.Errorf("dequeue canceled: %w", err)
		}
		res, err := q.client.BRPop(ctx, q.poll, q.name).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return snapshot.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctxErr)
			}
			return snapshot.QueueItem{}, fmt.Errorf("dequeue: %w", err)
		}
		// BRPOP replies with the list name followed by the value.
		if len(res) != 2 {
			return snapshot.QueueItem{}, fmt.Errorf("dequeue: unexpected reply %v", res)
		}
		var item snapshot.QueueItem
		if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
			return snapshot.QueueItem{}, fmt.Errorf("decode queue item: %w", err)
		}
		return item, nil
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
