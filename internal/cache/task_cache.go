package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskmanager/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// TaskCache stores each user's task list.
//
// Readers call Generation before loading the list from the database and pass
// the value to Set, so a list read before an Invalidate is never stored.
type TaskCache interface {
	// Get returns the cached list and whether it was present.
	Get(ctx context.Context, userID uuid.UUID) ([]models.Task, bool, error)
	Generation(ctx context.Context, userID uuid.UUID) (int64, error)
	// Set stores tasks unless the list was invalidated after gen was read.
	Set(ctx context.Context, userID uuid.UUID, gen int64, tasks []models.Task) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("tasks:user:%s", userID)
}

func genKey(userID uuid.UUID) string {
	return key(userID) + ":gen"
}

var errStale = errors.New("stale task list")

// RedisTaskCache keeps task lists as JSON under tasks:user:<id>, with a
// counter under tasks:user:<id>:gen bumped on every invalidation.
type RedisTaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTaskCache stores lists in client for ttl.
func NewRedisTaskCache(client *redis.Client, ttl time.Duration) *RedisTaskCache {
	return &RedisTaskCache{client: client, ttl: ttl}
}

func (c *RedisTaskCache) Get(ctx context.Context, userID uuid.UUID) ([]models.Task, bool, error) {
	cached, err := c.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	tasks := []models.Task{}
	if err := json.Unmarshal(cached, &tasks); err != nil {
		// a corrupt entry is treated as a miss and dropped
		c.client.Del(ctx, key(userID))
		return nil, false, fmt.Errorf("decode cached tasks: %w", err)
	}
	return tasks, true, nil
}

func (c *RedisTaskCache) Generation(ctx context.Context, userID uuid.UUID) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (c *RedisTaskCache) Set(ctx context.Context, userID uuid.UUID, gen int64, tasks []models.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey(userID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(userID), data, c.ttl)
			return nil
		})
		return err
	}, genKey(userID))

	// an invalidation won the race; the next reader repopulates
	if errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisTaskCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(userID))
		pipe.Del(ctx, key(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

// Nop is used when Redis is not configured. Every Get is a miss.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID) ([]models.Task, bool, error) { return nil, false, nil }
func (Nop) Generation(context.Context, uuid.UUID) (int64, error)        { return 0, nil }
func (Nop) Set(context.Context, uuid.UUID, int64, []models.Task) error  { return nil }
func (Nop) Invalidate(context.Context, uuid.UUID) error                 { return nil }
