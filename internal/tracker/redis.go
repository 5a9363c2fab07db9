package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

const (
	keyPrefix     = "compilation:job:"
	maxTxAttempts = 5
)

// RedisTracker keeps jobs in Redis so the API and workers share one view.
// Expiry is delegated to Redis key TTLs.
type RedisTracker struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisTracker connects to Redis and verifies the connection
func NewRedisTracker(host string, port int, password string, db int, retention time.Duration) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTracker{client: client, retention: retention, now: time.Now}, nil
}

// Close closes the Redis connection
func (r *RedisTracker) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection
func (r *RedisTracker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func jobKey(jobID string) string {
	return keyPrefix + jobID
}

// Create registers a new job
func (r *RedisTracker) Create(ctx context.Context, state models.JobState) error {
	state, _ = merge(nil, state)
	state.UpdatedAt = r.now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := r.client.SetNX(ctx, jobKey(state.JobID), data, r.retention).Result()
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !ok {
		return ErrJobExists
	}
	return nil
}

// Update replaces the stored snapshot inside a WATCH transaction so that
// concurrent writers cannot move progress backwards
func (r *RedisTracker) Update(ctx context.Context, state models.JobState) error {
	key := jobKey(state.JobID)

	txf := func(tx *redis.Tx) error {
		prev, err := getState(ctx, tx, key)
		if err != nil {
			return err
		}

		next, err := merge(prev, state)
		if err != nil {
			return err
		}
		next.UpdatedAt = r.now()

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.retention)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to update job: %w", err)
	}

	return fmt.Errorf("failed to update job %s: too much contention", state.JobID)
}

// Get returns the snapshot, or nil on a miss
func (r *RedisTracker) Get(ctx context.Context, jobID string) (*models.JobState, error) {
	state, err := getState(ctx, r.client, jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return state, nil
}

// Delete forgets a job
func (r *RedisTracker) Delete(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, jobKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func getState(ctx context.Context, c redis.Cmdable, key string) (*models.JobState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var state models.JobState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &state, nil
}
