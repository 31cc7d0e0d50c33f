package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

const (
	executionKeyPrefix = "fnhub:execution:"
	executionIndexKey  = "fnhub:executions"
)

// DefaultTTL bounds how long execution records are kept.
const DefaultTTL = 24 * time.Hour

// ExecutionRepository stores executions as JSON values with a TTL and keeps
// a sorted-set index by creation time for listing.
type ExecutionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ execution.Repository = (*ExecutionRepository)(nil)

// NewClient connects and pings the server.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewExecutionRepository(client *redis.Client, ttl time.Duration) *ExecutionRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExecutionRepository{client: client, ttl: ttl}
}

func executionKey(id types.ID) string {
	return executionKeyPrefix + id.String()
}

func (r *ExecutionRepository) Create(ctx context.Context, exec *execution.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, executionKey(exec.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	return r.client.ZAdd(ctx, executionIndexKey, redis.Z{
		Score:  float64(exec.Request.CreateTime.Time().UnixMilli()),
		Member: exec.ID.String(),
	}).Err()
}

func (r *ExecutionRepository) Update(ctx context.Context, exec *execution.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, executionKey(exec.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return execution.ErrNotFound
	}
	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id types.ID) (*execution.Execution, error) {
	data, err := r.client.Get(ctx, executionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var exec execution.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// List pages through the index newest first. Index members whose record
// has expired are pruned.
func (r *ExecutionRepository) List(ctx context.Context, limit, offset int) ([]*execution.Execution, error) {
	ids, err := r.client.ZRevRange(ctx, executionIndexKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = executionKeyPrefix + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []*execution.Execution
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var exec execution.Execution
		if err := json.Unmarshal([]byte(s), &exec); err != nil {
			return nil, err
		}
		out = append(out, &exec)
	}
	if len(expired) > 0 {
		r.client.ZRem(ctx, executionIndexKey, expired...)
	}
	return out, nil
}
