package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/colsplit/internal/core"
)

// redisOpTimeout bounds each Redis round trip.
const redisOpTimeout = 15 * time.Second

// RedisTaskStore keeps each task as a JSON value under
// "<prefix>:task:<id>". Every write resets the key's TTL to the retention
// window, so a task expires a fixed time after its last change.
type RedisTaskStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisTaskStore connects to the server at url and checks it answers.
func NewRedisTaskStore(ctx context.Context, url, keyPrefix string, ttl time.Duration) (*RedisTaskStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisTaskStoreFromClient(client, keyPrefix, ttl), nil
}

// NewRedisTaskStoreFromClient wraps an existing client.
func NewRedisTaskStoreFromClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisTaskStore {
	return &RedisTaskStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisTaskStore) key(id string) string {
	if s.keyPrefix == "" {
		return "task:" + id
	}
	return s.keyPrefix + ":task:" + id
}

func (s *RedisTaskStore) derCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, redisOpTimeout)
}

func (s *RedisTaskStore) Create(ctx context.Context, task core.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	ctx, cancel := s.derCtx(ctx)
	defer cancel()

	ok, err := s.client.SetNX(ctx, s.key(task.ID), body, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create task %s: %w", task.ID, err)
	}
	if !ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	return nil
}

func (s *RedisTaskStore) Get(ctx context.Context, id string) (core.Task, error) {
	ctx, cancel := s.derCtx(ctx)
	defer cancel()

	body, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Task{}, core.ErrTaskNotFound
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("redis get task %s: %w", id, err)
	}

	var task core.Task
	if err := json.Unmarshal(body, &task); err != nil {
		return core.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return task, nil
}

func (s *RedisTaskStore) Update(ctx context.Context, task core.Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	ctx, cancel := s.derCtx(ctx)
	defer cancel()

	ok, err := s.client.SetXX(ctx, s.key(task.ID), body, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis update task %s: %w", task.ID, err)
	}
	if !ok {
		return core.ErrTaskNotFound
	}
	return nil
}

// Close releases the client's connections.
func (s *RedisTaskStore) Close() error {
	return s.client.Close()
}
