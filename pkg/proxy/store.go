package proxy

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StaticStore is an in-memory Store mapping handler names to target
// URLs. Safe for concurrent use.
type StaticStore struct {
	mu      sync.RWMutex
	targets map[string]string
}

// NewStaticStore creates a static target store.
func NewStaticStore(targets map[string]string) *StaticStore {
	if targets == nil {
		targets = make(map[string]string)
	}
	return &StaticStore{targets: targets}
}

// Set registers or replaces a target for a handler name.
func (s *StaticStore) Set(handlerName, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[handlerName] = target
}

// Get implements Store. A missing entry resolves to no target.
func (s *StaticStore) Get(_ context.Context, handlerName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targets[handlerName], nil
}

// RedisTargetStore resolves proxy targets from Redis, keyed by handler
// name under a configurable prefix. A missing key resolves to no
// target, letting the terminal handler run.
type RedisTargetStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTargetStore creates a Redis-backed target store.
func NewRedisTargetStore(client *redis.Client, keyPrefix string) *RedisTargetStore {
	if keyPrefix == "" {
		keyPrefix = "vireo:proxy:"
	}
	return &RedisTargetStore{client: client, keyPrefix: keyPrefix}
}

// Get implements Store.
func (s *RedisTargetStore) Get(ctx context.Context, handlerName string) (string, error) {
	target, err := s.client.Get(ctx, s.keyPrefix+handlerName).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return target, nil
}
