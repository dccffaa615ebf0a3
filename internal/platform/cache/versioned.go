package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Versioned wraps Redis JSON caching behind a namespace-wide version counter.
// Bumping the version orphans every key built before the bump.
type Versioned struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	observed  atomic.Int64
}

// NewVersioned instantiates the cache helper. A nil client disables caching:
// every fetch goes straight to the loader.
func NewVersioned(client *redis.Client, namespace string, ttl time.Duration) *Versioned {
	return &Versioned{client: client, namespace: namespace, ttl: ttl}
}

func (c *Versioned) versionKey() string {
	return c.namespace + ":version"
}

func (c *Versioned) channel() string {
	return c.namespace + ".bump"
}

// Enabled reports whether a Redis client backs the cache.
func (c *Versioned) Enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising when missing.
func (c *Versioned) Version(ctx context.Context) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, c.versionKey(), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, c.versionKey()).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes namespace, parts and the current version.
func (c *Versioned) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{c.namespaceOrDefault()}, parts...), ":")
	if !c.Enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

func (c *Versioned) namespaceOrDefault() string {
	if c == nil || c.namespace == "" {
		return "cache"
	}
	return c.namespace
}

// FetchJSON loads a cached value into dest or populates it using loader.
// The boolean reports a cache hit.
func (c *Versioned) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (bool, error) {
	if loader == nil {
		return false, errors.New("platform/cache: loader required")
	}
	if c.Enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c.Enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates the namespace and publishes the new version.
func (c *Versioned) Bump(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, c.versionKey()).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, c.channel(), strconv.FormatInt(ver, 10)).Err()
}

// Observed returns the highest version announced on the bump channel since
// ListenForInvalidation started.
func (c *Versioned) Observed() int64 {
	if c == nil {
		return 0
	}
	return c.observed.Load()
}

func (c *Versioned) observe(ver int64) {
	for {
		cur := c.observed.Load()
		if ver <= cur || c.observed.CompareAndSwap(cur, ver) {
			return
		}
	}
}

// ListenForInvalidation follows version bumps published by other processes
// until ctx is cancelled. The shared version key is only written by Bump.
func (c *Versioned) ListenForInvalidation(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, c.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					c.observe(ver)
				}
			}
		}
	}()
	return nil
}
