package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redhat-data-and-ai/cortexstage/pkg/cache/inmemory"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache/redis"
)

var (
	// ErrInvalidCacheDriver is returned when an invalid cache driver is provided
	ErrInvalidCacheDriver = errors.New("invalid cache driver")
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"

	NoExpiration = -1 * time.Second
)

// Cache implements a generic interface for cache clients
type Cache interface {
	// Get returns the value for the given key
	// returns an error if the key was not found
	Get(ctx context.Context, key string) (interface{}, error)

	// GetByPattern returns all values whose key matches the glob pattern
	GetByPattern(ctx context.Context, keyPattern string) (map[string]interface{}, error)

	// Set sets the value for the given key
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete deletes the value for the given key
	Delete(ctx context.Context, key string) error
}

// Config is the configuration for the cache client
type Config struct {
	// Driver is the type of cache client
	Driver string `mapstructure:"driver"`

	// InMemory is the configuration for the inmemory cache client
	InMemory *inmemory.Config `mapstructure:"inmemory"`

	// Redis is the configuration for the redis client
	Redis *redis.Config `mapstructure:"redis"`
}

// New returns a new cache client
func New(config *Config) (Cache, error) {

	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	switch config.Driver {
	case DriverMemory, "":
		return inmemory.NewCache(config.InMemory)
	case DriverRedis:
		return redis.NewCache(config.Redis)
	default:
		return nil, ErrInvalidCacheDriver
	}
}

// SetJSON stores value encoded as JSON under key
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	return c.Set(ctx, key, string(b), ttl)
}

// GetJSON decodes the JSON value stored under key into out
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) error {
	val, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	s, ok := val.(string)
	if !ok {
		return fmt.Errorf("unexpected cache value type %T for %s", val, key)
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("failed to decode cache value for %s: %w", key, err)
	}
	return nil
}
