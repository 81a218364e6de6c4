package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis"
	otredis "github.com/opentracing-contrib/goredis"
)

// Config holds all required info for initializing redis driver
type Config struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database int32  `mapstructure:"database"`
	Password string `mapstructure:"password"`
	// KeyPrefix namespaces every key so several environments can share one redis
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RedisCache holds the handler for the redisclient and auxiliary info
type RedisCache struct {
	client otredis.Client
	prefix string
}

// NewCache inits a RedisCache instance
func NewCache(config *Config) (*RedisCache, error) {
	if config == nil {
		config = getDefaultConfig()
	}

	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)
	options := &redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: config.Password,
		DB:       int(config.Database),
	}

	redisClient := otredis.Wrap(redis.NewUniversalClient(options))
	rc := RedisCache{
		client: redisClient,
		prefix: config.KeyPrefix,
	}

	if err := rc.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &rc, nil
}

func getDefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     "6379",
		Database: 0,
		Password: "",
	}
}

func (rc *RedisCache) key(k string) string {
	return rc.prefix + k
}

// Ping checks the server is reachable
func (rc *RedisCache) Ping(ctx context.Context) error {
	if _, err := rc.client.WithContext(ctx).Ping().Result(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Set - sets a key value pair in redis
func (rc *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return rc.client.WithContext(ctx).Set(rc.key(key), value, ttl).Err()
}

// Get - gets a value from redis
func (rc *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := rc.client.WithContext(ctx).Get(rc.key(key)).Result()
	if err != nil {
		return "", err
	}
	return val, nil
}

// GetByPattern returns all values whose key matches the glob pattern.
// Returned keys do not carry the configured prefix.
func (rc *RedisCache) GetByPattern(ctx context.Context, keyPattern string) (map[string]interface{}, error) {
	var keys []string
	iter := rc.client.WithContext(ctx).Scan(0, rc.key(keyPattern), 0).Iterator()
	for iter.Next() {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return make(map[string]interface{}), nil
	}

	// MGET retrieves all values in a single round trip
	vals, err := rc.client.WithContext(ctx).MGet(keys...).Result()
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{}, len(keys))
	for i, key := range keys {
		// nil means the key expired between SCAN and MGET
		if vals[i] != nil {
			values[strings.TrimPrefix(key, rc.prefix)] = vals[i]
		}
	}

	return values, nil
}

// Delete - deletes a key from redis
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.WithContext(ctx).Del(rc.key(key)).Err()
}

// Disconnect ... disconnects from the redis server
func (rc *RedisCache) Disconnect() error {
	return rc.client.Close()
}
