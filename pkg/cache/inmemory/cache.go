package inmemory

import (
	"context"
	"fmt"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// InMemoryCache holds the handler for the in-memory cache using go-cache
type InMemoryCache struct {
	client *gocache.Cache
}

// Config is the configuration for the in-memory cache, in seconds
type Config struct {
	DefaultExpiration int32 `mapstructure:"default_expiration"`
	CleanupInterval   int32 `mapstructure:"cleanup_interval"`
}

// NewCache creates an in-memory cache. A nil config means entries never expire.
func NewCache(config *Config) (*InMemoryCache, error) {
	if config == nil {
		config = getDefaultConfig()
	}

	defaultExpiration := time.Duration(config.DefaultExpiration) * time.Second
	cleanupExpiration := time.Duration(config.CleanupInterval) * time.Second

	client := gocache.New(defaultExpiration, cleanupExpiration)

	inMem := &InMemoryCache{
		client: client,
	}

	return inMem, nil
}

// Set implements inmemory
func (imc *InMemoryCache) Set(
	ctx context.Context,
	key string,
	value string,
	ttl time.Duration,
) error {
	imc.client.Set(key, value, ttl)
	return nil
}

// Get implements Cache.
func (imc *InMemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	val, found := imc.client.Get(key)
	if !found {
		return "", fmt.Errorf("key not found: %s", key)
	}
	return val, nil
}

// GetByPattern implements Cache using glob matching on the live keys.
func (imc *InMemoryCache) GetByPattern(ctx context.Context, keyPattern string) (map[string]interface{}, error) {
	if _, err := path.Match(keyPattern, ""); err != nil {
		return nil, fmt.Errorf("invalid key pattern %q: %w", keyPattern, err)
	}

	values := make(map[string]interface{})
	for key, item := range imc.client.Items() {
		if ok, _ := path.Match(keyPattern, key); ok {
			values[key] = item.Object
		}
	}
	return values, nil
}

// Delete implements Cache.
func (imc *InMemoryCache) Delete(ctx context.Context, key string) error {
	imc.client.Delete(key)
	return nil
}

// Flushes out all the keys from Cache.
func (imc *InMemoryCache) Flush(ctx context.Context) {
	imc.client.Flush()
}

// getDefaultConfig returns the default configuration for the in-memory cache
func getDefaultConfig() *Config {
	return &Config{
		DefaultExpiration: -1,
		CleanupInterval:   -1,
	}
}
