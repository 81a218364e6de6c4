package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisInstanceWithInvalidConfig(t *testing.T) {
	redis, err := NewCache(&Config{
		Host: "fakelocalhost",
		Port: "6379",
	})

	// since redis server is not running it will return error
	assert.NotNil(t, err)
	assert.Nil(t, redis)
}

func startRedis(t *testing.T) *miniredis.Miniredis {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error starting miniredis server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRedisInstance_SetGet(t *testing.T) {
	srv := startRedis(t)

	cache, err := NewCache(&Config{Host: srv.Host(), Port: srv.Port()})
	assert.Nil(t, err)
	assert.NotNil(t, cache)

	err = cache.Set(context.Background(), "test-key", "test-set-val", time.Minute)
	assert.Nil(t, err)

	val, err := cache.Get(context.Background(), "test-key")
	assert.Nil(t, err)
	assert.Equal(t, "test-set-val", val)

	err = cache.Delete(context.Background(), "test-key")
	assert.Nil(t, err)

	val, err = cache.Get(context.Background(), "test-key")
	assert.NotNil(t, err)
	assert.Equal(t, "", val)
}

func TestRedisNoExpiration(t *testing.T) {
	srv := startRedis(t)

	cache, err := NewCache(&Config{Host: srv.Host(), Port: srv.Port()})
	assert.Nil(t, err)

	assert.Nil(t, cache.Set(context.Background(), "report:last", "{}", -1*time.Second))
	assert.Equal(t, time.Duration(0), srv.TTL("report:last"))
}

func TestRedisKeyPrefix(t *testing.T) {
	srv := startRedis(t)

	cache, err := NewCache(&Config{Host: srv.Host(), Port: srv.Port(), KeyPrefix: "cortexstage:dev:"})
	assert.Nil(t, err)

	assert.Nil(t, cache.Set(context.Background(), "trust:S3_INT", "v", time.Minute))
	assert.True(t, srv.Exists("cortexstage:dev:trust:S3_INT"))

	values, err := cache.GetByPattern(context.Background(), "trust:*")
	assert.Nil(t, err)
	assert.Equal(t, map[string]interface{}{"trust:S3_INT": "v"}, values)
}

func TestRedisCacheGetByPattern(t *testing.T) {
	srv := startRedis(t)

	cache, err := NewCache(&Config{Host: srv.Host(), Port: srv.Port()})
	assert.Nil(t, err)
	assert.NotNil(t, cache)

	ctx := context.Background()
	assert.Nil(t, cache.Set(ctx, "trust:1", "value1", time.Minute))
	assert.Nil(t, cache.Set(ctx, "trust:2", "value2", time.Minute))
	assert.Nil(t, cache.Set(ctx, "trust:3", "value3", time.Minute))
	assert.Nil(t, cache.Set(ctx, "report:1", "othervalue", time.Minute))

	values, err := cache.GetByPattern(ctx, "trust:*")
	assert.Nil(t, err)
	assert.Equal(t, 3, len(values))

	stringValues := make([]string, 0, len(values))
	for _, v := range values {
		stringValues = append(stringValues, v.(string))
	}

	assert.Contains(t, stringValues, "value1")
	assert.Contains(t, stringValues, "value2")
	assert.Contains(t, stringValues, "value3")
	assert.NotContains(t, stringValues, "othervalue")

	values, err = cache.GetByPattern(ctx, "nonexistent:*")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(values))
}
