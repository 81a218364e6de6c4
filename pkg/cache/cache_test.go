package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache/inmemory"
	"github.com/redhat-data-and-ai/cortexstage/pkg/cache/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCacheInstance(t *testing.T) {
	config := Config{
		Driver: "memory",
		InMemory: &inmemory.Config{
			DefaultExpiration: 15,
			CleanupInterval:   30,
		},
	}

	mem, err := New(&config)
	assert.Nil(t, err)
	assert.NotNil(t, mem)
}

func TestNewDefaultsToMemory(t *testing.T) {
	mem, err := New(&Config{})
	assert.Nil(t, err)
	assert.IsType(t, &inmemory.InMemoryCache{}, mem)
}

func TestNewRedisInstance(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Error starting miniredis server: %v", err)
	}
	defer srv.Close()

	config := &Config{
		Driver: "redis",
		Redis: &redis.Config{
			Host: srv.Host(),
			Port: srv.Port(),
		},
	}

	client, err := New(config)
	assert.Nil(t, err)
	assert.NotNil(t, client)
}

func TestNewInvalidDriver(t *testing.T) {
	_, err := New(&Config{Driver: "memcached"})
	assert.ErrorIs(t, err, ErrInvalidCacheDriver)

	_, err = New(nil)
	assert.Error(t, err)
}

type trustRecord struct {
	IAMUserARN string `json:"iam_user_arn"`
	ExternalID string `json:"external_id"`
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := New(&Config{Driver: DriverMemory})
	require.NoError(t, err)

	in := trustRecord{IAMUserARN: "arn:aws:iam::123456789012:user/abc", ExternalID: "ext"}
	require.NoError(t, SetJSON(ctx, c, "trust:S3_INT", in, NoExpiration))

	var out trustRecord
	require.NoError(t, GetJSON(ctx, c, "trust:S3_INT", &out))
	assert.Equal(t, in, out)

	assert.Error(t, GetJSON(ctx, c, "trust:MISSING", &out))
}

func TestGetJSONDecodeError(t *testing.T) {
	ctx := context.Background()
	c, err := New(&Config{Driver: DriverMemory})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "report:last", "{not json", NoExpiration))

	var out map[string]interface{}
	err = GetJSON(ctx, c, "report:last", &out)
	assert.ErrorContains(t, err, "failed to decode cache value")
}
