/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeClient(t *testing.T) {
	connConfig := ConnectionPoolConfig{
		Timeout:            1000,
		KeepAliveTimeout:   5000,
		MaxIdleConnections: 10,
	}

	hystrixConfig := HystrixResiliencyConfig{
		MaxConcurrentRequests:     100,
		RequestVolumeThreshold:    20,
		CircuitBreakerSleepWindow: 5000,
		ErrorPercentThreshold:     50,
		CircuitBreakerTimeout:     1000,
	}

	t.Run("with default config", func(t *testing.T) {
		client, err := InitializeClient("TestCommand", connConfig, hystrixConfig, nil, 0, nil)

		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("with custom retrier", func(t *testing.T) {
		customRetrier := heimdall.NewRetrier(heimdall.NewConstantBackoff(100*time.Millisecond, 3*time.Second))

		client, err := InitializeClient("TestCommand", connConfig, hystrixConfig, customRetrier, 3, nil)

		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("with fallback function", func(t *testing.T) {
		fallbackFunc := func(err error) error {
			return nil
		}

		client, err := InitializeClient("TestCommand", connConfig, hystrixConfig, nil, 0, fallbackFunc)

		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("with invalid certificate paths", func(t *testing.T) {
		badConfig := connConfig
		badConfig.CertPath = "/non/existent/path/cert.pem"
		badConfig.PrivateKeyPath = "/non/existent/path/key.pem"

		client, err := InitializeClient("TestCommand", badConfig, hystrixConfig, nil, 0, nil)

		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to load certificate and key")
	})
}

func TestNewRetrier(t *testing.T) {
	assert.Nil(t, NewRetrier(RetryConfig{}))
	assert.NotNil(t, NewRetrier(RetryConfig{Count: 3, InitialBackoff: 10, MaxBackoff: 100}))
	// max below initial is clamped instead of rejected
	assert.NotNil(t, NewRetrier(RetryConfig{Count: 1, InitialBackoff: 500, MaxBackoff: 1}))
}

func TestDefaults(t *testing.T) {
	pool := DefaultConnectionPoolConfig()
	assert.Greater(t, pool.Timeout, 0)
	assert.Greater(t, pool.MaxIdleConnections, 0)

	hystrixConfig := DefaultHystrixResiliencyConfig()
	assert.GreaterOrEqual(t, hystrixConfig.CircuitBreakerTimeout, pool.Timeout)
}

func TestClientIntegration(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))
	defer testServer.Close()

	client, err := InitializeClient("TestCommand", DefaultConnectionPoolConfig(),
		DefaultHystrixResiliencyConfig(), nil, 0, nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, testServer.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
}
