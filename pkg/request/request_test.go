package request

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient is a mock implementation of heimdall.Doer
// to be used in tests.
type MockClient struct {
	mock.Mock
}

const (
	exampleURL = "http://example.com/api/v2/statements"
)

func (m *MockClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func TestNewRequest(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"statement":"SELECT 1"}`)

	req, err := NewRequest(ctx, http.MethodPost, exampleURL, body)

	assert.NoError(t, err)
	assert.NotNil(t, req)
	assert.Equal(t, http.MethodPost, req.(*Requester).request.Method)
	assert.Equal(t, exampleURL, req.(*Requester).request.URL.String())
	bodyContent, _ := io.ReadAll(req.(*Requester).request.Body)
	assert.Equal(t, body, bodyContent)
}

func TestNewRequest_InvalidURL(t *testing.T) {
	_, err := NewRequest(context.Background(), http.MethodGet, "://bad url", nil)
	assert.Error(t, err)
}

func TestSetHeaders(t *testing.T) {
	req, _ := NewRequest(context.Background(), http.MethodGet, exampleURL, nil)
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer token",
	}

	req.SetHeaders(headers)

	for key, value := range headers {
		assert.Equal(t, value, req.GetHeaders().Get(key))
	}
}

func TestSetQueryParams(t *testing.T) {
	req, _ := NewRequest(context.Background(), http.MethodPost, exampleURL+"?async=false", nil)

	req.SetQueryParams(map[string]string{"requestId": "abc", "retry": "true"})

	q := req.(*Requester).request.URL.Query()
	assert.Equal(t, "abc", q.Get("requestId"))
	assert.Equal(t, "true", q.Get("retry"))
	assert.Equal(t, "false", q.Get("async"))
}

func TestDo(t *testing.T) {
	req, _ := NewRequest(context.Background(), http.MethodGet, exampleURL, nil)

	mockClient := new(MockClient)
	response := &http.Response{
		StatusCode: http.StatusAccepted,
		Header:     http.Header{"X-Test": []string{"1"}},
		Body:       io.NopCloser(bytes.NewBufferString("response body")),
	}

	mockClient.On("Do", req.(*Requester).request).Return(response, nil)

	resp, err := req.Do(mockClient, "snowflake")

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "response body", string(resp.Body))
	assert.Equal(t, "1", resp.Header.Get("X-Test"))

	mockClient.AssertExpectations(t)
}

func TestDo_TransportError(t *testing.T) {
	req, _ := NewRequest(context.Background(), http.MethodGet, exampleURL, nil)

	mockClient := new(MockClient)
	mockClient.On("Do", req.(*Requester).request).Return(nil, errors.New("connection refused"))

	resp, err := req.Do(mockClient, "snowflake")

	assert.Nil(t, resp)
	assert.EqualError(t, err, "connection refused")
}
