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

package snowflake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/redhat-data-and-ai/cortexstage/pkg/request"
	"github.com/redhat-data-and-ai/cortexstage/pkg/request/httpclient"
)

const (
	serviceName = "snowflake"

	defaultStatementTimeout = 60 * time.Second
	defaultPollInterval     = 500 * time.Millisecond
)

// NewClient creates a new Snowflake SQL API client with the given configuration
func NewClient(config SnowflakeConfig, poolCfg httpclient.ConnectionPoolConfig,
	hystrixCfg httpclient.HystrixResiliencyConfig, retryCfg httpclient.RetryConfig) (*SnowflakeClient, error) {

	if config.PAT == "" || config.BaseURL == "" {
		return nil, errors.New("missing required connection parameters for snowflake: pat and base_url are required")
	}

	client, err := httpclient.InitializeClient(
		serviceName,
		poolCfg,
		hystrixCfg,
		httpclient.NewRetrier(retryCfg), retryCfg.Count,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize http client: %w", err)
	}

	return newClientWithDoer(config, client), nil
}

func newClientWithDoer(config SnowflakeConfig, doer heimdall.Doer) *SnowflakeClient {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.StatementTimeout <= 0 {
		config.StatementTimeout = defaultStatementTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	return &SnowflakeClient{
		config: &config,
		client: doer,
	}
}

// prepareRequest creates and configures a request with common Snowflake headers
func (c *SnowflakeClient) prepareRequest(ctx context.Context, endpoint, method string,
	body interface{}, params map[string]string) (request.IRequester, error) {
	var requestBody []byte
	if body != nil && method != http.MethodGet {
		var err error
		requestBody, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	url := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		url = c.config.BaseURL + endpoint
	}
	req, err := request.NewRequest(ctx, method, url, requestBody)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Authorization":                        "Bearer " + c.config.PAT,
		"X-Snowflake-Authorization-Token-Type": "PROGRAMMATIC_ACCESS_TOKEN",
		"Content-Type":                         "application/json",
		"Accept":                               "application/json",
		"User-Agent":                           "cortexstage/1.0",
	}
	req.SetHeaders(headers).SetQueryParams(params)

	return req, nil
}

// makeRequest sends a request through the common request package (logging, tracing, etc.)
func (c *SnowflakeClient) makeRequest(ctx context.Context, endpoint, method string,
	body interface{}, params map[string]string) (*request.Response, error) {
	req, err := c.prepareRequest(ctx, endpoint, method, body, params)
	if err != nil {
		return nil, err
	}

	return req.Do(c.client, serviceName)
}

// decodeStatementResponse maps a SQL API response to a statement document or an *APIError
func decodeStatementResponse(resp *request.Response) (*statementResponse, error) {
	var doc statementResponse
	decodeErr := json.Unmarshal(resp.Body, &doc)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to parse statement response: %w", decodeErr)
		}
		return &doc, nil
	default:
		if decodeErr != nil || doc.Message == "" {
			return nil, &APIError{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}
		}
		return nil, &APIError{
			HTTPStatus:      resp.StatusCode,
			Code:            doc.Code,
			SQLState:        doc.SQLState,
			Message:         doc.Message,
			StatementHandle: doc.StatementHandle,
		}
	}
}

// GetConfig returns the client configuration
func (c *SnowflakeClient) GetConfig() *SnowflakeConfig {
	return c.config
}
