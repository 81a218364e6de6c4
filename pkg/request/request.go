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

package request

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/redhat-data-and-ai/cortexstage/pkg/logger"
	"github.com/sirupsen/logrus"

	"github.com/opentracing-contrib/go-stdlib/nethttp"
	ot "github.com/opentracing/opentracing-go"
)

// IRequester exposes setters for headers and query parameters and the
// final method to send a request: Do
type IRequester interface {
	GetHeaders() http.Header
	SetHeaders(map[string]string) IRequester
	SetQueryParams(map[string]string) IRequester
	Do(heimdall.Doer, string) (*Response, error)
}

// Response is the fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Requester struct {
	request *http.Request
}

// NewRequest creates a new Request with the given context, method, URL, and body.
func NewRequest(ctx context.Context, method string, rawURL string, body []byte) (IRequester, error) {
	var err error
	r := &Requester{}
	if r.request, err = http.NewRequestWithContext(ctx, method, rawURL, bytes.NewBuffer(body)); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Requester) GetHeaders() http.Header {
	return r.request.Header
}

func (r *Requester) SetHeaders(headers map[string]string) IRequester {
	for key, value := range headers {
		r.request.Header.Set(key, value)
	}
	return r
}

func (r *Requester) SetQueryParams(params map[string]string) IRequester {
	if len(params) == 0 {
		return r
	}
	q := r.request.URL.Query()
	for key, value := range params {
		q.Set(key, value)
	}
	r.request.URL.RawQuery = q.Encode()
	return r
}

// Do sends the request through the given client. Transport failures are
// returned with a nil response; any HTTP status is returned as-is.
func (r *Requester) Do(httpClient heimdall.Doer, serviceName string) (*Response, error) {
	response, responseBody, err := r.sendRequest(httpClient, serviceName)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		Body:       responseBody,
	}, nil
}

// sendRequest contains the common logic for making HTTP requests with logging and tracing
func (r *Requester) sendRequest(httpClient heimdall.Doer, serviceName string) (*http.Response, []byte, error) {
	// transmit span's TraceContext as HTTP headers to api
	if span := ot.SpanFromContext(r.request.Context()); span != nil {
		_, ok := span.Tracer().(ot.NoopTracer)
		if !ok {
			var ht *nethttp.Tracer
			r.request, ht = nethttp.TraceRequest(ot.GlobalTracer(), r.request)
			defer ht.Finish()
		}
	}

	start := time.Now()

	log := logger.Logger(r.request.Context()).WithFields(logrus.Fields{
		"service": serviceName,
		"method":  r.request.Method,
		"url":     redactedURL(r.request.URL),
	})

	log.Debug("SENDING_HTTP_REQUEST")

	response, err := httpClient.Do(r.request)

	durationMs := float64(time.Since(start).Nanoseconds() / 1000000)
	if err != nil {
		log.WithError(err).WithField("durationMs", durationMs).Error("HTTP_REQUEST_FAILED")
		return nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"status":     response.StatusCode,
		"durationMs": durationMs,
	}).Info("RECEIVED_HTTP_RESPONSE")

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, nil, err
	}

	if err := response.Body.Close(); err != nil {
		return nil, nil, err
	}

	return response, responseBody, nil
}

// redactedURL drops the query string, which may carry request identifiers
// that are noise in logs
func redactedURL(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
