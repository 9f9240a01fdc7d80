// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httputil provides a small functional-options HTTP client used
// by the tracker announce client: acceptable status codes, retry with
// backoff, and a swappable transport for testing.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
)

// StatusError is returned when a response's status code is not among the
// accepted codes for the request.
type StatusError struct {
	Method       string
	URL          string
	Status       int
	ResponseDump string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Status, e.ResponseDump)
}

// IsNotFound reports whether err is a StatusError for a 404 response.
func IsNotFound(err error) bool {
	se, ok := err.(StatusError)
	return ok && se.Status == http.StatusNotFound
}

type sendOptions struct {
	timeout       time.Duration
	acceptedCodes map[int]bool
	transport     http.RoundTripper
	headers       map[string]string
	body          io.Reader
	ctx           context.Context
	retry         backoff.BackOff
}

// SendOption configures a Send call.
type SendOption func(*sendOptions)

// SendTimeout sets the per-attempt request timeout.
func SendTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// SendAcceptedCodes sets the status codes which do not result in a
// StatusError.
func SendAcceptedCodes(codes ...int) SendOption {
	return func(o *sendOptions) {
		o.acceptedCodes = make(map[int]bool, len(codes))
		for _, c := range codes {
			o.acceptedCodes[c] = true
		}
	}
}

// SendTransport overrides the http.RoundTripper used to issue the
// request, for testing.
func SendTransport(rt http.RoundTripper) SendOption {
	return func(o *sendOptions) { o.transport = rt }
}

// SendHeaders sets request headers.
func SendHeaders(h map[string]string) SendOption {
	return func(o *sendOptions) { o.headers = h }
}

// SendBody sets the request body.
func SendBody(r io.Reader) SendOption {
	return func(o *sendOptions) { o.body = r }
}

// SendContext sets the request context.
func SendContext(ctx context.Context) SendOption {
	return func(o *sendOptions) { o.ctx = ctx }
}

// SendRetry retries the request (including non-accepted statuses and
// transport errors) according to b. If unset, the request is attempted
// once.
func SendRetry(b backoff.BackOff) SendOption {
	return func(o *sendOptions) { o.retry = b }
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:       30 * time.Second,
		acceptedCodes: map[int]bool{http.StatusOK: true},
		transport:     http.DefaultTransport,
		ctx:           context.Background(),
	}
}

// Get issues a GET request.
func Get(url string, opts ...SendOption) (*http.Response, error) {
	return send(http.MethodGet, url, opts...)
}

// Post issues a POST request.
func Post(url string, opts ...SendOption) (*http.Response, error) {
	return send(http.MethodPost, url, opts...)
}

// Put issues a PUT request.
func Put(url string, opts ...SendOption) (*http.Response, error) {
	return send(http.MethodPut, url, opts...)
}

// Delete issues a DELETE request.
func Delete(url string, opts ...SendOption) (*http.Response, error) {
	return send(http.MethodDelete, url, opts...)
}

func send(method, url string, opts ...SendOption) (*http.Response, error) {
	o := defaultSendOptions()
	for _, opt := range opts {
		opt(o)
	}

	var bodyBytes []byte
	if o.body != nil {
		b, err := io.ReadAll(o.body)
		if err != nil {
			return nil, fmt.Errorf("read body: %s", err)
		}
		bodyBytes = b
	}

	client := &http.Client{Timeout: o.timeout, Transport: o.transport}

	attempt := func() (*http.Response, error) {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(o.ctx, method, url, body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("new request: %s", err))
		}
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if !o.acceptedCodes[resp.StatusCode] {
			dump, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, StatusError{Method: method, URL: url, Status: resp.StatusCode, ResponseDump: string(dump)}
		}
		return resp, nil
	}

	if o.retry == nil {
		return attempt()
	}

	var resp *http.Response
	err := backoff.Retry(func() error {
		r, err := attempt()
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, o.retry)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
