// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport performs a single logical HTTP exchange with a remote endpoint. Failed
// attempts - transport errors and responses outside the success set - are retried within the
// exchange according to a caller-supplied RetryFunc.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/kcvdb/agent/clock"
)

// maxResponseBody bounds how much of a response body is kept for logging and inspection.
const maxResponseBody = 64 * 1024

// DefaultSuccessCodes is the set of statuses treated as a successful exchange.
var DefaultSuccessCodes = []int{
	http.StatusOK,
	http.StatusCreated,
	http.StatusAccepted,
	http.StatusNonAuthoritativeInfo,
	http.StatusNoContent,
	http.StatusResetContent,
	http.StatusPartialContent,
	http.StatusMultiStatus,
}

// RetryFunc decides what happens after a failed attempt. attempt is the 1-based number of the
// attempt that just failed, and failure is its error (a *StatusError for non-success responses).
// It returns the pause before the next attempt, or retry=false to end the exchange.
type RetryFunc func(attempt int, failure error) (wait time.Duration, retry bool)

// NoRetry gives up after the first failure.
func NoRetry(int, error) (time.Duration, bool) {
	return 0, false
}

// StatusError is returned when the server answers with a status outside the success set.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: server responded %d %v", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsServerRejection reports whether err is (or wraps) a *StatusError.
func IsServerRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Request describes the exchange. Body is replayed on each attempt.
type Request struct {
	Method      string
	URL         string
	ContentType string
	Header      http.Header
	Body        []byte
}

// Response is the final response of a successful exchange, or of the last failed attempt if the
// server answered at all.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Options configure a Client.
type Options struct {
	// ConnectTimeout bounds establishing a connection.
	ConnectTimeout time.Duration
	// ResponseTimeout bounds waiting for response headers once the request is written.
	ResponseTimeout time.Duration
	// RequestTimeout bounds a single attempt end to end.
	RequestTimeout time.Duration
	// Headers are added to every request. Values are opaque.
	Headers map[string]string
	// SuccessCodes overrides DefaultSuccessCodes when non-empty.
	SuccessCodes []int
}

// DefaultOptions returns the timeouts used by the kcvdb client: 10s connect, 10s response, 30s
// per attempt.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  10 * time.Second,
		ResponseTimeout: 10 * time.Second,
		RequestTimeout:  30 * time.Second,
	}
}

// Client executes requests with retries. A Client is safe for concurrent use, but a single Do call
// blocks for the duration of all its attempts and pauses.
type Client struct {
	http    *http.Client
	clock   clock.Clock
	headers http.Header
	success map[int]bool
}

// NewClient creates a Client backed by a net/http client configured from opts.
func NewClient(opts Options) *Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	hc := &http.Client{
		Timeout: opts.RequestTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ResponseTimeout,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
	}
	return NewClientWith(hc, clock.NewClock(), opts)
}

// NewClientWith creates a Client around an existing http.Client and clock. Tests use it to target
// httptest servers and drive backoff pauses with a mock clock.
func NewClientWith(hc *http.Client, c clock.Clock, opts Options) *Client {
	headers := make(http.Header)
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	codes := opts.SuccessCodes
	if len(codes) == 0 {
		codes = DefaultSuccessCodes
	}
	success := make(map[int]bool, len(codes))
	for _, code := range codes {
		success[code] = true
	}
	return &Client{http: hc, clock: c, headers: headers, success: success}
}

// IsSuccess reports whether status is in this client's success set.
func (c *Client) IsSuccess(status int) bool {
	return c.success[status]
}

// Do performs the exchange. The first response with a success status ends it immediately. After
// each failure retry is consulted; when it gives up, or ctx is cancelled during a pause, Do returns
// the most recent failure. The returned Response is non-nil whenever the server answered.
func (c *Client) Do(ctx context.Context, req *Request, retry RetryFunc) (*Response, error) {
	if retry == nil {
		retry = NoRetry
	}
	for attempt := 1; ; attempt++ {
		resp, err := c.execute(ctx, req)
		if resp != nil {
			resp.Attempts = attempt
		}
		if err == nil && c.IsSuccess(resp.StatusCode) {
			glog.V(2).Infof("transport: %v %v: %d (attempt %d)", req.Method, req.URL, resp.StatusCode, attempt)
			return resp, nil
		}
		if err == nil {
			err = &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
		}

		wait, again := retry(attempt, err)
		if !again {
			glog.V(2).Infof("transport: %v %v: giving up after attempt %d: %+v", req.Method, req.URL, attempt, err)
			return resp, err
		}
		glog.Warningf("transport: %v %v [%[3]T - will retry in %[4]v]: %[3]s", req.Method, req.URL, err, wait)
		if perr := clock.Sleep(ctx, c.clock, wait); perr != nil {
			glog.Warningf("transport: %v %v: retry pause interrupted: %v", req.Method, req.URL, perr)
			return resp, err
		}
	}
}

func (c *Client) execute(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		hreq.Header[k] = vs
	}
	for k, vs := range req.Header {
		hreq.Header[k] = vs
	}
	if req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseBody))
	// Drain a bounded remainder so the connection can be reused. A longer body just closes it.
	if _, derr := io.CopyN(io.Discard, hresp.Body, maxResponseBody); derr != nil && derr != io.EOF {
		glog.V(2).Infof("transport: %v %v: discarding response body: %v", req.Method, req.URL, derr)
	}
	resp := &Response{StatusCode: hresp.StatusCode, Header: hresp.Header, Body: body}
	if err != nil {
		return resp, fmt.Errorf("transport: reading response body: %w", err)
	}
	return resp, nil
}
