// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// QueryMethod and QueryOutParameters are the query parameters that carry
	// the wire method name and the envelope request on the HTTP target.
	QueryMethod        = "method"
	QueryOutParameters = "outParameters"

	HeaderRequestID = "X-Request-Id"

	maxErrorBody = 4 << 20
)

var defaultHTTPTransport = NewHTTPTransport(nil)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// Pooling is left to callers that pass their own client.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// HTTPTransport POSTs the encoded arguments to
//
//	<serviceURL>?method=<name>[&outParameters=true]
//
// and treats any non-2xx status as the error channel.
type HTTPTransport struct {
	client *http.Client
	header http.Header
	query  url.Values
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(t *HTTPTransport) { t.header.Add(key, value) }
}

// WithQueryParam adds a query parameter sent with every request.
func WithQueryParam(key, value string) HTTPOption {
	return func(t *HTTPTransport) { t.query.Add(key, value) }
}

// NewHTTPTransport returns an HTTPTransport using client, or a fresh client
// with a 30s timeout when client is nil.
func NewHTTPTransport(client *http.Client, opts ...HTTPOption) *HTTPTransport {
	if client == nil {
		client = newHTTPClient()
	}
	t := &HTTPTransport{
		client: client,
		header: make(http.Header),
		query:  make(url.Values),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Target builds the request URL for req.
func (t *HTTPTransport) Target(req *Request) (*url.URL, error) {
	uri, err := url.Parse(req.Locator.ServiceURL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	q := uri.Query()
	for k, vs := range t.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set(QueryMethod, req.Method)
	if req.Envelope {
		q.Set(QueryOutParameters, "true")
	}
	uri.RawQuery = q.Encode()
	return uri, nil
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error) {
	uri, err := t.Target(req)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, uri.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header = t.header.Clone()
	request.Header.Set("Content-Type", req.ContentType)
	if req.ID != "" {
		request.Header.Set(HeaderRequestID, req.ID)
	}

	resp, err := t.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		CleanlyCloseBody(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Body: body}
	}
	return drainingBody{resp.Body}, nil
}

type drainingBody struct {
	io.ReadCloser
}

func (b drainingBody) Close() error { return CleanlyCloseBody(b.ReadCloser) }
