// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"context"
	"io"
	"sort"
	"sync"
)

// Transport schemes understood by this package. http, https and zap are
// registered by default.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeZAP   = "zap"
	SchemeGRPC  = "grpc"
	SchemeNATS  = "nats"
)

// Request is one encoded call ready to be sent.
type Request struct {
	Locator Locator
	// Method is the wire method name (the descriptor alias when set).
	Method string
	// Envelope asks the server for the full envelope response encoding.
	Envelope    bool
	ContentType string
	// ID identifies the call in logs and, where the transport supports it,
	// on the wire.
	ID   string
	Body []byte
}

// Transport performs one request/response exchange. On success it returns
// the response body, which the caller closes. A non-success response is
// reported as a *StatusError carrying the error channel's body.
//
// Transports are shared by every call made through a Binding and must be
// safe for concurrent use.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (io.ReadCloser, error)

func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error) {
	return f(ctx, req)
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]Transport{
		SchemeHTTP:  defaultHTTPTransport,
		SchemeHTTPS: defaultHTTPTransport,
		SchemeZAP:   &ZAPTransport{},
	}
)

// RegisterTransport makes t the process-wide transport for scheme. Bindings
// can still override it with WithTransport.
func RegisterTransport(scheme string, t Transport) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[scheme] = t
}

// AvailableTransports returns the registered schemes, sorted.
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is registered for scheme.
func HasTransport(scheme string) bool {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	_, ok := transports[scheme]
	return ok
}

func registeredTransport(scheme string) (Transport, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[scheme]
	return t, ok
}
