// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS headers understood by NATSTransport.
const (
	NATSHeaderOutParameters = "Remoting-Out-Parameters"
	NATSHeaderStatus        = "Remoting-Status"
	NATSHeaderRequestID     = "Remoting-Request-Id"

	NATSStatusError = "error"
)

// NATSTransport sends each call as a request on "<service>.<method>". A
// reply with the Remoting-Status: error header is the error channel.
type NATSTransport struct {
	conn    *nats.Conn
	timeout time.Duration
}

// NewNATSTransport wraps a connection. timeout bounds calls whose context
// has no deadline.
func NewNATSTransport(conn *nats.Conn, timeout time.Duration) *NATSTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSTransport{conn: conn, timeout: timeout}
}

// Subject returns the subject a call is published on.
func (t *NATSTransport) Subject(req *Request) string {
	return req.Locator.ServiceName() + "." + req.Method
}

func (t *NATSTransport) RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error) {
	msg := nats.NewMsg(t.Subject(req))
	msg.Data = req.Body
	msg.Header.Set("Content-Type", req.ContentType)
	if req.Envelope {
		msg.Header.Set(NATSHeaderOutParameters, "true")
	}
	if req.ID != "" {
		msg.Header.Set(NATSHeaderRequestID, req.ID)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	resp, err := t.conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("nats request: %w", err)
	}
	if resp.Header != nil && resp.Header.Get(NATSHeaderStatus) == NATSStatusError {
		return nil, &StatusError{Code: 500, Status: NATSStatusError, Body: resp.Data}
	}
	return io.NopCloser(bytes.NewReader(resp.Data)), nil
}
