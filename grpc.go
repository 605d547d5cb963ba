// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// MetadataOutParameters is the gRPC metadata key that requests the envelope
// response encoding.
const MetadataOutParameters = "remoting-out-parameters"

// RawCodec passes pre-encoded bytes through gRPC untouched. Servers that
// answer GRPCTransport calls install it with grpc.ForceServerCodec.
type RawCodec struct{}

func (RawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
}

func (RawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (RawCodec) Name() string { return "remoting-raw" }

// GRPCTransport invokes "/<service>/<method>" on a gRPC connection with the
// encoded arguments as the request message. A non-OK status is the error
// channel; its message is the error body.
type GRPCTransport struct {
	conn grpc.ClientConnInterface
}

// NewGRPCTransport wraps an existing connection.
func NewGRPCTransport(conn grpc.ClientConnInterface) *GRPCTransport {
	return &GRPCTransport{conn: conn}
}

// DialGRPC opens a plaintext client connection to addr and wraps it. The
// returned close function releases the connection.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPCTransport, func() error, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCTransport{conn: conn}, conn.Close, nil
}

func (t *GRPCTransport) RoundTrip(ctx context.Context, req *Request) (io.ReadCloser, error) {
	if req.Envelope {
		ctx = metadata.AppendToOutgoingContext(ctx, MetadataOutParameters, "true")
	}
	if req.ID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", req.ID)
	}
	fullMethod := "/" + req.Locator.ServiceName() + "/" + req.Method

	var reply []byte
	err := t.conn.Invoke(ctx, fullMethod, req.Body, &reply, grpc.ForceCodec(RawCodec{}))
	if err != nil {
		if st, ok := status.FromError(err); ok {
			return nil, &StatusError{Code: int(st.Code()), Status: st.Code().String(), Body: []byte(st.Message())}
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(reply)), nil
}
