// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"encoding/json"
	"errors"
	"io"

	json2 "github.com/gorilla/rpc/v2/json2"
)

// JSON2Codecs speaks JSON-RPC 2.0 as implemented by gorilla/rpc. The wire
// method name travels in the request body as well as in the target, and a
// JSON-RPC error object is a failure whose payload is the *json2.Error.
// In envelope mode the JSON-RPC result holds the same envelope object the
// plain JSON codec reads.
var JSON2Codecs CodecSource = CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
	return &JSON2Codec{json: JSONCodec{method: m, desc: d}}, nil
})

// JSON2Codec is the codec handed out by JSON2Codecs.
type JSON2Codec struct {
	json JSONCodec
}

func (*JSON2Codec) ContentType() string { return "application/json" }

func (c *JSON2Codec) Encode(w io.Writer, method string, args []any) error {
	if args == nil {
		args = []any{}
	}
	body, err := json2.EncodeClientRequest(method, args)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// DecodeResult returns a JSON-RPC error object as the decoded failure payload
// when untyped, and wrapped in a PayloadError when typed.
func (c *JSON2Codec) DecodeResult(r io.Reader, typed bool) (any, error) {
	var raw json.RawMessage
	err := json2.DecodeClientResponse(r, &raw)
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		if !typed {
			return rpcErr, nil
		}
		return nil, &PayloadError{Payload: rpcErr}
	}
	if errors.Is(err, json2.ErrNullResult) && typed {
		return c.json.decodeTyped(nil, c.json.resultType())
	}
	if err != nil {
		return nil, err
	}
	if !typed {
		return decodeFailure(raw)
	}
	return c.json.decodeTyped(raw, c.json.resultType())
}

func (c *JSON2Codec) DecodeEnvelope(r io.Reader, typed bool) (*Envelope, error) {
	var w wireEnvelope
	err := json2.DecodeClientResponse(r, &w)
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		return &Envelope{Success: false, Result: rpcErr}, nil
	}
	if err != nil {
		return nil, err
	}
	return c.json.envelope(&w, typed)
}
