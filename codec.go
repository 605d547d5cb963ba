// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// Codec encodes the argument list of one call and decodes its response.
//
// typed selects decoding against the method's declared types. The engine
// passes false only when decoding the transport's error channel, where the
// payload is a failure rather than a declared result.
type Codec interface {
	ContentType() string
	Encode(w io.Writer, method string, args []any) error
	DecodeResult(r io.Reader, typed bool) (any, error)
	DecodeEnvelope(r io.Reader, typed bool) (*Envelope, error)
}

// CodecSource picks the codec for a call. It may hand out different codecs
// per method.
type CodecSource interface {
	Codec(m *Method, d *MethodDescriptor) (Codec, error)
}

// CodecSourceFunc adapts a function to CodecSource.
type CodecSourceFunc func(m *Method, d *MethodDescriptor) (Codec, error)

func (f CodecSourceFunc) Codec(m *Method, d *MethodDescriptor) (Codec, error) {
	return f(m, d)
}

// Envelope is a full response: the success flag, the result or failure
// payload and the write-back values aligned with the call's parameters.
type Envelope struct {
	Success bool
	Result  any
	Params  []any
}

var locatorType = reflect.TypeOf(Locator{})

// JSONCodecs is the default CodecSource. Arguments go out as a JSON array;
// results come back as a bare JSON value or as an envelope
//
//	{"success": true, "result": 5, "parameters": [null, {...}]}
//
// Failure payloads are RemoteError objects.
var JSONCodecs CodecSource = CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
	return &JSONCodec{method: m, desc: d}, nil
})

// JSONCodec is the codec handed out by JSONCodecs for one method.
type JSONCodec struct {
	method *Method
	desc   *MethodDescriptor
}

// NewJSONCodec returns a JSONCodec for m described by d.
func NewJSONCodec(m *Method, d *MethodDescriptor) *JSONCodec {
	return &JSONCodec{method: m, desc: d}
}

func (*JSONCodec) ContentType() string { return "application/json" }

func (c *JSONCodec) Encode(w io.Writer, _ string, args []any) error {
	if args == nil {
		args = []any{}
	}
	return json.NewEncoder(w).Encode(args)
}

func (c *JSONCodec) DecodeResult(r io.Reader, typed bool) (any, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	if !typed {
		return decodeFailure(raw)
	}
	return c.decodeTyped(raw, c.resultType())
}

type wireEnvelope struct {
	Success    bool              `json:"success"`
	Result     json.RawMessage   `json:"result,omitempty"`
	Parameters []json.RawMessage `json:"parameters,omitempty"`
}

func (c *JSONCodec) DecodeEnvelope(r io.Reader, typed bool) (*Envelope, error) {
	var w wireEnvelope
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, err
	}
	return c.envelope(&w, typed)
}

func (c *JSONCodec) envelope(w *wireEnvelope, typed bool) (*Envelope, error) {
	env := &Envelope{Success: w.Success}
	var err error
	switch {
	case !w.Success:
		env.Result, err = decodeFailure(w.Result)
	case typed:
		env.Result, err = c.decodeTyped(w.Result, c.resultType())
	default:
		env.Result, err = decodeGeneric(w.Result)
	}
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if !w.Success || len(w.Parameters) == 0 {
		return env, nil
	}
	env.Params = make([]any, len(w.Parameters))
	for i, raw := range w.Parameters {
		// Only write-back positions carry meaningful values.
		if !typed || c.method == nil || i >= len(c.method.Params) || !c.desc.ParamTransfer(i).WritesBack() {
			continue
		}
		if env.Params[i], err = c.decodeTyped(raw, c.method.Params[i]); err != nil {
			return nil, fmt.Errorf("decode parameter %d: %w", i, err)
		}
	}
	return env, nil
}

// resultType is the type the result is decoded into: a Locator for REF
// returns, the declared type otherwise, nil when unknown.
func (c *JSONCodec) resultType() reflect.Type {
	if c.desc.ReturnTransfer() == TransferRef {
		return locatorType
	}
	if c.method == nil {
		return nil
	}
	return c.method.Result
}

func (c *JSONCodec) decodeTyped(raw json.RawMessage, t reflect.Type) (any, error) {
	if t == nil {
		return decodeGeneric(raw)
	}
	if isNull(raw) {
		return reflect.Zero(t).Interface(), nil
	}
	v := reflect.New(t)
	if err := json.Unmarshal(raw, v.Interface()); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

func decodeGeneric(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeFailure reads a RemoteError. A bare JSON string is taken as the
// message.
func decodeFailure(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("empty failure payload")
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return &RemoteError{Message: msg}, nil
	}
	re := &RemoteError{}
	if err := json.Unmarshal(raw, re); err != nil {
		return nil, err
	}
	if re.Message == "" && re.Type == "" {
		return nil, fmt.Errorf("failure payload has neither type nor message")
	}
	return re, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
