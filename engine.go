// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// invoke runs one remote call. Every call owns its argument copy, request
// buffer, response and diagnostic; nothing in b is written.
func (b *Binding) invoke(ctx context.Context, m *Method, args []any) (result any, err error) {
	if len(args) != len(m.Params) {
		return nil, fmt.Errorf("%w: %s called with %d arguments", ErrArgCount, m, len(args))
	}
	if b.locator.IsRelative() {
		return nil, fmt.Errorf("%w: %q", ErrRelativeLocator, b.locator)
	}

	desc := resolveDescriptor(b.descriptors, m, len(args))
	writeBack := desc.WritesBack()
	if writeBack && !b.envelope {
		if b.writeBack == WriteBackReject {
			return nil, fmt.Errorf("%w: %s", ErrWriteBackUnsupported, m)
		}
		writeBack = false
	}
	if writeBack {
		if err := checkWriteBackTargets(desc, args); err != nil {
			return nil, err
		}
	}

	codec, err := b.codecs.Codec(m, desc)
	if err != nil {
		return nil, fmt.Errorf("select codec: %w", err)
	}

	wireArgs, err := rewriteRefArgs(desc, args)
	if err != nil {
		return nil, err
	}

	methodName := desc.WireName(m)
	transport, err := b.transport(b.locator.Scheme())
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	var diag *diagnostic
	if b.diagnostics || desc.Diagnostics {
		diag = startDiagnostic(b.reporter, b.locator.ServiceURL(), methodName, callID)
	}
	defer func() { diag.finish(result, err) }()

	env, err := b.roundTrip(ctx, transport, codec, m, &Request{
		Locator:     b.locator,
		Method:      methodName,
		Envelope:    b.envelope,
		ContentType: codec.ContentType(),
		ID:          callID,
	}, wireArgs)
	if err != nil {
		return nil, b.recoverFailure(codec, callID, err)
	}

	if !env.Success {
		return nil, failure(env.Result)
	}

	if desc.ReturnTransfer() == TransferRef {
		if env.Result, err = b.resolveRef(m, env.Result); err != nil {
			return nil, err
		}
	}

	if writeBack {
		if err := b.applyWriteBack(desc, args, env.Params); err != nil {
			return nil, err
		}
	}
	return env.Result, nil
}

// rewriteRefArgs replaces REF arguments with the locators of the stubs they
// are. The caller's slice is left alone.
func rewriteRefArgs(desc *MethodDescriptor, args []any) ([]any, error) {
	var out []any
	for i, arg := range args {
		if desc.ParamTransfer(i) != TransferRef {
			continue
		}
		ref, err := Unwrap(arg)
		if err != nil {
			return nil, fmt.Errorf("reference argument %d: %w", i, err)
		}
		if out == nil {
			out = make([]any, len(args))
			copy(out, args)
		}
		out[i] = ref.locator
	}
	if out == nil {
		return args, nil
	}
	return out, nil
}

// roundTrip encodes the arguments, sends them and decodes the response. The
// request buffer is complete, and no longer written, before the transport
// sees it; the response body is closed before returning.
func (b *Binding) roundTrip(ctx context.Context, t Transport, codec Codec, m *Method, req *Request, args []any) (*Envelope, error) {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, req.Method, args); err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	req.Body = buf.Bytes()

	b.logger.WithFields(logrus.Fields{
		"call_id": req.ID,
		"service": req.Locator.ServiceURL(),
		"method":  req.Method,
	}).Debug("remoting: dispatch")

	body, err := t.RoundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if b.envelope {
		env, err := codec.DecodeEnvelope(body, true)
		if err != nil {
			return nil, fmt.Errorf("failed to decode client response: %w", err)
		}
		return env, nil
	}
	env := &Envelope{Success: true}
	if !m.IsVoid() {
		if env.Result, err = codec.DecodeResult(body, true); err != nil {
			var inBand *PayloadError
			if errors.As(err, &inBand) {
				return &Envelope{Success: false, Result: inBand.Payload}, nil
			}
			return nil, fmt.Errorf("failed to decode client response: %w", err)
		}
	}
	return env, nil
}

// recoverFailure turns a transport failure into the failure payload found on
// the error channel, if there is one and the codec can read it. A payload that
// is not an error comes back as a *PayloadError. Otherwise the original
// failure is returned unchanged.
func (b *Binding) recoverFailure(codec Codec, callID string, cause error) error {
	var status *StatusError
	if !errors.As(cause, &status) || len(status.Body) == 0 {
		return cause
	}
	var payload any
	var err error
	if b.envelope {
		var env *Envelope
		if env, err = codec.DecodeEnvelope(bytes.NewReader(status.Body), false); err == nil {
			payload = env.Result
		}
	} else {
		payload, err = codec.DecodeResult(bytes.NewReader(status.Body), false)
	}
	if err != nil || payload == nil {
		b.logger.WithFields(logrus.Fields{
			"call_id": callID,
			"status":  status.Code,
		}).Debug("remoting: error channel not decodable")
		return cause
	}
	return failure(payload)
}

// resolveRef replaces a decoded locator with a stub of the method's return
// type bound to it. Relative locators are qualified against the caller's
// base.
func (b *Binding) resolveRef(m *Method, v any) (any, error) {
	var loc Locator
	switch r := v.(type) {
	case nil:
		return nil, nil
	case Locator:
		loc = r
	case *Locator:
		if r == nil {
			return nil, nil
		}
		loc = *r
	case string:
		if r == "" {
			return nil, nil
		}
		parsed, err := ParseLocator(r)
		if err != nil {
			return nil, fmt.Errorf("reference result: %w", err)
		}
		loc = parsed
	default:
		return nil, fmt.Errorf("reference result: %w: got %T, want Locator", ErrResultType, v)
	}
	// A null result decodes to the zero Locator.
	if loc == (Locator{}) {
		return nil, nil
	}
	if loc.IsRelative() {
		qualified, err := Qualify(b.locator.Base(), loc.ServiceName())
		if err != nil {
			return nil, fmt.Errorf("reference result: %w", err)
		}
		loc = qualified
	}
	if m.Result == nil {
		return nil, fmt.Errorf("reference result: %s declares no result type", m)
	}
	return b.factory.Build(m.Result, b.relocate(loc))
}

// checkWriteBackTargets fails when an OUT or IN_OUT argument cannot be
// updated in place, so that no request is sent for a call whose results could
// not be delivered.
func checkWriteBackTargets(desc *MethodDescriptor, args []any) error {
	for i, arg := range args {
		if !desc.ParamTransfer(i).WritesBack() {
			continue
		}
		if err := checkWriteBackTarget(arg); err != nil {
			return fmt.Errorf("write back parameter %d: %w", i, err)
		}
	}
	return nil
}

// applyWriteBack copies decoded OUT and IN_OUT values into the caller's
// arguments. With an ApplyChecker every value is checked first, so a bad
// value leaves all arguments untouched.
func (b *Binding) applyWriteBack(desc *MethodDescriptor, args, values []any) error {
	positions := make([]int, 0, len(args))
	for i := range args {
		if !desc.ParamTransfer(i).WritesBack() {
			continue
		}
		if i >= len(values) {
			return fmt.Errorf("write back parameter %d: %w: response has %d values", i, ErrWriteBackTarget, len(values))
		}
		positions = append(positions, i)
	}
	if checker, ok := b.applier.(ApplyChecker); ok {
		for _, i := range positions {
			if err := checker.CheckApply(args[i], values[i]); err != nil {
				return fmt.Errorf("write back parameter %d: %w", i, err)
			}
		}
	}
	for _, i := range positions {
		if err := b.applier.Apply(args[i], values[i]); err != nil {
			return fmt.Errorf("write back parameter %d: %w", i, err)
		}
	}
	return nil
}

// failure returns the decoded failure payload as the call's error without
// wrapping it.
func failure(payload any) error {
	if err, ok := payload.(error); ok {
		return err
	}
	return &PayloadError{Payload: payload}
}
