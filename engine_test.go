// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeAddWithDefaults(t *testing.T) {
	transport := replyWith("5")
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", transport))

	sum, err := calc.Add(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, sum)

	req := transport.Last()
	assert.JSONEq(t, `[2,3]`, string(req.Body))
	assert.Equal(t, "Add", req.Method)
	assert.False(t, req.Envelope)
	assert.Equal(t, "application/json", req.ContentType)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, testBase+"/calc", req.Locator.ServiceURL())
}

func TestInvokeRelativeLocatorFailsBeforeIO(t *testing.T) {
	transport := replyWith("5")
	counters := &codecCounters{}
	b := NewBinding(NewRelative("calc"),
		WithTransport(SchemeHTTP, transport),
		WithCodecs(spyCodecs(counters)),
		WithFactory(testFactory),
		WithLogger(nullLogger()),
	)
	calc := buildStub[Calculator](t, b)

	_, err := calc.Add(context.Background(), 2, 3)
	require.ErrorIs(t, err, ErrRelativeLocator)
	assert.Zero(t, transport.Calls())
	assert.Zero(t, counters.encodes.Load())
}

func TestInvokeArgCountMismatch(t *testing.T) {
	transport := replyWith("5")
	stub := buildStub[*Stub](t, newTestBinding(t, "calc", transport))

	_, err := stub.Invoke(context.Background(), addMethod, 1)
	require.ErrorIs(t, err, ErrArgCount)
	assert.Zero(t, transport.Calls())
}

func TestInvokeAlias(t *testing.T) {
	transport := replyWith("9")
	descriptors := Descriptors{
		addMethod.Key(): {Alias: "add_numbers", Params: []*ValueDescriptor{nil, nil}},
	}
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", transport, WithDescriptors(descriptors)))

	_, err := calc.Add(context.Background(), 4, 5)
	require.NoError(t, err)
	assert.Equal(t, "add_numbers", transport.Last().Method)
}

func TestInvokeOutParameterWriteBack(t *testing.T) {
	transport := replyWith(`{"success":true,"parameters":[{"name":"gear","size":7}]}`)
	descriptors := Descriptors{
		configureMethod.Key(): {Params: []*ValueDescriptor{Out}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport,
		WithEnvelope(true), WithDescriptors(descriptors)))

	w := &Widget{Name: "old", Size: 1}
	same := w
	require.NoError(t, svc.Configure(context.Background(), w))

	assert.Same(t, same, w)
	assert.Equal(t, Widget{Name: "gear", Size: 7}, *w)
	assert.True(t, transport.Last().Envelope)
}

func TestInvokeInOutMapWriteBack(t *testing.T) {
	transport := replyWith(`{"success":true,"parameters":[{"b":2,"c":3}]}`)
	descriptors := Descriptors{
		fillMethod.Key(): {Params: []*ValueDescriptor{InOut}},
	}
	stub := buildStub[*Stub](t, newTestBinding(t, "maps", transport,
		WithEnvelope(true), WithDescriptors(descriptors)))

	m := map[string]int{"a": 1}
	res, err := stub.Invoke(context.Background(), fillMethod, m)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, map[string]int{"b": 2, "c": 3}, m)
	assert.JSONEq(t, `[{"a":1}]`, string(transport.Last().Body))
}

func TestInvokeOutSliceWriteBack(t *testing.T) {
	readMethod := NewMethod("Read", nil, reflect.TypeOf((*[]byte)(nil)).Elem())
	transport := replyWith(`{"success":true,"parameters":["aGVsbG8="]}`)
	descriptors := Descriptors{readMethod.Key(): {Params: []*ValueDescriptor{Out}}}
	stub := buildStub[*Stub](t, newTestBinding(t, "files", transport,
		WithEnvelope(true), WithDescriptors(descriptors)))

	buf := make([]byte, 5)
	backing := &buf[0]
	_, err := stub.Invoke(context.Background(), readMethod, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	assert.Same(t, backing, &buf[0])
}

func TestInvokeWriteBackTargetCheckedBeforeIO(t *testing.T) {
	configureByValue := NewMethod("Configure", nil, reflect.TypeOf((*Widget)(nil)).Elem())
	tests := []struct {
		name   string
		method *Method
		arg    any
	}{
		{"value", configureByValue, Widget{Name: "copy"}},
		{"nil pointer", configureMethod, (*Widget)(nil)},
		{"nil slice", NewMethod("Read", nil, reflect.TypeOf((*[]byte)(nil)).Elem()), []byte(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := replyWith(`{"success":true,"parameters":[{"name":"gear"}]}`)
			counters := &codecCounters{}
			descriptors := Descriptors{tt.method.Key(): {Params: []*ValueDescriptor{Out}}}
			stub := buildStub[*Stub](t, newTestBinding(t, "widgets", transport,
				WithEnvelope(true), WithDescriptors(descriptors), WithCodecs(spyCodecs(counters))))

			_, err := stub.Invoke(context.Background(), tt.method, tt.arg)
			require.ErrorIs(t, err, ErrWriteBackTarget)
			assert.Zero(t, transport.Calls())
			assert.Zero(t, counters.encodes.Load())
		})
	}
}

func TestInvokeWriteBackAllOrNothing(t *testing.T) {
	swapMethod := NewMethod("Swap", nil, reflect.TypeOf((**Widget)(nil)).Elem(), reflect.TypeOf((*[]byte)(nil)).Elem())
	transport := replyWith(`{"success":true,"parameters":[{"name":"new"},"aGk="]}`)
	descriptors := Descriptors{swapMethod.Key(): {Params: []*ValueDescriptor{Out, Out}}}
	stub := buildStub[*Stub](t, newTestBinding(t, "files", transport,
		WithEnvelope(true), WithDescriptors(descriptors)))

	w := &Widget{Name: "old"}
	buf := []byte("12345")
	_, err := stub.Invoke(context.Background(), swapMethod, w, buf)
	require.ErrorIs(t, err, ErrWriteBackTarget)
	assert.Equal(t, 1, transport.Calls())
	assert.Equal(t, "old", w.Name)
	assert.Equal(t, "12345", string(buf))
}

func TestInvokeWriteBackOnlyOnSuccess(t *testing.T) {
	transport := replyWith(`{"success":false,"result":{"message":"denied"},"parameters":[{"name":"x"}]}`)
	descriptors := Descriptors{
		configureMethod.Key(): {Params: []*ValueDescriptor{Out}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport,
		WithEnvelope(true), WithDescriptors(descriptors)))

	w := &Widget{Name: "old"}
	err := svc.Configure(context.Background(), w)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "denied", remote.Message)
	assert.Equal(t, "old", w.Name)
}

func TestWriteBackPolicyReject(t *testing.T) {
	transport := replyWith("")
	descriptors := Descriptors{
		configureMethod.Key(): {Params: []*ValueDescriptor{Out}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport,
		WithDescriptors(descriptors), WithWriteBackPolicy(WriteBackReject)))

	err := svc.Configure(context.Background(), &Widget{})
	require.ErrorIs(t, err, ErrWriteBackUnsupported)
	assert.Zero(t, transport.Calls())
}

func TestWriteBackPolicyIgnore(t *testing.T) {
	transport := replyWith("")
	descriptors := Descriptors{
		configureMethod.Key(): {Params: []*ValueDescriptor{Out}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport,
		WithDescriptors(descriptors), WithWriteBackPolicy(WriteBackIgnore)))

	w := &Widget{Name: "old"}
	require.NoError(t, svc.Configure(context.Background(), w))
	assert.Equal(t, 1, transport.Calls())
	assert.Equal(t, "old", w.Name)
}

func TestInvokeVoidBareModeSkipsDecoding(t *testing.T) {
	transport := replyWith("this is not json")
	counters := &codecCounters{}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport, WithCodecs(spyCodecs(counters))))

	require.NoError(t, svc.Configure(context.Background(), &Widget{Name: "a"}))
	assert.Equal(t, int32(1), counters.encodes.Load())
	assert.Zero(t, counters.results.Load())
	assert.Zero(t, counters.envelopes.Load())
}

func TestInvokeRefResultRelative(t *testing.T) {
	transport := replyWith(`"handleA"`)
	descriptors := Descriptors{
		getMethod.Key(): {Return: Ref},
	}
	b := newTestBinding(t, "widgets", transport, WithDescriptors(descriptors))
	svc := buildStub[WidgetService](t, b)

	h, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h)

	ref := MustUnwrap(h)
	assert.Equal(t, mustQualify(t, b.Locator().Base(), "handleA"), ref.Locator())
	assert.Equal(t, testBase+"/handleA", ref.Locator().ServiceURL())
	assert.Equal(t, b.Envelope(), ref.Envelope())

	// The new stub talks through the same configuration.
	transport.respond = func(*Request) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(`"first"`)), nil
	}
	name, err := h.Name(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", name)
	assert.Equal(t, testBase+"/handleA", transport.Last().Locator.ServiceURL())
}

func TestInvokeRefResultAbsolute(t *testing.T) {
	transport := replyWith(`"http://other.test/x/handleB"`)
	descriptors := Descriptors{
		getMethod.Key(): {Return: Ref},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport, WithDescriptors(descriptors)))

	h, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mustQualify(t, "http://other.test/x", "handleB"), MustUnwrap(h).Locator())
}

func TestInvokeRefResultNull(t *testing.T) {
	transport := replyWith(`null`)
	descriptors := Descriptors{
		getMethod.Key(): {Return: Ref},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport, WithDescriptors(descriptors)))

	h, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestInvokeRefArgumentSendsLocator(t *testing.T) {
	transport := replyWith("")
	descriptors := Descriptors{
		attachMethod.Key(): {Params: []*ValueDescriptor{Ref}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport, WithDescriptors(descriptors)))
	handle := buildStub[Handle](t, newTestBinding(t, "handleA", transport))

	require.NoError(t, svc.Attach(context.Background(), handle))

	want, err := json.Marshal([]any{MustUnwrap(handle).Locator()})
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(transport.Last().Body))
	assert.JSONEq(t, `["`+testBase+`/handleA"]`, string(transport.Last().Body))
}

func TestInvokeRefArgumentRejectsNonStub(t *testing.T) {
	transport := replyWith("")
	counters := &codecCounters{}
	descriptors := Descriptors{
		attachMethod.Key(): {Params: []*ValueDescriptor{Ref}},
	}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport,
		WithDescriptors(descriptors), WithCodecs(spyCodecs(counters))))

	err := svc.Attach(context.Background(), localHandle{name: "local"})
	require.ErrorIs(t, err, ErrNotStub)
	assert.Zero(t, transport.Calls())
	assert.Zero(t, counters.encodes.Load())
}

func TestInvokeRecoversErrorChannel(t *testing.T) {
	transport := failWith(&StatusError{Code: 500, Body: []byte(`{"type":"IllegalState","message":"boom"}`)})
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", transport))

	_, err := calc.Add(context.Background(), 1, 1)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "IllegalState", remote.Type)
	assert.Equal(t, "boom", remote.Message)

	var status *StatusError
	assert.False(t, errors.As(err, &status))
}

func TestInvokeRecoversEnvelopeErrorChannel(t *testing.T) {
	transport := failWith(&StatusError{Code: 500, Body: []byte(`{"success":false,"result":{"message":"bad widget"}}`)})
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", transport, WithEnvelope(true)))

	err := svc.Configure(context.Background(), &Widget{})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "bad widget", remote.Message)
}

func TestInvokeUndecodableErrorChannel(t *testing.T) {
	status := &StatusError{Code: 502, Body: []byte("<html>bad gateway</html>")}
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", failWith(status)))

	_, err := calc.Add(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, err == error(status), "want the original transport failure, got %v", err)
}

// genericCodec decodes untyped results as plain JSON values instead of
// failure payloads.
type genericCodec struct {
	*JSONCodec
}

func (c genericCodec) DecodeResult(r io.Reader, typed bool) (any, error) {
	if typed {
		return c.JSONCodec.DecodeResult(r, typed)
	}
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func TestInvokeErrorChannelNonErrorPayload(t *testing.T) {
	codecs := CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
		return genericCodec{NewJSONCodec(m, d)}, nil
	})
	status := &StatusError{Code: 500, Body: []byte(`{"code":42}`)}
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", failWith(status), WithCodecs(codecs)))

	_, err := calc.Add(context.Background(), 1, 1)
	var payload *PayloadError
	require.ErrorAs(t, err, &payload)
	assert.Equal(t, map[string]any{"code": float64(42)}, payload.Payload)
	assert.False(t, errors.As(err, &status))
}

func TestInvokeEnvelopeErrorChannelNonErrorPayload(t *testing.T) {
	status := &StatusError{Code: 500, Body: []byte(`{"success":true,"result":{"code":42}}`)}
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", failWith(status), WithEnvelope(true)))

	err := svc.Configure(context.Background(), &Widget{})
	var payload *PayloadError
	require.ErrorAs(t, err, &payload)
	assert.Equal(t, map[string]any{"code": float64(42)}, payload.Payload)
}

func TestInvokeTransportErrorUnchanged(t *testing.T) {
	cause := errors.New("connection refused")
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", failWith(cause)))

	_, err := calc.Add(context.Background(), 1, 1)
	assert.True(t, err == cause)
}

type failingCodec struct {
	JSONCodec
	failure error
}

func (c *failingCodec) DecodeEnvelope(io.Reader, bool) (*Envelope, error) {
	return &Envelope{Success: false, Result: c.failure}, nil
}

func TestInvokeEnvelopeFailurePropagatedVerbatim(t *testing.T) {
	sentinel := fmt.Errorf("remote says no")
	codecs := CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
		return &failingCodec{failure: sentinel}, nil
	})
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", replyWith("{}"),
		WithEnvelope(true), WithCodecs(codecs)))

	_, err := calc.Add(context.Background(), 1, 2)
	assert.True(t, err == sentinel)
}

func TestInvokeEnvelopeNonErrorFailure(t *testing.T) {
	codecs := CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
		return &failingCodec{}, nil
	})
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", replyWith("{}"),
		WithEnvelope(true), WithCodecs(codecs)))

	_, err := calc.Add(context.Background(), 1, 2)
	var payload *PayloadError
	require.ErrorAs(t, err, &payload)
	assert.Nil(t, payload.Payload)
}

func TestInvokeClosesResponseBody(t *testing.T) {
	for name, body := range map[string]string{
		"decoded":   "5",
		"malformed": "five",
	} {
		t.Run(name, func(t *testing.T) {
			tracked := &trackedBody{Reader: strings.NewReader(body)}
			transport := &mockTransport{respond: func(*Request) (io.ReadCloser, error) {
				return tracked, nil
			}}
			calc := buildStub[Calculator](t, newTestBinding(t, "calc", transport))

			_, _ = calc.Add(context.Background(), 2, 3)
			assert.True(t, tracked.closed.Load())
		})
	}
}

func TestInvokeEncodeFailure(t *testing.T) {
	transport := replyWith("null")
	stub := buildStub[*Stub](t, newTestBinding(t, "calc", transport))
	m := NewMethod("Send", nil, reflect.TypeOf((*chan int)(nil)).Elem())

	_, err := stub.Invoke(context.Background(), m, make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode args")
	assert.Zero(t, transport.Calls())
}

func TestInvokeUnknownScheme(t *testing.T) {
	b := NewBinding(mustQualify(t, "ftp://files.test", "calc"), WithFactory(testFactory), WithLogger(nullLogger()))
	calc := buildStub[Calculator](t, b)

	_, err := calc.Add(context.Background(), 1, 2)
	require.ErrorIs(t, err, ErrNoTransport)
}

func TestInvokeDiagnostics(t *testing.T) {
	reporter := &recordingReporter{}
	descriptors := Descriptors{
		addMethod.Key(): {Diagnostics: true, Params: make([]*ValueDescriptor, 2)},
	}
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", replyWith("5"),
		WithDescriptors(descriptors), WithReporter(reporter)))
	svc := buildStub[WidgetService](t, newTestBinding(t, "widgets", replyWith(""),
		WithDescriptors(descriptors), WithReporter(reporter)))

	_, err := calc.Add(context.Background(), 2, 3)
	require.NoError(t, err)
	require.NoError(t, svc.Configure(context.Background(), &Widget{}))

	outcomes := reporter.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "CALL "+testBase+"/calc Add", outcomes[0].Name)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, 5, outcomes[0].Result)
	assert.NotEmpty(t, outcomes[0].CallID)
}

func TestInvokeDiagnosticsGlobal(t *testing.T) {
	reporter := &recordingReporter{}
	cause := errors.New("unreachable")
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", failWith(cause),
		WithDiagnostics(true), WithReporter(reporter)))

	_, err := calc.Add(context.Background(), 2, 3)
	require.Error(t, err)

	outcomes := reporter.Outcomes()
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, cause, outcomes[0].Err)
	assert.Equal(t, "error: unreachable", outcomes[0].Summary())
}

func TestInvokeConcurrent(t *testing.T) {
	transport := &mockTransport{respond: func(req *Request) (io.ReadCloser, error) {
		var args []int
		if err := json.Unmarshal(req.Body, &args); err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(fmt.Sprint(args[0] + args[1]))), nil
	}}
	calc := buildStub[Calculator](t, newTestBinding(t, "calc", transport))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sum, err := calc.Add(context.Background(), i, i)
			if err != nil {
				errs <- err
				return
			}
			if sum != 2*i {
				errs <- fmt.Errorf("Add(%d, %d) = %d", i, i, sum)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 64, transport.Calls())
}
