// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"context"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const testBase = "http://svc.test/api"

type Widget struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Calculator interface {
	Add(ctx context.Context, a, b int) (int, error)
}

type Handle interface {
	Name(ctx context.Context) (string, error)
}

type WidgetService interface {
	Configure(ctx context.Context, w *Widget) error
	Get(ctx context.Context) (Handle, error)
	Attach(ctx context.Context, h Handle) error
}

var (
	addMethod       = NewMethod("Add", reflect.TypeOf((*int)(nil)).Elem(), reflect.TypeOf((*int)(nil)).Elem(), reflect.TypeOf((*int)(nil)).Elem())
	configureMethod = NewMethod("Configure", nil, reflect.TypeOf((**Widget)(nil)).Elem())
	getMethod       = NewMethod("Get", reflect.TypeOf((*Handle)(nil)).Elem())
	attachMethod    = NewMethod("Attach", nil, reflect.TypeOf((*Handle)(nil)).Elem())
	nameMethod      = NewMethod("Name", reflect.TypeOf((*string)(nil)).Elem())
	fillMethod      = NewMethod("Fill", nil, reflect.TypeOf((*map[string]int)(nil)).Elem())
)

type calculatorStub struct{ *Stub }

func (s calculatorStub) Add(ctx context.Context, a, b int) (int, error) {
	return Result[int](s.Invoke(ctx, addMethod, a, b))
}

type handleStub struct{ *Stub }

func (s handleStub) Name(ctx context.Context) (string, error) {
	return Result[string](s.Invoke(ctx, nameMethod))
}

type widgetStub struct{ *Stub }

func (s widgetStub) Configure(ctx context.Context, w *Widget) error {
	_, err := s.Invoke(ctx, configureMethod, w)
	return err
}

func (s widgetStub) Get(ctx context.Context) (Handle, error) {
	return Result[Handle](s.Invoke(ctx, getMethod))
}

func (s widgetStub) Attach(ctx context.Context, h Handle) error {
	_, err := s.Invoke(ctx, attachMethod, h)
	return err
}

// localHandle implements Handle without being a stub.
type localHandle struct{ name string }

func (h localHandle) Name(context.Context) (string, error) { return h.name, nil }

var testFactory = NewFactory()

func init() {
	RegisterAdapter(testFactory, func(s *Stub) Calculator { return calculatorStub{s} })
	RegisterAdapter(testFactory, func(s *Stub) Handle { return handleStub{s} })
	RegisterAdapter(testFactory, func(s *Stub) WidgetService { return widgetStub{s} })
}

// mockTransport records requests and answers them with respond.
type mockTransport struct {
	mu       sync.Mutex
	requests []Request
	respond  func(req *Request) (io.ReadCloser, error)
}

func (m *mockTransport) RoundTrip(_ context.Context, req *Request) (io.ReadCloser, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()
	return m.respond(req)
}

func (m *mockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockTransport) Last() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func replyWith(body string) *mockTransport {
	return &mockTransport{respond: func(*Request) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}}
}

func failWith(err error) *mockTransport {
	return &mockTransport{respond: func(*Request) (io.ReadCloser, error) {
		return nil, err
	}}
}

// trackedBody records whether the engine closed it.
type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

// codecCounters counts the calls made on spy codecs.
type codecCounters struct {
	encodes   atomic.Int32
	results   atomic.Int32
	envelopes atomic.Int32
}

type spyCodec struct {
	Codec
	counters *codecCounters
}

func (c *spyCodec) Encode(w io.Writer, method string, args []any) error {
	c.counters.encodes.Add(1)
	return c.Codec.Encode(w, method, args)
}

func (c *spyCodec) DecodeResult(r io.Reader, typed bool) (any, error) {
	c.counters.results.Add(1)
	return c.Codec.DecodeResult(r, typed)
}

func (c *spyCodec) DecodeEnvelope(r io.Reader, typed bool) (*Envelope, error) {
	c.counters.envelopes.Add(1)
	return c.Codec.DecodeEnvelope(r, typed)
}

func spyCodecs(counters *codecCounters) CodecSource {
	return CodecSourceFunc(func(m *Method, d *MethodDescriptor) (Codec, error) {
		return &spyCodec{Codec: NewJSONCodec(m, d), counters: counters}, nil
	})
}

// recordingReporter keeps every reported outcome.
type recordingReporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recordingReporter) Report(o *Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, *o)
}

func (r *recordingReporter) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func nullLogger() *logrus.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func mustQualify(t testing.TB, base, name string) Locator {
	t.Helper()
	loc, err := Qualify(base, name)
	if err != nil {
		t.Fatalf("Qualify(%q, %q): %v", base, name, err)
	}
	return loc
}

// newTestBinding binds service under testBase to transport t.
func newTestBinding(tb testing.TB, service string, t Transport, opts ...Option) *Binding {
	tb.Helper()
	base := []Option{
		WithTransport(SchemeHTTP, t),
		WithFactory(testFactory),
		WithLogger(nullLogger()),
	}
	return NewBinding(mustQualify(tb, testBase, service), append(base, opts...)...)
}

func buildStub[T any](tb testing.TB, b *Binding) T {
	tb.Helper()
	v, err := Build[T](testFactory, b)
	if err != nil {
		tb.Fatalf("Build: %v", err)
	}
	return v
}
