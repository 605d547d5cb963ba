// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// WriteBackPolicy decides what happens to OUT and IN_OUT parameters when
// envelope mode is off and the response cannot carry write-back values.
type WriteBackPolicy uint8

const (
	// WriteBackReject fails such calls before any I/O.
	WriteBackReject WriteBackPolicy = iota
	// WriteBackIgnore performs the call and leaves the arguments untouched.
	WriteBackIgnore
)

func (p WriteBackPolicy) String() string {
	switch p {
	case WriteBackReject:
		return "reject"
	case WriteBackIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseWriteBackPolicy parses "reject" or "ignore".
func ParseWriteBackPolicy(s string) (WriteBackPolicy, error) {
	switch s {
	case "", "reject":
		return WriteBackReject, nil
	case "ignore":
		return WriteBackIgnore, nil
	default:
		return WriteBackReject, fmt.Errorf("unknown write-back policy: %s", s)
	}
}

// Binding is the configuration a stub is bound to. It is fixed at
// construction and shared by every call made through the stub, so one
// Binding may be used from many goroutines at once.
type Binding struct {
	locator     Locator
	descriptors DescriptorSource
	codecs      CodecSource
	envelope    bool
	applier     Applier
	diagnostics bool
	writeBack   WriteBackPolicy
	transports  map[string]Transport
	reporter    Reporter
	logger      *logrus.Logger
	factory     *Factory
}

// Option configures a Binding.
type Option func(*Binding)

// WithDescriptors sets the descriptor source. Without one every parameter
// and result is transferred by value.
func WithDescriptors(src DescriptorSource) Option {
	return func(b *Binding) { b.descriptors = src }
}

// WithCodecs sets the codec source. Defaults to JSONCodecs.
func WithCodecs(src CodecSource) Option {
	return func(b *Binding) { b.codecs = src }
}

// WithEnvelope turns envelope mode on or off. Envelope mode is required for
// OUT and IN_OUT parameters to be written back.
func WithEnvelope(on bool) Option {
	return func(b *Binding) { b.envelope = on }
}

// WithApplier sets the write-back applier. Defaults to ReflectApplier.
func WithApplier(a Applier) Option {
	return func(b *Binding) { b.applier = a }
}

// WithDiagnostics enables diagnostics for every method. Descriptors can
// enable them for single methods.
func WithDiagnostics(on bool) Option {
	return func(b *Binding) { b.diagnostics = on }
}

// WithReporter sets where diagnostics go. Defaults to a LogReporter on the
// binding's logger.
func WithReporter(r Reporter) Option {
	return func(b *Binding) { b.reporter = r }
}

// WithWriteBackPolicy sets the write-back policy for bare mode.
func WithWriteBackPolicy(p WriteBackPolicy) Option {
	return func(b *Binding) { b.writeBack = p }
}

// WithTransport overrides the registered transport for scheme.
func WithTransport(scheme string, t Transport) Option {
	return func(b *Binding) {
		if b.transports == nil {
			b.transports = make(map[string]Transport)
		}
		b.transports[scheme] = t
	}
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l *logrus.Logger) Option {
	return func(b *Binding) { b.logger = l }
}

// WithFactory sets the factory used to build stubs for REF results.
// Defaults to DefaultFactory.
func WithFactory(f *Factory) Option {
	return func(b *Binding) { b.factory = f }
}

// NewBinding creates a Binding for locator. A relative locator is accepted
// here; calls through it fail with ErrRelativeLocator.
func NewBinding(locator Locator, opts ...Option) *Binding {
	b := &Binding{
		locator: locator,
		codecs:  JSONCodecs,
		applier: ReflectApplier{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logrus.StandardLogger()
	}
	if b.reporter == nil {
		b.reporter = LogReporter{Logger: b.logger}
	}
	if b.factory == nil {
		b.factory = DefaultFactory
	}
	return b
}

func (b *Binding) Locator() Locator { return b.locator }

func (b *Binding) Envelope() bool { return b.envelope }

func (b *Binding) WriteBackPolicy() WriteBackPolicy { return b.writeBack }

// relocate returns a copy of b bound to locator. Everything else is shared.
func (b *Binding) relocate(locator Locator) *Binding {
	c := *b
	c.locator = locator
	return &c
}

func (b *Binding) transport(scheme string) (Transport, error) {
	if t, ok := b.transports[scheme]; ok {
		return t, nil
	}
	if t, ok := registeredTransport(scheme); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoTransport, scheme)
}
