// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"reflect"
	"sync"
)

// Factory builds stubs for service interfaces. Go cannot synthesize an
// implementation of an arbitrary interface at run time, so each interface
// gets an adapter, registered once at startup, that wraps a *Stub.
type Factory struct {
	mu       sync.RWMutex
	adapters map[reflect.Type]func(*Stub) any
}

// DefaultFactory is used by Dial and by bindings without WithFactory.
var DefaultFactory = NewFactory()

func NewFactory() *Factory {
	return &Factory{adapters: make(map[reflect.Type]func(*Stub) any)}
}

// RegisterAdapter registers the adapter for interface T on f. It panics if T
// is not an interface type.
func RegisterAdapter[T any](f *Factory, adapt func(*Stub) T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Interface {
		panic(fmt.Sprintf("remoting: RegisterAdapter needs an interface type, got %s", t))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adapters[t] = func(s *Stub) any { return adapt(s) }
}

// HasAdapter reports whether an adapter is registered for iface.
func (f *Factory) HasAdapter(iface reflect.Type) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.adapters[iface]
	return ok
}

// Build returns a stub implementing iface bound to b. Asking for the *Stub
// type returns the bare stub.
func (f *Factory) Build(iface reflect.Type, b *Binding) (any, error) {
	if b == nil {
		return nil, fmt.Errorf("remoting: nil binding")
	}
	s := &Stub{binding: b}
	if iface == stubType {
		return s, nil
	}
	f.mu.RLock()
	adapt, ok := f.adapters[iface]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, iface)
	}
	return adapt(s), nil
}

// Build is the typed form of (*Factory).Build.
func Build[T any](f *Factory, b *Binding) (T, error) {
	var zero T
	v, err := f.Build(reflect.TypeOf((*T)(nil)).Elem(), b)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Dial parses rawLocator and builds a T stub for it with the binding's
// factory.
func Dial[T any](rawLocator string, opts ...Option) (T, error) {
	var zero T
	loc, err := ParseLocator(rawLocator)
	if err != nil {
		return zero, err
	}
	b := NewBinding(loc, opts...)
	return Build[T](b.factory, b)
}
