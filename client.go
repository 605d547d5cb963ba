// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"context"
	"fmt"
	"reflect"
)

// Invoker performs a remote call described by m with the given arguments.
// It is what typed adapters forward to.
type Invoker interface {
	Invoke(ctx context.Context, m *Method, args ...any) (any, error)
}

// Stub forwards calls to the engine for its Binding. Stubs are only created
// by a Factory. Typed adapters embed *Stub and implement the service
// interface by calling Invoke:
//
//	type calculatorStub struct{ *remoting.Stub }
//
//	var addMethod = remoting.NewMethod("Add", reflect.TypeFor[int](),
//		reflect.TypeFor[int](), reflect.TypeFor[int]())
//
//	func (s calculatorStub) Add(ctx context.Context, a, b int) (int, error) {
//		return remoting.Result[int](s.Invoke(ctx, addMethod, a, b))
//	}
type Stub struct {
	binding *Binding
}

var stubType = reflect.TypeOf((*Stub)(nil))

func (s *Stub) Invoke(ctx context.Context, m *Method, args ...any) (any, error) {
	return s.binding.invoke(ctx, m, args)
}

// Binding returns the configuration the stub is bound to.
func (s *Stub) Binding() *Binding { return s.binding }

func (s *Stub) Locator() Locator { return s.binding.locator }

// remoteStub is promoted into every adapter that embeds *Stub. Being
// unexported, no other type can satisfy stubHolder.
func (s *Stub) remoteStub() *Stub { return s }

type stubHolder interface {
	remoteStub() *Stub
}

// Unwrap returns the Binding behind a stub built by a Factory, or behind an
// adapter embedding one. Anything else yields ErrNotStub.
func Unwrap(v any) (*Binding, error) {
	h, ok := v.(stubHolder)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotStub, v)
	}
	s := h.remoteStub()
	if s == nil || s.binding == nil {
		return nil, fmt.Errorf("%w: %T has no binding", ErrNotStub, v)
	}
	return s.binding, nil
}

// MustUnwrap is like Unwrap but panics when v is not a stub.
func MustUnwrap(v any) *Binding {
	b, err := Unwrap(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Result converts the untyped result of Invoke for typed adapters. A nil
// result yields the zero value of T.
func Result[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", ErrResultType, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}
