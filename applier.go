// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"reflect"
)

// Applier copies a decoded write-back value into the caller's argument in
// place. The target keeps its identity; only its content changes.
type Applier interface {
	Apply(target, value any) error
}

// ApplyChecker is implemented by appliers that can tell whether Apply would
// succeed without touching the target. When the binding's applier implements
// it, every write-back value of a call is checked before any is applied.
type ApplyChecker interface {
	CheckApply(target, value any) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(target, value any) error

func (f ApplierFunc) Apply(target, value any) error { return f(target, value) }

// ReflectApplier is the default Applier. Pointer targets receive the pointee
// of a same-typed pointer value, or a value assignable to the pointee; map
// targets are cleared and refilled; slice targets get the elements of a
// same-typed slice of equal length copied into their backing array. A nil
// value zeroes the target.
type ReflectApplier struct{}

func (a ReflectApplier) Apply(target, value any) error {
	if err := a.CheckApply(target, value); err != nil {
		return err
	}
	dst, src := reflect.ValueOf(target), reflect.ValueOf(value)
	switch dst.Kind() {
	case reflect.Pointer:
		applyPointer(dst, src)
	case reflect.Map:
		applyMap(dst, src)
	case reflect.Slice:
		applySlice(dst, src)
	}
	return nil
}

func (ReflectApplier) CheckApply(target, value any) error {
	if err := checkWriteBackTarget(target); err != nil {
		return err
	}
	dst, src := reflect.ValueOf(target), reflect.ValueOf(value)
	if !src.IsValid() {
		return nil
	}
	switch dst.Kind() {
	case reflect.Pointer:
		if src.Type() == dst.Type() || src.Type().AssignableTo(dst.Type().Elem()) {
			return nil
		}
	case reflect.Map:
		if src.Type() == dst.Type() {
			return nil
		}
	case reflect.Slice:
		if src.Type() != dst.Type() {
			break
		}
		if src.Len() != dst.Len() {
			return fmt.Errorf("%w: cannot write %d elements into %s of length %d",
				ErrWriteBackTarget, src.Len(), dst.Type(), dst.Len())
		}
		return nil
	}
	return fmt.Errorf("%w: cannot write %s into %s", ErrWriteBackTarget, src.Type(), dst.Type())
}

// checkWriteBackTarget reports whether target can be updated in place: it
// must be a non-nil pointer, map or slice.
func checkWriteBackTarget(target any) error {
	dst := reflect.ValueOf(target)
	if !dst.IsValid() {
		return fmt.Errorf("%w: nil target", ErrWriteBackTarget)
	}
	switch dst.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if dst.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrWriteBackTarget, dst.Type())
		}
		return nil
	default:
		return fmt.Errorf("%w: %s is passed by value", ErrWriteBackTarget, dst.Type())
	}
}

func applyPointer(dst, src reflect.Value) {
	elem := dst.Elem()
	switch {
	case !src.IsValid():
		elem.SetZero()
	case src.Type() == dst.Type():
		if src.IsNil() {
			elem.SetZero()
		} else if src.Pointer() != dst.Pointer() {
			elem.Set(src.Elem())
		}
	default:
		elem.Set(src)
	}
}

func applyMap(dst, src reflect.Value) {
	if src.IsValid() && src.Pointer() == dst.Pointer() {
		return
	}
	dst.Clear()
	if !src.IsValid() {
		return
	}
	iter := src.MapRange()
	for iter.Next() {
		dst.SetMapIndex(iter.Key(), iter.Value())
	}
}

func applySlice(dst, src reflect.Value) {
	if !src.IsValid() {
		dst.Clear()
		return
	}
	reflect.Copy(dst, src)
}
