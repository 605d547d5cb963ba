// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"reflect"
	"strings"
)

// MethodKey identifies an interface method by name and ordered parameter
// types, e.g. "Configure(*example.com/widgets.Widget)". It does not depend on
// any stub instance and is the lookup key for method descriptors.
type MethodKey string

// Method is the precomputed call signature of one interface method. Adapters
// declare one Method per interface method, usually as a package variable.
type Method struct {
	Name   string
	Params []reflect.Type
	// Result is nil for methods that return nothing but an error.
	Result reflect.Type

	key MethodKey
}

// NewMethod builds a Method and its key. Pass a nil result for void methods.
func NewMethod(name string, result reflect.Type, params ...reflect.Type) *Method {
	ids := make([]string, len(params))
	for i, p := range params {
		ids[i] = typeID(p)
	}
	return &Method{
		Name:   name,
		Params: params,
		Result: result,
		key:    MethodKey(name + "(" + strings.Join(ids, ",") + ")"),
	}
}

func (m *Method) Key() MethodKey { return m.key }

func (m *Method) IsVoid() bool { return m.Result == nil }

func (m *Method) String() string { return string(m.key) }

// typeID qualifies named types with their package path so that equally named
// types from different packages do not collide.
func typeID(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + typeID(t.Elem())
	case reflect.Slice:
		return "[]" + typeID(t.Elem())
	case reflect.Map:
		return "map[" + typeID(t.Key()) + "]" + typeID(t.Elem())
	default:
		return t.String()
	}
}
