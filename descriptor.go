// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"strings"
)

// Transfer is the policy for moving one parameter or return value across the
// wire.
type Transfer uint8

const (
	// TransferValue sends and receives the value itself.
	TransferValue Transfer = iota
	// TransferRef sends or receives the Locator of a remote object instead of
	// its content.
	TransferRef
	// TransferOut marks a caller-owned placeholder that is filled from the
	// response. What is sent for it does not matter.
	TransferOut
	// TransferInOut is sent as a value and written back on return.
	TransferInOut
)

func (t Transfer) String() string {
	switch t {
	case TransferValue:
		return "value"
	case TransferRef:
		return "ref"
	case TransferOut:
		return "out"
	case TransferInOut:
		return "in_out"
	default:
		return fmt.Sprintf("transfer(%d)", uint8(t))
	}
}

// WritesBack reports whether values with this transfer mode are copied back
// into the caller's argument.
func (t Transfer) WritesBack() bool {
	return t == TransferOut || t == TransferInOut
}

// ParseTransfer parses the names produced by Transfer.String. Matching is
// case-insensitive and "in-out" is accepted for TransferInOut.
func ParseTransfer(s string) (Transfer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "value":
		return TransferValue, nil
	case "ref":
		return TransferRef, nil
	case "out":
		return TransferOut, nil
	case "in_out", "in-out", "inout":
		return TransferInOut, nil
	default:
		return TransferValue, fmt.Errorf("unknown transfer mode: %s", s)
	}
}

// ValueDescriptor describes one parameter or return value.
type ValueDescriptor struct {
	Transfer Transfer
}

// MethodDescriptor holds the transfer metadata of one method. Nil entries in
// Params and a nil Return mean TransferValue.
type MethodDescriptor struct {
	// Alias replaces the method name on the wire when set.
	Alias       string
	Diagnostics bool
	Params      []*ValueDescriptor
	Return      *ValueDescriptor
}

// DefaultMethodDescriptor returns the descriptor used when none is known:
// n value parameters, no alias, diagnostics off.
func DefaultMethodDescriptor(n int) *MethodDescriptor {
	return &MethodDescriptor{Params: make([]*ValueDescriptor, n)}
}

func (d *MethodDescriptor) ParamTransfer(i int) Transfer {
	if d == nil || i < 0 || i >= len(d.Params) || d.Params[i] == nil {
		return TransferValue
	}
	return d.Params[i].Transfer
}

func (d *MethodDescriptor) ReturnTransfer() Transfer {
	if d == nil || d.Return == nil {
		return TransferValue
	}
	return d.Return.Transfer
}

// WritesBack reports whether any parameter is OUT or IN_OUT.
func (d *MethodDescriptor) WritesBack() bool {
	if d == nil {
		return false
	}
	for _, p := range d.Params {
		if p != nil && p.Transfer.WritesBack() {
			return true
		}
	}
	return false
}

// WireName is the method name put on the wire.
func (d *MethodDescriptor) WireName(m *Method) string {
	if d != nil && d.Alias != "" {
		return d.Alias
	}
	return m.Name
}

// DescriptorSource resolves method descriptors. Resolve returns nil when it
// knows nothing about the method. Implementations must be safe for
// concurrent use.
type DescriptorSource interface {
	Resolve(key MethodKey) *MethodDescriptor
}

// DescriptorSourceFunc adapts a function to DescriptorSource.
type DescriptorSourceFunc func(key MethodKey) *MethodDescriptor

func (f DescriptorSourceFunc) Resolve(key MethodKey) *MethodDescriptor {
	return f(key)
}

// Descriptors is a static DescriptorSource. It must not be modified once it
// has been handed to a Binding.
type Descriptors map[MethodKey]*MethodDescriptor

func (d Descriptors) Resolve(key MethodKey) *MethodDescriptor {
	return d[key]
}

// Out, InOut, Ref and Value are shorthands for building descriptors in code.
var (
	Value = &ValueDescriptor{Transfer: TransferValue}
	Ref   = &ValueDescriptor{Transfer: TransferRef}
	Out   = &ValueDescriptor{Transfer: TransferOut}
	InOut = &ValueDescriptor{Transfer: TransferInOut}
)

// resolveDescriptor falls back to the default descriptor for absent sources
// and unknown methods.
func resolveDescriptor(src DescriptorSource, m *Method, nargs int) *MethodDescriptor {
	if src != nil {
		if d := src.Resolve(m.Key()); d != nil {
			return d
		}
	}
	return DefaultMethodDescriptor(nargs)
}
