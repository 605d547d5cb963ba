// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"errors"
	"fmt"
)

var (
	// ErrRelativeLocator is returned when a call is made through a stub whose
	// locator has no base. No I/O happens in that case.
	ErrRelativeLocator = errors.New("remoting: service locator must be absolute")
	ErrInvalidLocator  = errors.New("remoting: invalid service locator")

	ErrNotStub    = errors.New("remoting: value is not a remote stub")
	ErrNoAdapter  = errors.New("remoting: no stub adapter registered")
	ErrResultType = errors.New("remoting: unexpected result type")
	ErrArgCount   = errors.New("remoting: argument count mismatch")

	// ErrWriteBackUnsupported is returned under WriteBackReject when a method
	// declares OUT or IN_OUT parameters but envelope mode is off.
	ErrWriteBackUnsupported = errors.New("remoting: write-back parameters require envelope mode")
	ErrWriteBackTarget      = errors.New("remoting: write-back target cannot be updated in place")

	ErrNoTransport = errors.New("remoting: no transport for scheme")
)

// StatusError is a non-success response. Body holds whatever the server put
// on its error channel; the engine tries to decode it into an application
// error before giving up and returning the StatusError itself.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("received status code: %d (%s)", e.Code, e.Status)
	}
	return fmt.Sprintf("received status code: %d", e.Code)
}

// RemoteError is the failure payload produced by the bundled codecs.
type RemoteError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// PayloadError carries a decoded failure payload that does not implement
// error itself. Codecs also return it from a typed DecodeResult when a bare
// response holds a failure in-band; the engine then fails the call with the
// payload.
type PayloadError struct {
	Payload any
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("remote failure: %v", e.Payload)
}
