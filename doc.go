// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package remoting makes calls on remote services look like ordinary method
// calls. A stub implements the service's Go interface and turns every method
// call into one request/response round trip.
//
// # Usage
//
// Declare the service interface, an adapter embedding *Stub and one Method
// per interface method, then register the adapter once:
//
//	type Calculator interface {
//	    Add(ctx context.Context, a, b int) (int, error)
//	}
//
//	var addMethod = remoting.NewMethod("Add", reflect.TypeFor[int](),
//	    reflect.TypeFor[int](), reflect.TypeFor[int]())
//
//	type calculatorStub struct{ *remoting.Stub }
//
//	func (s calculatorStub) Add(ctx context.Context, a, b int) (int, error) {
//	    return remoting.Result[int](s.Invoke(ctx, addMethod, a, b))
//	}
//
//	func init() {
//	    remoting.RegisterAdapter(remoting.DefaultFactory,
//	        func(s *remoting.Stub) Calculator { return calculatorStub{s} })
//	}
//
//	calc, err := remoting.Dial[Calculator]("http://localhost:8080/services/calculator")
//	sum, err := calc.Add(ctx, 2, 3)
//
// # Transfer modes
//
// Method descriptors, looked up by MethodKey, say how each parameter and the
// result travel:
//
//   - value: the value itself (the default)
//   - ref: a stub travels as its Locator; a ref result becomes a new stub
//   - out: the argument is filled from the response, in place
//   - in_out: sent as a value and filled from the response
//
// out and in_out need envelope mode (WithEnvelope), where the response
// carries a success flag, the result and the write-back values. In bare mode
// only the result comes back; WithWriteBackPolicy decides whether such
// methods are rejected (the default) or called without write-back.
//
// # Transport Selection
//
// The transport is picked by the scheme of the locator's base:
//
//	http, https  HTTPTransport (registered by default)
//	zap          ZAPTransport, framed TCP (registered by default)
//	grpc         GRPCTransport, via WithTransport or RegisterTransport
//	nats         NATSTransport, via WithTransport or RegisterTransport
//
// A non-success response is an error channel: the engine decodes its body
// with the call's codec and returns the decoded application error, or the
// transport failure when the body cannot be decoded.
//
// # Architecture
//
//   - locator.go: Locator, absolute and relative service addresses
//   - method.go: Method and MethodKey
//   - descriptor*.go: transfer descriptors, YAML loading, LRU caching
//   - codec.go, json2.go: Codec contract, JSON and JSON-RPC 2.0 codecs
//   - applier.go: in-place write-back
//   - client.go, dial.go: Stub, Unwrap, Factory and adapters
//   - binding.go, config.go: per-stub configuration, environment config
//   - engine.go: the call life cycle
//   - transport.go, http.go, zap.go, grpc.go, nats.go: transports
//   - diagnostics.go: per-call timing via logrus and Prometheus
package remoting
