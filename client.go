// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wsrpc provides transport-agnostic object-bus RPC client/server
// abstractions. Applications use these interfaces without caring about the
// underlying transport (websocket, gRPC, etc.).
//
// Websocket is the default transport. Use build tags to enable alternatives:
//
//	go build -tags grpc  # Enable gRPC transport
package wsrpc

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// Client is the transport-agnostic RPC client interface.
// All application code should use this interface.
type Client interface {
	// Call makes a synchronous RPC call
	Call(ctx context.Context, method string, args, reply interface{}) error

	// CallRaw makes a call with pre-encoded params and returns the raw result
	CallRaw(ctx context.Context, method string, params []byte) ([]byte, error)

	// Notify sends a one-way message (no response expected)
	Notify(ctx context.Context, method string, args interface{}) error

	// Close closes the connection
	Close() error
}

// Server is the transport-agnostic object-bus server interface.
type Server interface {
	// RegisterInterface registers an interface's methods, signals and
	// properties with the server's registry
	RegisterInterface(iface *Interface) error

	// Registry returns the server's aggregator, for firing signals and
	// direct registry access
	Registry() *Registry

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// NotifyHandler receives signal notifications pushed by the server. The
// method is the qualified signal name ("Interface.signal"); params is the
// raw JSON params array.
type NotifyHandler func(method string, params json.RawMessage)

// Transport represents the underlying message channel: one complete message
// per Send/Recv.
type Transport interface {
	io.Closer
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec     Codec
	transport string // "ws", "grpc"
	onNotify  NotifyHandler
	log       *zap.Logger
}

// WithCodec sets a custom codec for encoding call args and decoding replies
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithNotifyHandler sets the handler invoked for incoming signal
// notifications
func WithNotifyHandler(h NotifyHandler) DialOption {
	return func(o *dialOptions) { o.onNotify = h }
}

// WithDialLogger sets the client's structured logger
func WithDialLogger(log *zap.Logger) DialOption {
	return func(o *dialOptions) { o.log = log }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport  string
	staticRoot string
	log        *zap.Logger
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithStaticRoot serves plain (non-upgrade) HTTP requests from the given
// directory
func WithStaticRoot(root string) ServerOption {
	return func(o *serverOptions) { o.staticRoot = root }
}

// WithServerLogger sets the server's structured logger
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(o *serverOptions) { o.log = log }
}
