// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Dial connects to an object-bus server using the default transport
// (websocket). Use WithTransport for transport selection.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	transportsMu.RLock()
	t, ok := transports[o.transport]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wsrpc: unknown transport: %s", o.transport)
	}
	return t.dial(ctx, addr, o)
}

// Listen creates an object-bus server using the default transport
// (websocket).
func Listen(addr string, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	transportsMu.RLock()
	t, ok := transports[o.transport]
	transportsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("wsrpc: unknown transport: %s", o.transport)
	}
	return t.listen(addr, o)
}
