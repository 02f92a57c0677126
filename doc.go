// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wsrpc is an object-bus RPC framework: named interfaces expose
// methods, readable/writable properties and broadcast signals to peers over
// a persistent bidirectional channel, speaking JSON-RPC 2.0 one message per
// frame. It is modeled after desktop object-bus systems (method calls,
// property get/set/getall, introspection, asynchronous signals) but
// transported over a websocket instead of a kernel bus.
//
// # Interfaces
//
// An interface is declared as static capability lists and built once into an
// immutable descriptor bundle:
//
//	svc := &clock{}
//	iface := wsrpc.NewInterface("ee.arti.TimeService", wsrpc.Definition{
//	    Methods:    []wsrpc.Method{{Name: "time", Fn: svc.now}},
//	    Signals:    []wsrpc.Signal{{Name: "alarm_clock", Fn: svc.alarm}},
//	    Properties: []wsrpc.Property{{Name: "alarm_delay", Get: svc.delay, Set: svc.setDelay}},
//	})
//
// # Server usage
//
//	server, err := wsrpc.Listen(":8765", wsrpc.WithStaticRoot("./htdocs"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := server.RegisterInterface(iface); err != nil {
//	    log.Fatal(err)
//	}
//	server.Serve(ctx)
//
// Every connected peer is subscribed to every interface's signal bus; firing
// a signal broadcasts a notification to the subscribers at that moment, and
// a peer whose delivery fails is dropped without affecting the others.
//
// The aggregator interface "jrpc" is always registered and exposes
// Property.Get, Property.Set, Property.GetAll, Introspectable.Introspect and
// the Properties.PropertiesChanged signal across all interfaces.
//
// # Client usage
//
//	client, err := wsrpc.Dial(ctx, "localhost:8765",
//	    wsrpc.WithNotifyHandler(func(method string, params json.RawMessage) {
//	        log.Printf("signal %s %s", method, params)
//	    }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var now string
//	err = client.Call(ctx, "ee.arti.TimeService.time", nil, &now)
//
// # Architecture
//
// The package separates concerns:
//
//   - client.go: transport-agnostic Client and Server interfaces
//   - interface.go: declarative definitions built into ordered descriptors
//   - registry.go: the aggregator, dispatch table and meta-methods
//   - bus.go: per-interface subscriber sets
//   - dispatch.go: raw frame handling and protocol error mapping
//   - server.go, peer.go, ws.go: websocket transport (default)
//   - static.go: plain-HTTP static file serving beside the bus
//   - dial_grpc.go: gRPC client transport (requires -tags grpc)
//
// Application code should only depend on the Client/Server interfaces,
// making transport selection a deployment decision rather than a code change.
package wsrpc
