// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/rpc/v2/json2"
)

func echoInterface() *Interface {
	return NewInterface("ee.test.Echo", Definition{
		Methods: []Method{
			{Name: "echo", Fn: func(args []any) (any, error) {
				if len(args) != 1 {
					return nil, ErrInvalidParams
				}
				return args[0], nil
			}},
		},
		Signals: []Signal{
			{Name: "tick", Fn: func(args []any) any { return "tock" }},
		},
	})
}

func startServer(t testing.TB) (Server, *Interface) {
	t.Helper()

	server, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	iface := echoInterface()
	if err := server.RegisterInterface(iface); err != nil {
		t.Fatalf("RegisterInterface: %v", err)
	}

	go server.Serve(context.Background())

	// Give server time to start
	time.Sleep(10 * time.Millisecond)
	return server, iface
}

func TestServerCloseReleasesContextWatcher(t *testing.T) {
	server, _ := startServer(t) // Serve runs under a never-cancelled context

	if err := server.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Close must unblock the goroutine watching the Serve context, not
	// leave it parked until the context ends.
	select {
	case <-server.(*wsServer).done:
	case <-time.After(time.Second):
		t.Fatal("context watcher still parked after Close")
	}
}

func TestWSRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, _ := startServer(t)

	client, err := Dial(ctx, server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply string
	if err := client.Call(ctx, "ee.test.Echo.echo", []any{"hello world"}, &reply); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply != "hello world" {
		t.Errorf("got %q, want %q", reply, "hello world")
	}
}

func TestWSCallRaw(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, _ := startServer(t)

	client, err := Dial(ctx, server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	resp, err := client.CallRaw(ctx, "ee.test.Echo.echo", []byte(`["raw"]`))
	if err != nil {
		t.Fatalf("CallRaw: %v", err)
	}
	if string(resp) != `"raw"` {
		t.Errorf("got %s, want %q", resp, `"raw"`)
	}
}

func TestWSProtocolError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, _ := startServer(t)

	client, err := Dial(ctx, server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	err = client.Call(ctx, "ee.test.Missing.method", nil, nil)
	rpcErr, ok := err.(*json2.Error)
	if !ok {
		t.Fatalf("expected *json2.Error, got %v", err)
	}
	if rpcErr.Code != json2.E_NO_METHOD {
		t.Errorf("got code %d, want %d", rpcErr.Code, json2.E_NO_METHOD)
	}
}

func TestWSNotifyKeepsConnectionUsable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, _ := startServer(t)

	client, err := Dial(ctx, server.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Notify(ctx, "ee.test.Echo.echo", []any{"fire and forget"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	var reply string
	if err := client.Call(ctx, "ee.test.Echo.echo", []any{"still here"}, &reply); err != nil {
		t.Fatalf("Call after Notify: %v", err)
	}
	if reply != "still here" {
		t.Errorf("got %q, want %q", reply, "still here")
	}
}

func TestWSSignalSurvivesPeerDisconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server, iface := startServer(t)

	notes := make(chan string, 8)
	clientB, err := Dial(ctx, server.Addr(), WithNotifyHandler(func(method string, params json.RawMessage) {
		notes <- method + string(params)
	}))
	if err != nil {
		t.Fatalf("Dial B: %v", err)
	}
	defer clientB.Close()

	clientA, err := Dial(ctx, server.Addr())
	if err != nil {
		t.Fatalf("Dial A: %v", err)
	}

	// Both peers are on the bus; A drops without a close handshake.
	clientA.Close()

	if _, err := iface.Fire("tick"); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	select {
	case got := <-notes:
		want := `ee.test.Echo.tick["tock"]`
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-ctx.Done():
		t.Fatal("surviving peer did not receive the signal")
	}

	// The registry is unaffected by A's departure.
	var data IntrospectData
	if err := clientB.Call(ctx, AggregatorName+".Introspectable.Introspect", nil, &data); err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	if _, ok := data.Interfaces["ee.test.Echo"]; !ok {
		t.Error("interface missing from introspection after peer disconnect")
	}
}
