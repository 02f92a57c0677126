// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopMethod(args []any) (any, error) { return nil, nil }
func noopSignal(args []any) any          { return nil }

func TestNewInterfaceOrdersMembersByName(t *testing.T) {
	iface := NewInterface("ee.test.Ordering", Definition{
		Methods: []Method{
			{Name: "zeta", Fn: noopMethod},
			{Name: "alpha", Fn: noopMethod},
			{Name: "mid", Fn: noopMethod},
		},
		Signals: []Signal{
			{Name: "second", Fn: noopSignal},
			{Name: "first", Fn: noopSignal},
		},
		Properties: []Property{
			{Name: "b", Get: func() any { return 2 }},
			{Name: "a", Get: func() any { return 1 }},
		},
	})

	var methods []string
	for _, m := range iface.Methods() {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, methods)

	var signals []string
	for _, s := range iface.Signals() {
		signals = append(signals, s.Name)
	}
	assert.Equal(t, []string{"first", "second"}, signals)

	var props []string
	for _, p := range iface.Properties() {
		props = append(props, p.Name)
	}
	assert.Equal(t, []string{"a", "b"}, props)
}

func TestNewInterfaceDedupesPropertiesByGetter(t *testing.T) {
	getter := func() any { return 42 }
	iface := NewInterface("ee.test.Dedup", Definition{
		Properties: []Property{
			{Name: "answer", Get: getter},
			{Name: "answer", Get: getter}, // same property discovered twice
			{Name: "other", Get: func() any { return 1 }},
		},
	})

	props := iface.Properties()
	require.Len(t, props, 2)
	assert.Equal(t, "answer", props[0].Name)
	assert.Equal(t, "other", props[1].Name)
}

func TestNewInterfaceKeepsLoopBuiltProperties(t *testing.T) {
	// Closures built from one literal share a code pointer; distinct
	// properties must survive anyway.
	values := map[string]int{"first": 1, "second": 2, "third": 3}
	var declared []Property
	for name, v := range values {
		declared = append(declared, Property{Name: name, Get: func() any { return v }})
	}

	iface := NewInterface("ee.test.Loop", Definition{Properties: declared})

	props := iface.Properties()
	require.Len(t, props, len(values))
	for _, p := range props {
		assert.Equal(t, values[p.Name], p.Get())
	}
}

func TestFireBroadcastsResultToAllSubscribers(t *testing.T) {
	iface := NewInterface("ee.test.Sig", Definition{
		Signals: []Signal{{Name: "ping", Fn: func(args []any) any { return "pong" }}},
	})

	a, b := newFakePeer("a"), newFakePeer("b")
	outsider := newFakePeer("outsider")
	iface.AddBus(a)
	iface.AddBus(b)

	result, err := iface.Fire("ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	for _, p := range []*fakePeer{a, b} {
		select {
		case frame := <-p.frames:
			var msg struct {
				Version string `json:"jsonrpc"`
				Method  string `json:"method"`
				Params  []any  `json:"params"`
				ID      any    `json:"id"`
			}
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.Equal(t, Version, msg.Version)
			assert.Equal(t, "ee.test.Sig.ping", msg.Method)
			assert.Equal(t, []any{"pong"}, msg.Params)
			assert.Nil(t, msg.ID, "notifications carry no id")
		case <-time.After(time.Second):
			t.Fatalf("peer %s did not receive the notification", p.ID())
		}
	}

	select {
	case <-outsider.frames:
		t.Fatal("unsubscribed peer received a notification")
	default:
	}
}

func TestFireNilResultBroadcastsEmptyParams(t *testing.T) {
	iface := NewInterface("ee.test.Nil", Definition{
		Signals: []Signal{{Name: "quiet", Fn: noopSignal}},
	})
	p := newFakePeer("a")
	iface.AddBus(p)

	_, err := iface.Fire("quiet")
	require.NoError(t, err)

	select {
	case frame := <-p.frames:
		assert.JSONEq(t, `{"jsonrpc":"2.0","method":"ee.test.Nil.quiet","params":[]}`, string(frame))
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
}

func TestFireEvictsFailingPeerAndDeliversToRest(t *testing.T) {
	iface := NewInterface("ee.test.Evict", Definition{
		Signals: []Signal{{Name: "tick", Fn: func(args []any) any { return "tock" }}},
	})

	good1, bad, good2 := newFakePeer("g1"), newFakePeer("bad"), newFakePeer("g2")
	bad.fail.Store(true)
	for _, p := range []*fakePeer{good1, bad, good2} {
		iface.AddBus(p)
	}

	_, err := iface.Fire("tick")
	require.NoError(t, err)

	for _, p := range []*fakePeer{good1, good2} {
		select {
		case <-p.frames:
		case <-time.After(time.Second):
			t.Fatalf("peer %s missed the notification", p.ID())
		}
	}

	require.Eventually(t, func() bool {
		return !iface.bus.contains(bad)
	}, time.Second, 5*time.Millisecond, "failing peer not evicted")
	assert.True(t, iface.bus.contains(good1))
	assert.True(t, iface.bus.contains(good2))
}

func TestFireUnknownSignal(t *testing.T) {
	iface := NewInterface("ee.test.None", Definition{})
	_, err := iface.Fire("missing")
	var unknown *UnknownSignalError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Signal)
}
