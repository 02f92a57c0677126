// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"reflect"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
)

// HandlerFunc is a remote-callable method body. It receives the decoded
// JSON-RPC params (positional args, or a single map for named params) and
// returns the result value. Return a *json2.Error (e.g. ErrInvalidParams)
// to send a specific protocol error; any other error is reported to the
// peer as an internal error with a generic message.
type HandlerFunc func(args []any) (any, error)

// SignalFunc is a signal body. Its return value becomes the payload of the
// broadcast notification; a nil return broadcasts empty params.
type SignalFunc func(args []any) any

// GetterFunc reads a property value.
type GetterFunc func() any

// SetterFunc writes a property value. The value arrives as decoded JSON
// (float64 for numbers, string, bool, map, slice).
type SetterFunc func(v any) error

// Method declares one remote-callable method of an interface.
type Method struct {
	Name string
	Fn   HandlerFunc
}

// Signal declares one broadcast signal of an interface.
type Signal struct {
	Name string
	Fn   SignalFunc
}

// Property declares one readable (and optionally writable) property.
// Set may be nil for read-only properties.
type Property struct {
	Name string
	Get  GetterFunc
	Set  SetterFunc
}

// Definition is the declarative capability list an interface implementation
// supplies to NewInterface. Member order in the definition does not matter;
// descriptors are built in name order so introspection output is stable.
type Definition struct {
	Methods    []Method
	Signals    []Signal
	Properties []Property
}

// Interface is an immutable descriptor bundle for one named interface:
// its ordered methods, signals and properties, plus the subscriber set
// (bus) of peers receiving its signal broadcasts. Only the bus and the
// logger wired in at registration mutate after construction, and both
// are safe against concurrent signal firing.
type Interface struct {
	name    string
	methods []Method
	signals []Signal
	props   []Property

	bus *busSet
	log atomic.Pointer[zap.Logger]
}

// propIdentity keys property dedup during construction.
type propIdentity struct {
	name   string
	getter uintptr
}

// NewInterface builds the descriptor bundle for a named interface from its
// declarative definition. Members are ordered by name; properties that share
// a getter are collapsed into one descriptor (first declaration wins).
func NewInterface(name string, def Definition) *Interface {
	methods := append([]Method(nil), def.Methods...)
	sort.Slice(methods, func(a, b int) bool { return methods[a].Name < methods[b].Name })

	signals := append([]Signal(nil), def.Signals...)
	sort.Slice(signals, func(a, b int) bool { return signals[a].Name < signals[b].Name })

	// Getter identity is the dedup key: the same property discovered twice
	// must yield exactly one descriptor. Distinct closures created from one
	// source literal share a code pointer, so the name disambiguates them.
	seen := make(map[propIdentity]struct{}, len(def.Properties))
	props := make([]Property, 0, len(def.Properties))
	for _, p := range def.Properties {
		key := propIdentity{name: p.Name, getter: reflect.ValueOf(p.Get).Pointer()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		props = append(props, p)
	}
	sort.Slice(props, func(a, b int) bool { return props[a].Name < props[b].Name })

	i := &Interface{
		name:    name,
		methods: methods,
		signals: signals,
		props:   props,
		bus:     newBusSet(),
	}
	i.log.Store(zap.NewNop())
	return i
}

// Name returns the interface's globally-unique name.
func (i *Interface) Name() string { return i.name }

// Methods returns the interface's method descriptors in declaration order.
func (i *Interface) Methods() []Method { return append([]Method(nil), i.methods...) }

// Signals returns the interface's signal descriptors in declaration order.
func (i *Interface) Signals() []Signal { return append([]Signal(nil), i.signals...) }

// Properties returns the interface's property descriptors in declaration order.
func (i *Interface) Properties() []Property { return append([]Property(nil), i.props...) }

func (i *Interface) property(name string) (Property, bool) {
	for _, p := range i.props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// AddBus subscribes a peer to this interface's signal broadcasts.
// Adding a peer that is already subscribed is a no-op.
func (i *Interface) AddBus(p Peer) { i.bus.add(p) }

// RemoveBus unsubscribes a peer. Removing an absent peer is a no-op.
func (i *Interface) RemoveBus(p Peer) { i.bus.remove(p) }

// Fire runs the named signal's body and broadcasts its result to every peer
// currently subscribed to this interface. Deliveries run concurrently and
// independently: a peer whose send fails is dropped from the bus, without
// delaying or failing delivery to the rest, and without surfacing the
// failure to the caller. Fire returns the signal body's result.
func (i *Interface) Fire(name string, args ...any) (any, error) {
	var sig *Signal
	for idx := range i.signals {
		if i.signals[idx].Name == name {
			sig = &i.signals[idx]
			break
		}
	}
	if sig == nil {
		return nil, &UnknownSignalError{Interface: i.name, Signal: name}
	}

	result := sig.Fn(args)

	var params []any
	if result != nil {
		params = []any{result}
	}
	data, err := marshalNotification(i.name+"."+name, params)
	if err != nil {
		return result, err
	}

	log := i.log.Load()
	for _, p := range i.bus.snapshot() {
		go func(p Peer) {
			if err := p.Send(data); err != nil {
				i.bus.remove(p)
				log.Warn("dropping peer after failed signal delivery",
					zap.String("interface", i.name),
					zap.String("signal", name),
					zap.String("peer", p.ID()),
					zap.Error(err))
			}
		}(p)
	}
	return result, nil
}

// UnknownSignalError reports a Fire call naming a signal the interface
// does not declare.
type UnknownSignalError struct {
	Interface string
	Signal    string
}

func (e *UnknownSignalError) Error() string {
	return "wsrpc: interface " + e.Interface + " has no signal " + e.Signal
}
