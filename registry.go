// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AggregatorName is the interface name under which the registry exposes its
// own meta-methods (property access, introspection).
const AggregatorName = "jrpc"

// Registry is the aggregator: the root interface owning the name→interface
// map and the flat dispatch table, and cascading bus membership to every
// registered interface. It is itself a registered interface, exposing
// Property.Get/Set/GetAll, Introspectable.Introspect and the
// Properties.PropertiesChanged signal under AggregatorName.
//
// Interfaces register at startup; after that the registry and its dispatch
// table are immutable, and only bus membership changes.
type Registry struct {
	*Interface

	mu         sync.Mutex
	interfaces map[string]*Interface
	dispatch   map[string]HandlerFunc
	log        *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the structured logger used by the registry and
// propagated to every interface it registers.
func WithRegistryLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry builds an aggregator with its meta-methods already registered
// under AggregatorName.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		interfaces: make(map[string]*Interface),
		dispatch:   make(map[string]HandlerFunc),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Interface = NewInterface(AggregatorName, Definition{
		Methods: []Method{
			{Name: "Property.Get", Fn: r.getProperty},
			{Name: "Property.Set", Fn: r.setProperty},
			{Name: "Property.GetAll", Fn: r.getAllProperties},
			{Name: "Introspectable.Introspect", Fn: r.introspect},
		},
		Signals: []Signal{
			{Name: "Properties.PropertiesChanged", Fn: propertiesChanged},
		},
	})

	if err := r.RegisterInterface(r.Interface); err != nil {
		panic(fmt.Sprintf("wsrpc: register aggregator: %v", err))
	}
	return r
}

// RegisterInterface adds an interface to the registry and binds every one of
// its methods into the dispatch table under "<Interface>.<Method>". A
// duplicate interface name or dispatch key is a hard error, not a silent
// overwrite. Peers already connected are cascaded into the new interface's
// bus so membership does not depend on registration order.
func (r *Registry) RegisterInterface(iface *Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.interfaces[iface.name]; dup {
		return fmt.Errorf("wsrpc: interface %q already registered", iface.name)
	}
	for _, m := range iface.methods {
		key := iface.name + "." + m.Name
		if _, dup := r.dispatch[key]; dup {
			return fmt.Errorf("wsrpc: dispatch key %q already bound", key)
		}
	}

	r.interfaces[iface.name] = iface
	for _, m := range iface.methods {
		r.dispatch[iface.name+"."+m.Name] = m.Fn
	}
	iface.log.Store(r.log)

	if r.Interface != nil && iface != r.Interface {
		for _, p := range r.Interface.bus.snapshot() {
			iface.AddBus(p)
		}
	}
	return nil
}

// Interfaces returns the registered interface names.
func (r *Registry) Interfaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.interfaces))
	for name := range r.interfaces {
		names = append(names, name)
	}
	return names
}

// Lookup returns the registered interface with the given name.
func (r *Registry) Lookup(name string) (*Interface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iface, ok := r.interfaces[name]
	return iface, ok
}

// AddBus subscribes a peer to every registered interface's bus, the
// aggregator's included.
func (r *Registry) AddBus(p Peer) {
	for _, iface := range r.allInterfaces() {
		iface.AddBus(p)
	}
}

// RemoveBus unsubscribes a peer from every registered interface's bus, the
// exact mirror of AddBus.
func (r *Registry) RemoveBus(p Peer) {
	for _, iface := range r.allInterfaces() {
		iface.RemoveBus(p)
	}
}

func (r *Registry) allInterfaces() []*Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	ifaces := make([]*Interface, 0, len(r.interfaces))
	for _, iface := range r.interfaces {
		ifaces = append(ifaces, iface)
	}
	return ifaces
}

// Property.Get(interfaceName, propertyName)
func (r *Registry) getProperty(args []any) (any, error) {
	ifaceName, propName, err := twoStringArgs(args)
	if err != nil {
		return nil, err
	}
	iface, ok := r.Lookup(ifaceName)
	if !ok {
		return nil, errInterfaceNotFound(ifaceName)
	}
	prop, ok := iface.property(propName)
	if !ok {
		return nil, errPropertyNotFound(ifaceName, propName)
	}
	return prop.Get(), nil
}

// Property.Set(interfaceName, propertyName, value)
func (r *Registry) setProperty(args []any) (any, error) {
	if len(args) != 3 {
		return nil, ErrInvalidParams
	}
	ifaceName, propName, err := twoStringArgs(args[:2])
	if err != nil {
		return nil, err
	}
	iface, ok := r.Lookup(ifaceName)
	if !ok {
		return nil, errInterfaceNotFound(ifaceName)
	}
	prop, ok := iface.property(propName)
	if !ok || prop.Set == nil {
		// A read-only property is not settable; report it the same way as
		// an unknown one.
		return nil, errPropertyNotFound(ifaceName, propName)
	}
	if err := prop.Set(args[2]); err != nil {
		return nil, err
	}
	if _, err := r.Fire("Properties.PropertiesChanged", ifaceName); err != nil {
		r.log.Warn("emit PropertiesChanged", zap.String("interface", ifaceName), zap.Error(err))
	}
	return nil, nil
}

// Property.GetAll(interfaceName)
func (r *Registry) getAllProperties(args []any) (any, error) {
	if len(args) != 1 {
		return nil, ErrInvalidParams
	}
	ifaceName, ok := args[0].(string)
	if !ok {
		return nil, ErrInvalidParams
	}
	iface, ok := r.Lookup(ifaceName)
	if !ok {
		return nil, errInterfaceNotFound(ifaceName)
	}
	// Descriptor order is name order, which is also the key order JSON
	// object marshaling produces.
	all := make(map[string]any, len(iface.props))
	for _, prop := range iface.props {
		all[prop.Name] = prop.Get()
	}
	return all, nil
}

// IntrospectData is the payload of Introspectable.Introspect: the full live
// registry, one entry per interface with its members in declaration order.
type IntrospectData struct {
	Interfaces map[string]InterfaceInfo `json:"interfaces"`
}

// InterfaceInfo describes one interface's members.
type InterfaceInfo struct {
	Methods    []string       `json:"methods"`
	Signals    []string       `json:"signals"`
	Properties []PropertyInfo `json:"properties"`
}

// PropertyInfo describes one property and whether it accepts Property.Set.
type PropertyInfo struct {
	Name     string `json:"name"`
	Writable bool   `json:"writable"`
}

// Introspectable.Introspect()
func (r *Registry) introspect(args []any) (any, error) {
	if len(args) != 0 {
		return nil, ErrInvalidParams
	}
	data := IntrospectData{Interfaces: make(map[string]InterfaceInfo)}
	for _, iface := range r.allInterfaces() {
		info := InterfaceInfo{
			Methods:    make([]string, 0, len(iface.methods)),
			Signals:    make([]string, 0, len(iface.signals)),
			Properties: make([]PropertyInfo, 0, len(iface.props)),
		}
		for _, m := range iface.methods {
			info.Methods = append(info.Methods, m.Name)
		}
		for _, s := range iface.signals {
			info.Signals = append(info.Signals, s.Name)
		}
		for _, p := range iface.props {
			info.Properties = append(info.Properties, PropertyInfo{Name: p.Name, Writable: p.Set != nil})
		}
		data.Interfaces[iface.name] = info
	}
	return data, nil
}

// Properties.PropertiesChanged(interfaceName) broadcasts the name of the
// interface whose property changed.
func propertiesChanged(args []any) any {
	if len(args) > 0 {
		return args[0]
	}
	return nil
}

func twoStringArgs(args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", ErrInvalidParams
	}
	first, ok := args[0].(string)
	if !ok {
		return "", "", ErrInvalidParams
	}
	second, ok := args[1].(string)
	if !ok {
		return "", "", ErrInvalidParams
	}
	return first, second, nil
}
