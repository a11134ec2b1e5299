package bluez

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"bluetalk/dbus"
)

type fakeCall struct {
	path   dbus.ObjectPath
	method string
	args   []any
}

type fakeSub struct {
	match dbus.Match
	ch    chan *dbus.Signal
	ctx   context.Context
}

// fakeBus is an in-memory BlueZ: a property store, a managed object tree,
// per-method reply hooks and a signal fan-out honouring match rules.
type fakeBus struct {
	mu       sync.Mutex
	calls    []fakeCall
	props    map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	objects  dbus.ManagedObjects
	handlers map[string]func(path dbus.ObjectPath, args []any) ([]any, error)
	subs     []*fakeSub
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:    make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant),
		objects:  make(dbus.ManagedObjects),
		handlers: make(map[string]func(dbus.ObjectPath, []any) ([]any, error)),
	}
}

func newTestSession(bus Bus) *Session {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewSession(bus, WithLogger(l))
}

func (b *fakeBus) setProp(path dbus.ObjectPath, iface, name string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.props[path] == nil {
		b.props[path] = make(map[string]map[string]dbus.Variant)
	}
	if b.props[path][iface] == nil {
		b.props[path][iface] = make(map[string]dbus.Variant)
	}
	b.props[path][iface][name] = dbus.MakeVariant(v)
}

func (b *fakeBus) handle(method string, h func(path dbus.ObjectPath, args []any) ([]any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = h
}

func (b *fakeBus) addObject(path dbus.ObjectPath, ifaces ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := make(map[string]map[string]dbus.Variant)
	for _, iface := range ifaces {
		m[iface] = map[string]dbus.Variant{}
	}
	b.objects[path] = m
}

func (b *fakeBus) callsTo(method string) []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []fakeCall
	for _, c := range b.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBus) Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...any) ([]any, error) {
	b.mu.Lock()
	b.calls = append(b.calls, fakeCall{path: path, method: method, args: args})
	h := b.handlers[method]
	b.mu.Unlock()
	if h != nil {
		return h(path, args)
	}

	switch method {
	case dbus.MethodPropertiesGet:
		iface, _ := args[0].(string)
		name, _ := args[1].(string)
		b.mu.Lock()
		v, ok := b.props[path][iface][name]
		b.mu.Unlock()
		if !ok {
			return nil, dbus.Error{Name: dbus.ErrorInvalidArgs, Body: []any{"No such property '" + name + "'"}}
		}
		return []any{v}, nil
	case dbus.MethodPropertiesSet:
		iface, _ := args[0].(string)
		name, _ := args[1].(string)
		v, _ := args[2].(dbus.Variant)
		b.setProp(path, iface, name, v.Value())
		return nil, nil
	}
	return nil, nil
}

func (b *fakeBus) Subscribe(ctx context.Context, m dbus.Match) (<-chan *dbus.Signal, error) {
	sub := &fakeSub{match: m, ch: make(chan *dbus.Signal, 64), ctx: ctx}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch, nil
}

func (b *fakeBus) ManagedObjects(ctx context.Context, dest string, root dbus.ObjectPath) (dbus.ManagedObjects, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(dbus.ManagedObjects, len(b.objects))
	for k, v := range b.objects {
		out[k] = v
	}
	return out, nil
}

// emit delivers sig to every live subscription whose rule matches.
func (b *fakeBus) emit(sig *dbus.Signal) {
	b.mu.Lock()
	subs := append([]*fakeSub(nil), b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		if s.ctx.Err() != nil || !s.match.Matches(sig) {
			continue
		}
		select {
		case s.ch <- sig:
		case <-s.ctx.Done():
		}
	}
}

func (b *fakeBus) interfacesAdded(path dbus.ObjectPath, ifaces map[string]map[string]dbus.Variant) {
	b.emit(&dbus.Signal{
		Sender:    ":1.7",
		Path:      "/",
		Interface: dbus.ObjectManagerInterface,
		Member:    dbus.MemberInterfacesAdded,
		Body:      []any{path, ifaces},
	})
}

func (b *fakeBus) interfacesRemoved(path dbus.ObjectPath, ifaces ...string) {
	b.emit(&dbus.Signal{
		Sender:    ":1.7",
		Path:      "/",
		Interface: dbus.ObjectManagerInterface,
		Member:    dbus.MemberInterfacesRemoved,
		Body:      []any{path, ifaces},
	})
}

func (b *fakeBus) propertiesChanged(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant, invalidated ...string) {
	if invalidated == nil {
		invalidated = []string{}
	}
	b.emit(&dbus.Signal{
		Sender:    ":1.7",
		Path:      path,
		Interface: dbus.PropertiesInterface,
		Member:    dbus.MemberPropertiesChanged,
		Body:      []any{iface, changed, invalidated},
	})
}

func mustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}
