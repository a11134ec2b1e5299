package bluez

import (
	"context"

	"bluetalk/dbus"
)

type ObjectEventKind int

const (
	ObjectAdded ObjectEventKind = iota
	ObjectRemoved
)

func (k ObjectEventKind) String() string {
	if k == ObjectAdded {
		return "added"
	}
	return "removed"
}

// ObjectEvent is an InterfacesAdded or InterfacesRemoved notification.
type ObjectEvent struct {
	Kind   ObjectEventKind
	Object dbus.ObjectPath
	// Interfaces holds the added interfaces with their initial properties,
	// or the removed interfaces with nil property maps.
	Interfaces Interfaces
}

// PropertyEvent is a PropertiesChanged notification: only the attributes
// that changed are present in Changed.
type PropertyEvent struct {
	Object      dbus.ObjectPath
	Interface   string
	Changed     map[string]dbus.Variant
	Invalidated []string
}

// ObjectEvents streams objects appearing and disappearing beneath scope (all
// objects when scope is empty or "/"). Each call is an independent
// subscription ending when ctx is done.
//
// No events are synthesized for objects that already exist; callers that
// need a baseline take a ListObjects snapshot after subscribing and must
// tolerate an object showing up in both.
func ObjectEvents(ctx context.Context, bus Bus, scope dbus.ObjectPath) (<-chan ObjectEvent, error) {
	m := dbus.Match{
		Sender:    bluezDest,
		Interface: dbus.ObjectManagerInterface,
	}
	if scope != "" && scope != "/" {
		m.Arg0Path = scope
	}
	signals, err := bus.Subscribe(ctx, m)
	if err != nil {
		return nil, transportError("subscribe object events", err)
	}
	return forward(ctx, signals, func(sig *dbus.Signal) (ObjectEvent, bool) {
		switch sig.Member {
		case dbus.MemberInterfacesAdded:
			path, ifaces, err := dbus.DecodeInterfacesAdded(sig)
			if err != nil {
				return ObjectEvent{}, false
			}
			return ObjectEvent{Kind: ObjectAdded, Object: path, Interfaces: Interfaces(ifaces)}, true
		case dbus.MemberInterfacesRemoved:
			path, names, err := dbus.DecodeInterfacesRemoved(sig)
			if err != nil {
				return ObjectEvent{}, false
			}
			ifaces := make(Interfaces, len(names))
			for _, name := range names {
				ifaces[name] = nil
			}
			return ObjectEvent{Kind: ObjectRemoved, Object: path, Interfaces: ifaces}, true
		}
		return ObjectEvent{}, false
	}), nil
}

// PropertyEvents streams property changes of the object at path. Each call
// is an independent subscription ending when ctx is done. Only changes sent
// by the daemon instance running at subscribe time are delivered.
func PropertyEvents(ctx context.Context, bus Bus, path dbus.ObjectPath) (<-chan PropertyEvent, error) {
	return propertyEvents(ctx, bus, dbus.Match{Path: path})
}

// PropertyEventsUnder is PropertyEvents for every object at or beneath ns.
func PropertyEventsUnder(ctx context.Context, bus Bus, ns dbus.ObjectPath) (<-chan PropertyEvent, error) {
	return propertyEvents(ctx, bus, dbus.Match{PathNamespace: ns})
}

func propertyEvents(ctx context.Context, bus Bus, m dbus.Match) (<-chan PropertyEvent, error) {
	m.Sender = bluezDest
	m.Interface = dbus.PropertiesInterface
	m.Member = dbus.MemberPropertiesChanged
	signals, err := bus.Subscribe(ctx, m)
	if err != nil {
		return nil, transportError("subscribe property events", err)
	}
	return forward(ctx, signals, func(sig *dbus.Signal) (PropertyEvent, bool) {
		iface, changed, invalidated, err := dbus.DecodePropertiesChanged(sig)
		if err != nil {
			return PropertyEvent{}, false
		}
		return PropertyEvent{Object: sig.Path, Interface: iface, Changed: changed, Invalidated: invalidated}, true
	}), nil
}

// forward converts signals until ctx is done or in is closed, then closes
// the returned channel. Signals convert rejects are dropped. Events leave
// in the order signals arrive; a slow reader only grows the connection's
// per-subscription queue.
func forward[T any](ctx context.Context, in <-chan *dbus.Signal, convert func(*dbus.Signal) (T, bool)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-in:
				if !ok {
					return
				}
				ev, ok := convert(sig)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
