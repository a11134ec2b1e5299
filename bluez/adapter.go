package bluez

import (
	"context"
	"fmt"

	"bluetalk/dbus"
)

// Adapter wraps a BlueZ adapter (e.g. /org/bluez/hci0). Every property read
// is a fresh round trip; nothing is cached.
type Adapter struct {
	session *Session
	path    dbus.ObjectPath
	name    string
}

// Name returns the adapter name, e.g. hci0.
func (a *Adapter) Name() string {
	return a.name
}

// Path returns the adapter object path.
func (a *Adapter) Path() dbus.ObjectPath {
	return a.path
}

func (a *Adapter) String() string {
	return fmt.Sprintf("Adapter{name: %s}", a.name)
}

// DeviceAddresses returns the addresses of the devices BlueZ currently
// knows under this adapter, discovered or paired.
func (a *Adapter) DeviceAddresses(ctx context.Context) ([]Address, error) {
	objects, err := ListObjects(ctx, a.session.bus)
	if err != nil {
		return nil, err
	}
	var addrs []Address
	for _, path := range objects.Implementing(deviceInterface) {
		adapter, addr, ok := ParseDevicePath(path)
		if ok && adapter == a.name {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}

// Device returns a handle for the device with the given address. It does
// not check that the device exists.
func (a *Adapter) Device(addr Address) (*Device, error) {
	path, err := DevicePath(a.name, addr)
	if err != nil {
		return nil, err
	}
	return &Device{session: a.session, adapter: a.name, address: addr, path: path}, nil
}

type DeviceEventKind int

const (
	DeviceAdded DeviceEventKind = iota
	DeviceRemoved
)

func (k DeviceEventKind) String() string {
	if k == DeviceAdded {
		return "added"
	}
	return "removed"
}

// DeviceEvent reports a device object appearing or disappearing.
type DeviceEvent struct {
	Kind    DeviceEventKind
	Address Address
}

// DeviceChanges streams device added and removed events for this adapter
// until ctx is done. Events of other adapters are dropped.
func (a *Adapter) DeviceChanges(ctx context.Context) (<-chan DeviceEvent, error) {
	objects, err := ObjectEvents(ctx, a.session.bus, a.path)
	if err != nil {
		return nil, err
	}
	out := make(chan DeviceEvent)
	go func() {
		defer close(out)
		for ev := range objects {
			de, ok := a.deviceEvent(ev)
			if !ok {
				continue
			}
			select {
			case out <- de:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (a *Adapter) deviceEvent(ev ObjectEvent) (DeviceEvent, bool) {
	if !ev.Interfaces.Has(deviceInterface) {
		return DeviceEvent{}, false
	}
	adapter, addr, ok := ParseDevicePath(ev.Object)
	if !ok || adapter != a.name {
		return DeviceEvent{}, false
	}
	kind := DeviceAdded
	if ev.Kind == ObjectRemoved {
		kind = DeviceRemoved
	}
	return DeviceEvent{Kind: kind, Address: addr}, true
}

// DiscoverDevices starts a discovery session with filter. Only one session
// may exist per adapter; a second concurrent call fails with
// ErrDiscoveryInProgress. ctx bounds only the start requests; the scan runs
// until the returned session is closed.
//
// When several clients scan the same adapter the daemon merges their
// filters, so watch DeviceChanges and check each device against the filter.
func (a *Adapter) DiscoverDevices(ctx context.Context, filter DiscoveryFilter) (*DeviceDiscovery, error) {
	done, err := a.session.discovery.acquire(a.name)
	if err != nil {
		return nil, err
	}
	return startDiscovery(ctx, a, filter, done)
}

// AdapterChanged is one property change of an adapter.
type AdapterChanged struct {
	Name     string
	Property AdapterProperty
}

// Changes streams property changes of this adapter until ctx is done.
// Values that fail to decode are logged and skipped.
func (a *Adapter) Changes(ctx context.Context) (<-chan AdapterChanged, error) {
	events, err := PropertyEvents(ctx, a.session.bus, a.path)
	if err != nil {
		return nil, err
	}
	log := a.session.log.WithField("adapter", a.name)
	out := make(chan AdapterChanged)
	go func() {
		defer close(out)
		for ev := range events {
			for change, err := range adapterProperties.decodeChangeSet(ev.Interface, ev.Changed) {
				if err != nil {
					log.WithError(err).Debug("skipping undecodable property change")
					continue
				}
				select {
				case out <- AdapterChanged{Name: a.name, Property: change}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// RemoveDevice removes the remote device object and its pairing
// information.
func (a *Adapter) RemoveDevice(ctx context.Context, addr Address) error {
	path, err := DevicePath(a.name, addr)
	if err != nil {
		return err
	}
	_, err = a.session.bus.Call(ctx, bluezDest, a.path, adapterInterface+".RemoveDevice", path)
	return transportError("RemoveDevice", err)
}

// ConnectDevice connects to a device without general discovery and returns
// its handle. addrType is sent only when non-nil: without it the daemon
// creates a BR/EDR device.
func (a *Adapter) ConnectDevice(ctx context.Context, addr Address, addrType *AddressType) (*Device, error) {
	args := map[string]dbus.Variant{
		"Address": dbus.MakeVariant(addr.String()),
	}
	if addrType != nil {
		args["AddressType"] = dbus.MakeVariant(addrType.String())
	}
	body, err := a.session.bus.Call(ctx, bluezDest, a.path, adapterInterface+".ConnectDevice", args)
	if err != nil {
		return nil, transportError("ConnectDevice", err)
	}
	var path dbus.ObjectPath
	if err := dbus.Store(body, &path); err != nil {
		return nil, &ProtocolError{Path: a.path, Reason: fmt.Sprintf("unexpected ConnectDevice reply: %v", err)}
	}
	adapter, got, ok := ParseDevicePath(path)
	if !ok || adapter != a.name || got != addr {
		return nil, &ProtocolError{Path: path, Reason: fmt.Sprintf("ConnectDevice returned an object that is not device %s of %s", addr, a.name)}
	}
	return a.Device(addr)
}
