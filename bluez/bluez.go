// Package bluez exposes the BlueZ daemon's adapters and devices as typed
// handles over a shared D-Bus connection: property access, object and
// property change streams, and exclusive discovery sessions.
package bluez

import (
	"context"
	"strings"

	"bluetalk/dbus"
)

const (
	bluezDest     = "org.bluez"
	bluezRoot     = "/"
	adapterPrefix = "/org/bluez/"
	devicePrefix  = "dev_"

	adapterInterface            = "org.bluez.Adapter1"
	deviceInterface             = "org.bluez.Device1"
	advertisingManagerInterface = "org.bluez.LEAdvertisingManager1"
)

// Bus is the part of a bus connection this package relies on. *dbus.Conn
// implements it.
type Bus interface {
	Call(ctx context.Context, dest string, path dbus.ObjectPath, method string, args ...any) ([]any, error)
	Subscribe(ctx context.Context, m dbus.Match) (<-chan *dbus.Signal, error)
	ManagedObjects(ctx context.Context, dest string, root dbus.ObjectPath) (dbus.ManagedObjects, error)
}

// ParsePathPrefix returns the first path segment following prefix and
// whatever follows that segment (empty, or starting with '/').
func ParsePathPrefix(path dbus.ObjectPath, prefix string) (segment, rest string, ok bool) {
	p, found := strings.CutPrefix(string(path), prefix)
	if !found {
		return "", "", false
	}
	sep := strings.IndexByte(p, '/')
	if sep < 0 {
		sep = len(p)
	}
	return p[:sep], p[sep:], true
}

// ParsePathExact is ParsePathPrefix for paths with nothing after the segment.
func ParsePathExact(path dbus.ObjectPath, prefix string) (string, bool) {
	segment, rest, ok := ParsePathPrefix(path, prefix)
	if !ok || rest != "" {
		return "", false
	}
	return segment, true
}

// AdapterPath returns the object path of the named adapter, e.g.
// /org/bluez/hci0.
func AdapterPath(name string) (dbus.ObjectPath, error) {
	if !validElement(name) {
		return "", &InvalidNameError{Name: name}
	}
	return dbus.ObjectPath(adapterPrefix + name), nil
}

// ParseAdapterPath recognizes adapter-level paths and returns the adapter name.
func ParseAdapterPath(path dbus.ObjectPath) (string, bool) {
	name, ok := ParsePathExact(path, adapterPrefix)
	if !ok || !validElement(name) {
		return "", false
	}
	return name, true
}

// DevicePath converts an address to its device object path under the named
// adapter (e.g. AA:BB:CC:DD:EE:FF -> /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF).
func DevicePath(adapter string, addr Address) (dbus.ObjectPath, error) {
	ap, err := AdapterPath(adapter)
	if err != nil {
		return "", err
	}
	return ap + "/" + devicePrefix + dbus.ObjectPath(strings.ReplaceAll(addr.String(), ":", "_")), nil
}

// ParseDevicePath splits /org/bluez/<adapter>/dev_AA_BB_CC_DD_EE_FF into the
// adapter name and device address. Paths of any other shape, including
// objects nested below a device, are rejected.
func ParseDevicePath(path dbus.ObjectPath) (adapter string, addr Address, ok bool) {
	adapter, rest, ok := ParsePathPrefix(path, adapterPrefix)
	if !ok || !validElement(adapter) {
		return "", Address{}, false
	}
	dev, found := strings.CutPrefix(rest, "/"+devicePrefix)
	if !found || strings.ContainsAny(dev, "/:") {
		return "", Address{}, false
	}
	addr, err := ParseAddress(strings.ReplaceAll(dev, "_", ":"))
	if err != nil {
		return "", Address{}, false
	}
	return adapter, addr, true
}

// validElement reports whether s can be used as a single object path element.
func validElement(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
