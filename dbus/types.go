// Package dbus is the thin bus layer used by the bluez package: method
// calls, object snapshots and filtered signal subscriptions over a shared
// github.com/godbus/dbus/v5 connection.
package dbus

import (
	"strings"

	godbus "github.com/godbus/dbus/v5"
)

// ObjectPath is a D-Bus object path.
type ObjectPath = godbus.ObjectPath

// Variant holds a single D-Bus variant (type + value).
type Variant = godbus.Variant

// Error is an error reply returned by a remote method.
type Error = godbus.Error

const (
	PropertiesInterface    = "org.freedesktop.DBus.Properties"
	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"

	MemberPropertiesChanged = "PropertiesChanged"
	MemberInterfacesAdded   = "InterfacesAdded"
	MemberInterfacesRemoved = "InterfacesRemoved"
	MethodGetManagedObjects = ObjectManagerInterface + ".GetManagedObjects"
	MethodPropertiesGet     = PropertiesInterface + ".Get"
	MethodPropertiesSet     = PropertiesInterface + ".Set"
	ErrorInvalidArgs        = "org.freedesktop.DBus.Error.InvalidArgs"
	ErrorUnknownProperty    = "org.freedesktop.DBus.Error.UnknownProperty"
	ErrorUnknownObject      = "org.freedesktop.DBus.Error.UnknownObject"
	ErrorServiceUnknown     = "org.freedesktop.DBus.Error.ServiceUnknown"
)

// ManagedObjects is the reply of GetManagedObjects: path -> interface -> property -> value.
type ManagedObjects = map[ObjectPath]map[string]map[string]Variant

// Signal is a received D-Bus signal.
type Signal struct {
	Sender    string
	Path      ObjectPath
	Interface string
	Member    string
	Body      []any
}

func fromGodbus(s *godbus.Signal) *Signal {
	iface, member := splitMember(s.Name)
	return &Signal{
		Sender:    s.Sender,
		Path:      s.Path,
		Interface: iface,
		Member:    member,
		Body:      s.Body,
	}
}

// splitMember splits "org.example.Iface.Member" at the last dot.
func splitMember(name string) (iface, member string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// MakeVariant wraps v in a variant with its inferred signature.
func MakeVariant(v any) Variant {
	return godbus.MakeVariant(v)
}

// Store copies a reply or signal body into the given pointers.
func Store(body []any, dst ...any) error {
	return godbus.Store(body, dst...)
}
