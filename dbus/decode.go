package dbus

import (
	"fmt"
)

// DecodeInterfacesAdded decodes the (o, a{sa{sv}}) body of InterfacesAdded.
func DecodeInterfacesAdded(sig *Signal) (ObjectPath, map[string]map[string]Variant, error) {
	if err := expect(sig, ObjectManagerInterface, MemberInterfacesAdded, 2); err != nil {
		return "", nil, err
	}
	var (
		path   ObjectPath
		ifaces map[string]map[string]Variant
	)
	if err := Store(sig.Body, &path, &ifaces); err != nil {
		return "", nil, fmt.Errorf("dbus: InterfacesAdded body: %w", err)
	}
	return path, ifaces, nil
}

// DecodeInterfacesRemoved decodes the (o, as) body of InterfacesRemoved.
func DecodeInterfacesRemoved(sig *Signal) (ObjectPath, []string, error) {
	if err := expect(sig, ObjectManagerInterface, MemberInterfacesRemoved, 2); err != nil {
		return "", nil, err
	}
	var (
		path   ObjectPath
		ifaces []string
	)
	if err := Store(sig.Body, &path, &ifaces); err != nil {
		return "", nil, fmt.Errorf("dbus: InterfacesRemoved body: %w", err)
	}
	return path, ifaces, nil
}

// DecodePropertiesChanged decodes the (s, a{sv}, as) body of PropertiesChanged.
func DecodePropertiesChanged(sig *Signal) (iface string, changed map[string]Variant, invalidated []string, err error) {
	if err := expect(sig, PropertiesInterface, MemberPropertiesChanged, 3); err != nil {
		return "", nil, nil, err
	}
	if err := Store(sig.Body, &iface, &changed, &invalidated); err != nil {
		return "", nil, nil, fmt.Errorf("dbus: PropertiesChanged body: %w", err)
	}
	return iface, changed, invalidated, nil
}

func expect(sig *Signal, iface, member string, args int) error {
	if sig == nil {
		return fmt.Errorf("dbus: nil signal")
	}
	if sig.Interface != iface || sig.Member != member {
		return fmt.Errorf("dbus: signal %s.%s is not %s.%s", sig.Interface, sig.Member, iface, member)
	}
	if len(sig.Body) != args {
		return fmt.Errorf("dbus: %s: want %d body arguments, got %d", member, args, len(sig.Body))
	}
	return nil
}
