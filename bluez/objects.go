package bluez

import (
	"context"
	"slices"

	"bluetalk/dbus"
)

// Interfaces are the interfaces one remote object implements, with their
// properties at snapshot time.
type Interfaces map[string]map[string]dbus.Variant

// Has reports whether the object implements iface.
func (i Interfaces) Has(iface string) bool {
	_, ok := i[iface]
	return ok
}

// Names returns the interface names in sorted order.
func (i Interfaces) Names() []string {
	names := make([]string, 0, len(i))
	for name := range i {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Objects is a snapshot of the daemon's object tree.
type Objects map[dbus.ObjectPath]Interfaces

// ListObjects snapshots every object BlueZ exports.
func ListObjects(ctx context.Context, bus Bus) (Objects, error) {
	tree, err := bus.ManagedObjects(ctx, bluezDest, bluezRoot)
	if err != nil {
		return nil, transportError("GetManagedObjects", err)
	}
	out := make(Objects, len(tree))
	for path, ifaces := range tree {
		out[path] = Interfaces(ifaces)
	}
	return out, nil
}

// Implementing returns the paths of objects that implement iface, sorted.
func (o Objects) Implementing(iface string) []dbus.ObjectPath {
	var paths []dbus.ObjectPath
	for path, ifaces := range o {
		if ifaces.Has(iface) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}
