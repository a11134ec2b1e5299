package bluez

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"bluetalk/dbus"
)

// Presence says whether the daemon must always expose a property.
type Presence int

const (
	// Mandatory properties are always present; absence is a ProtocolError.
	Mandatory Presence = iota
	// Optional properties may be absent; absence is reported, not an error.
	Optional
)

// Property binds a remote attribute name to its wire signature, a decoder
// into T and, for writable attributes, an encoder back to the wire.
// Descriptors are stateless and shared.
type Property[T any] struct {
	Interface string
	Name      string
	Signature string
	Presence  Presence

	decode func(dbus.Variant) (T, error)
	encode func(T) any
}

func newProperty[T any](iface, name, signature string, presence Presence, decode func(dbus.Variant) (T, error)) *Property[T] {
	return &Property[T]{
		Interface: iface,
		Name:      name,
		Signature: signature,
		Presence:  presence,
		decode:    decode,
	}
}

// writable returns a copy of p that encodes values with encode.
func (p *Property[T]) writable(encode func(T) any) *Property[T] {
	q := *p
	q.encode = encode
	return &q
}

// Writable reports whether the property has an encoder.
func (p *Property[T]) Writable() bool {
	return p.encode != nil
}

// Decode converts a wire value. A value of the wrong signature or one the
// decoder rejects yields a *DecodeError naming the property.
func (p *Property[T]) Decode(v dbus.Variant) (T, error) {
	var zero T
	if sig := v.Signature().String(); sig != p.Signature {
		return zero, &DecodeError{
			Property: p.Name,
			Value:    v.Value(),
			Err:      fmt.Errorf("wire signature %q, want %q", sig, p.Signature),
		}
	}
	out, err := p.decode(v)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			if de.Property == "" {
				de.Property = p.Name
			}
			return zero, de
		}
		return zero, &DecodeError{Property: p.Name, Value: v.Value(), Err: err}
	}
	return out, nil
}

// Get reads the property from the object at path. ok is false only for an
// absent Optional property; an absent Mandatory property is a
// *ProtocolError.
func (p *Property[T]) Get(ctx context.Context, bus Bus, path dbus.ObjectPath) (value T, ok bool, err error) {
	body, err := bus.Call(ctx, bluezDest, path, dbus.MethodPropertiesGet, p.Interface, p.Name)
	if err != nil {
		if isAbsent(err) {
			if p.Presence == Optional {
				return value, false, nil
			}
			return value, false, &ProtocolError{Path: path, Property: p.Name, Reason: "mandatory property is absent"}
		}
		return value, false, transportError("get "+p.Name, err)
	}
	var v dbus.Variant
	if err := dbus.Store(body, &v); err != nil {
		return value, false, &ProtocolError{Path: path, Property: p.Name, Reason: fmt.Sprintf("unexpected Get reply: %v", err)}
	}
	value, err = p.Decode(v)
	if err != nil {
		return value, false, err
	}
	return value, true, nil
}

// Set encodes value and writes it to the object at path.
func (p *Property[T]) Set(ctx context.Context, bus Bus, path dbus.ObjectPath, value T) error {
	if p.encode == nil {
		return fmt.Errorf("%s: %w", p.Name, ErrReadOnly)
	}
	_, err := bus.Call(ctx, bluezDest, path, dbus.MethodPropertiesSet, p.Interface, p.Name, dbus.MakeVariant(p.encode(value)))
	return transportError("set "+p.Name, err)
}

// getMandatory reads a property that is declared Mandatory.
func getMandatory[T any](ctx context.Context, bus Bus, path dbus.ObjectPath, p *Property[T]) (T, error) {
	v, _, err := p.Get(ctx, bus, path)
	return v, err
}

// Change is one decoded entry of a change set.
type Change[K comparable] struct {
	Kind  K
	Value any
}

type tableEntry[K comparable] struct {
	kind   K
	iface  string
	name   string
	decode func(dbus.Variant) (any, error)
}

// entry erases the value type of p so it can sit in a propertyTable.
func entry[K comparable, T any](kind K, p *Property[T]) tableEntry[K] {
	return tableEntry[K]{
		kind:  kind,
		iface: p.Interface,
		name:  p.Name,
		decode: func(v dbus.Variant) (any, error) {
			return p.Decode(v)
		},
	}
}

// propertyTable is the declaration-ordered registry of an entity's
// properties.
type propertyTable[K comparable] struct {
	entries []tableEntry[K]
}

func newPropertyTable[K comparable](entries ...tableEntry[K]) *propertyTable[K] {
	return &propertyTable[K]{entries: entries}
}

// decodeChangeSet lazily decodes the entries of a partial update for iface.
// Keys the table does not declare are skipped. Results follow declaration
// order, since the wire dictionary carries none. A decode failure is
// yielded as an error for that entry and decoding continues.
func (t *propertyTable[K]) decodeChangeSet(iface string, changed map[string]dbus.Variant) iter.Seq2[Change[K], error] {
	return func(yield func(Change[K], error) bool) {
		for _, e := range t.entries {
			if e.iface != iface {
				continue
			}
			v, ok := changed[e.name]
			if !ok {
				continue
			}
			val, err := e.decode(v)
			if err != nil {
				if !yield(Change[K]{Kind: e.kind}, err) {
					return
				}
				continue
			}
			if !yield(Change[K]{Kind: e.kind, Value: val}, nil) {
				return
			}
		}
	}
}
