package bluez

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"bluetalk/dbus"
)

// Wire signatures used by BlueZ properties.
const (
	sigString  = "s"
	sigBool    = "b"
	sigByte    = "y"
	sigInt16   = "n"
	sigUint16  = "q"
	sigUint32  = "u"
	sigStrings = "as"
	sigDict    = "a{sv}"
)

// wireValue type-checks the payload of v.
func wireValue[T any](v dbus.Variant) (T, error) {
	t, ok := v.Value().(T)
	if !ok {
		return t, fmt.Errorf("unexpected wire type %T", v.Value())
	}
	return t, nil
}

func decodeString(v dbus.Variant) (string, error) { return wireValue[string](v) }
func decodeBool(v dbus.Variant) (bool, error) { return wireValue[bool](v) }
func decodeByte(v dbus.Variant) (uint8, error) { return wireValue[uint8](v) }
func decodeInt16(v dbus.Variant) (int16, error) { return wireValue[int16](v) }
func decodeUint16(v dbus.Variant) (uint16, error) { return wireValue[uint16](v) }
func decodeUint32(v dbus.Variant) (uint32, error) { return wireValue[uint32](v) }

func encodeIdentity[T any](v T) any { return v }

// parsedString decodes a string and converts it with parse; a parse failure
// names the raw string.
func parsedString[T any](parse func(string) (T, error)) func(dbus.Variant) (T, error) {
	return func(v dbus.Variant) (T, error) {
		s, err := decodeString(v)
		if err != nil {
			var zero T
			return zero, err
		}
		out, err := parse(s)
		if err != nil {
			var zero T
			return zero, &DecodeError{Value: s, Err: err}
		}
		return out, nil
	}
}

// decodeSeconds decodes a u32 count of seconds.
func decodeSeconds(v dbus.Variant) (time.Duration, error) {
	n, err := decodeUint32(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func encodeSeconds(d time.Duration) any {
	if d < 0 {
		d = 0
	}
	return uint32(d / time.Second)
}

// decodeUUIDs decodes a string list into a sorted, de-duplicated UUID set.
// Every entry must parse.
func decodeUUIDs(v dbus.Variant) ([]uuid.UUID, error) {
	ss, err := wireValue[[]string](v)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, &DecodeError{Value: s, Err: fmt.Errorf("invalid UUID: %w", err)}
		}
		out = append(out, u)
	}
	return uuidSet(out), nil
}

func uuidSet(in []uuid.UUID) []uuid.UUID {
	out := slices.Clone(in)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}

// knownStrings decodes a string list, keeping only entries parse accepts.
// Values added by newer daemons are dropped rather than failing the read.
func knownStrings[T ~string](parse func(string) (T, bool)) func(dbus.Variant) ([]T, error) {
	return func(v dbus.Variant) ([]T, error) {
		ss, err := wireValue[[]string](v)
		if err != nil {
			return nil, err
		}
		out := make([]T, 0, len(ss))
		for _, s := range ss {
			if t, ok := parse(s); ok {
				out = append(out, t)
			}
		}
		slices.Sort(out)
		return slices.Compact(out), nil
	}
}
