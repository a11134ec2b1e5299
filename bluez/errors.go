package bluez

import (
	"errors"
	"fmt"

	"bluetalk/dbus"
)

// ErrDiscoveryInProgress is returned when a discovery session is requested
// on an adapter that already has one. Callers should retry later.
var ErrDiscoveryInProgress = errors.New("bluez: another discovery is already in progress")

// ErrReadOnly is returned when writing a property that has no encoder.
var ErrReadOnly = errors.New("bluez: property is read-only")

var errSubscriptionClosed = errors.New("signal subscription closed")

// TransportError reports a failed bus call or subscription. The core never
// retries these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bluez: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports the daemon not honouring its contract: a mandatory
// property that is absent, a path of the wrong shape, a reply of the wrong
// type.
type ProtocolError struct {
	Path     dbus.ObjectPath
	Property string
	Reason   string
}

func (e *ProtocolError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("bluez: %s property %s: %s", e.Path, e.Property, e.Reason)
	}
	return fmt.Sprintf("bluez: %s: %s", e.Path, e.Reason)
}

// DecodeError reports a present value that could not be converted to its
// declared type.
type DecodeError struct {
	Property string
	Value    any
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bluez: property %s: cannot decode %v: %v", e.Property, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidNameError reports an adapter name that cannot form an object path.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("bluez: invalid adapter name %q", e.Name)
}

func transportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// isAbsent reports whether err is the daemon's answer for a property the
// object does not currently expose.
func isAbsent(err error) bool {
	var name string
	var de dbus.Error
	var dep *dbus.Error
	switch {
	case errors.As(err, &de):
		name = de.Name
	case errors.As(err, &dep) && dep != nil:
		name = dep.Name
	default:
		return false
	}
	return name == dbus.ErrorInvalidArgs || name == dbus.ErrorUnknownProperty
}
