package bluez

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bluetalk/dbus"
)

// ErrDisconnected is returned by WaitServicesResolved when the device drops
// the connection before service discovery completes.
var ErrDisconnected = errors.New("bluez: device disconnected")

// Device wraps a remote BlueZ device (e.g. /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF).
type Device struct {
	session *Session
	adapter string
	address Address
	path    dbus.ObjectPath
}

// AdapterName returns the name of the adapter the device belongs to.
func (d *Device) AdapterName() string {
	return d.adapter
}

func (d *Device) Address() Address {
	return d.address
}

func (d *Device) Path() dbus.ObjectPath {
	return d.path
}

func (d *Device) String() string {
	return fmt.Sprintf("Device{adapter: %s, address: %s}", d.adapter, d.address)
}

// DevicePropertyKind names a device property in change events.
type DevicePropertyKind int

const (
	DeviceName DevicePropertyKind = iota
	DeviceAlias
	DeviceAddressType
	DeviceAppearance
	DeviceClass
	DeviceIcon
	DevicePaired
	DeviceTrusted
	DeviceBlocked
	DeviceConnected
	DeviceUUIDs
	DeviceRSSI
	DeviceTxPower
	DeviceServicesResolved
)

var devicePropertyNames = [...]string{
	DeviceName:             "Name",
	DeviceAlias:            "Alias",
	DeviceAddressType:      "AddressType",
	DeviceAppearance:       "Appearance",
	DeviceClass:            "Class",
	DeviceIcon:             "Icon",
	DevicePaired:           "Paired",
	DeviceTrusted:          "Trusted",
	DeviceBlocked:          "Blocked",
	DeviceConnected:        "Connected",
	DeviceUUIDs:            "UUIDs",
	DeviceRSSI:             "RSSI",
	DeviceTxPower:          "TxPower",
	DeviceServicesResolved: "ServicesResolved",
}

func (k DevicePropertyKind) String() string {
	if k >= 0 && int(k) < len(devicePropertyNames) {
		return devicePropertyNames[k]
	}
	return "DevicePropertyKind(?)"
}

// DeviceProperty is a decoded device property.
type DeviceProperty = Change[DevicePropertyKind]

var (
	deviceNameProp             = newProperty(deviceInterface, "Name", sigString, Optional, decodeString)
	deviceAliasProp            = newProperty(deviceInterface, "Alias", sigString, Mandatory, decodeString).writable(encodeIdentity[string])
	deviceAddressTypeProp      = newProperty(deviceInterface, "AddressType", sigString, Mandatory, parsedString(ParseAddressType))
	deviceAppearanceProp       = newProperty(deviceInterface, "Appearance", sigUint16, Optional, decodeUint16)
	deviceClassProp            = newProperty(deviceInterface, "Class", sigUint32, Optional, decodeUint32)
	deviceIconProp             = newProperty(deviceInterface, "Icon", sigString, Optional, decodeString)
	devicePairedProp           = newProperty(deviceInterface, "Paired", sigBool, Mandatory, decodeBool)
	deviceTrustedProp          = newProperty(deviceInterface, "Trusted", sigBool, Mandatory, decodeBool).writable(encodeIdentity[bool])
	deviceBlockedProp          = newProperty(deviceInterface, "Blocked", sigBool, Mandatory, decodeBool).writable(encodeIdentity[bool])
	deviceConnectedProp        = newProperty(deviceInterface, "Connected", sigBool, Mandatory, decodeBool)
	deviceUUIDsProp            = newProperty(deviceInterface, "UUIDs", sigStrings, Optional, decodeUUIDs)
	deviceRSSIProp             = newProperty(deviceInterface, "RSSI", sigInt16, Optional, decodeInt16)
	deviceTxPowerProp          = newProperty(deviceInterface, "TxPower", sigInt16, Optional, decodeInt16)
	deviceServicesResolvedProp = newProperty(deviceInterface, "ServicesResolved", sigBool, Mandatory, decodeBool)
)

var deviceProperties = newPropertyTable(
	entry(DeviceName, deviceNameProp),
	entry(DeviceAlias, deviceAliasProp),
	entry(DeviceAddressType, deviceAddressTypeProp),
	entry(DeviceAppearance, deviceAppearanceProp),
	entry(DeviceClass, deviceClassProp),
	entry(DeviceIcon, deviceIconProp),
	entry(DevicePaired, devicePairedProp),
	entry(DeviceTrusted, deviceTrustedProp),
	entry(DeviceBlocked, deviceBlockedProp),
	entry(DeviceConnected, deviceConnectedProp),
	entry(DeviceUUIDs, deviceUUIDsProp),
	entry(DeviceRSSI, deviceRSSIProp),
	entry(DeviceTxPower, deviceTxPowerProp),
	entry(DeviceServicesResolved, deviceServicesResolvedProp),
)

// Name returns the remote name, if the device has reported one.
func (d *Device) Name(ctx context.Context) (name string, ok bool, err error) {
	return deviceNameProp.Get(ctx, d.session.bus, d.path)
}

// Alias returns the display name: a user-set alias, else the remote name,
// else a form of the address.
func (d *Device) Alias(ctx context.Context) (string, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceAliasProp)
}

func (d *Device) SetAlias(ctx context.Context, alias string) error {
	return deviceAliasProp.Set(ctx, d.session.bus, d.path, alias)
}

func (d *Device) AddressType(ctx context.Context) (AddressType, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceAddressTypeProp)
}

// Appearance returns the external appearance from the advertising data.
func (d *Device) Appearance(ctx context.Context) (appearance uint16, ok bool, err error) {
	return deviceAppearanceProp.Get(ctx, d.session.bus, d.path)
}

// Class returns the BR/EDR class of device.
func (d *Device) Class(ctx context.Context) (class uint32, ok bool, err error) {
	return deviceClassProp.Get(ctx, d.session.bus, d.path)
}

// Icon returns the freedesktop icon name proposed for the device.
func (d *Device) Icon(ctx context.Context) (icon string, ok bool, err error) {
	return deviceIconProp.Get(ctx, d.session.bus, d.path)
}

func (d *Device) IsPaired(ctx context.Context) (bool, error) {
	return getMandatory(ctx, d.session.bus, d.path, devicePairedProp)
}

func (d *Device) IsTrusted(ctx context.Context) (bool, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceTrustedProp)
}

func (d *Device) SetTrusted(ctx context.Context, trusted bool) error {
	return deviceTrustedProp.Set(ctx, d.session.bus, d.path, trusted)
}

func (d *Device) IsBlocked(ctx context.Context) (bool, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceBlockedProp)
}

// SetBlocked blocks the device; a blocked device's connections are rejected.
func (d *Device) SetBlocked(ctx context.Context, blocked bool) error {
	return deviceBlockedProp.Set(ctx, d.session.bus, d.path, blocked)
}

func (d *Device) IsConnected(ctx context.Context) (bool, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceConnectedProp)
}

// UUIDs returns the advertised or resolved service UUIDs.
func (d *Device) UUIDs(ctx context.Context) (uuids []uuid.UUID, ok bool, err error) {
	return deviceUUIDsProp.Get(ctx, d.session.bus, d.path)
}

// RSSI returns the signal strength of the last inquiry or advertisement.
// It is only present while discovering.
func (d *Device) RSSI(ctx context.Context) (rssi int16, ok bool, err error) {
	return deviceRSSIProp.Get(ctx, d.session.bus, d.path)
}

// TxPower returns the advertised transmit power level.
func (d *Device) TxPower(ctx context.Context) (power int16, ok bool, err error) {
	return deviceTxPowerProp.Get(ctx, d.session.bus, d.path)
}

// IsServicesResolved reports whether service discovery has completed.
func (d *Device) IsServicesResolved(ctx context.Context) (bool, error) {
	return getMandatory(ctx, d.session.bus, d.path, deviceServicesResolvedProp)
}

// Connect connects all auto-connectable profiles of the device.
func (d *Device) Connect(ctx context.Context) error {
	_, err := d.session.bus.Call(ctx, bluezDest, d.path, deviceInterface+".Connect")
	return transportError("Connect", err)
}

// Disconnect gracefully disconnects all connected profiles and then the
// link itself.
func (d *Device) Disconnect(ctx context.Context) error {
	_, err := d.session.bus.Call(ctx, bluezDest, d.path, deviceInterface+".Disconnect")
	return transportError("Disconnect", err)
}

// DeviceChanged is one property change of a device.
type DeviceChanged struct {
	Address  Address
	Property DeviceProperty
}

// Changes streams property changes of this device until ctx is done.
// Values that fail to decode are logged and skipped.
func (d *Device) Changes(ctx context.Context) (<-chan DeviceChanged, error) {
	events, err := PropertyEvents(ctx, d.session.bus, d.path)
	if err != nil {
		return nil, err
	}
	log := d.session.log.WithField("device", d.address.String())
	out := make(chan DeviceChanged)
	go func() {
		defer close(out)
		for ev := range events {
			for change, err := range deviceProperties.decodeChangeSet(ev.Interface, ev.Changed) {
				if err != nil {
					log.WithError(err).Debug("skipping undecodable property change")
					continue
				}
				select {
				case out <- DeviceChanged{Address: d.address, Property: change}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// WaitServicesResolved blocks until the device reports ServicesResolved,
// the device disconnects (ErrDisconnected) or ctx is done.
func (d *Device) WaitServicesResolved(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before reading so a change in between is not lost.
	changes, err := d.Changes(ctx)
	if err != nil {
		return err
	}
	resolved, err := d.IsServicesResolved(ctx)
	if err != nil {
		return err
	}
	if resolved {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-changes:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return transportError("wait services resolved", errSubscriptionClosed)
			}
			switch ch.Property.Kind {
			case DeviceServicesResolved:
				if v, _ := ch.Property.Value.(bool); v {
					return nil
				}
			case DeviceConnected:
				if v, _ := ch.Property.Value.(bool); !v {
					return ErrDisconnected
				}
			}
		}
	}
}
