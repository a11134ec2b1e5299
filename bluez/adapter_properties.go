package bluez

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdapterPropertyKind names an adapter property in change events.
type AdapterPropertyKind int

const (
	AdapterAddress AdapterPropertyKind = iota
	AdapterAddressType
	AdapterSystemName
	AdapterAlias
	AdapterClass
	AdapterPowered
	AdapterDiscoverable
	AdapterPairable
	AdapterPairableTimeout
	AdapterDiscoverableTimeout
	AdapterDiscovering
	AdapterUUIDs
	AdapterModalias
	AdapterActiveAdvertisingInstances
	AdapterSupportedAdvertisingInstances
	AdapterSupportedAdvertisingIncludes
	AdapterSupportedAdvertisingSecondaryChannels
	AdapterSupportedAdvertisingCapabilities
	AdapterSupportedAdvertisingFeatures
)

var adapterPropertyNames = [...]string{
	AdapterAddress:                               "Address",
	AdapterAddressType:                           "AddressType",
	AdapterSystemName:                            "SystemName",
	AdapterAlias:                                 "Alias",
	AdapterClass:                                 "Class",
	AdapterPowered:                               "Powered",
	AdapterDiscoverable:                          "Discoverable",
	AdapterPairable:                              "Pairable",
	AdapterPairableTimeout:                       "PairableTimeout",
	AdapterDiscoverableTimeout:                   "DiscoverableTimeout",
	AdapterDiscovering:                           "Discovering",
	AdapterUUIDs:                                 "UUIDs",
	AdapterModalias:                              "Modalias",
	AdapterActiveAdvertisingInstances:            "ActiveAdvertisingInstances",
	AdapterSupportedAdvertisingInstances:         "SupportedAdvertisingInstances",
	AdapterSupportedAdvertisingIncludes:          "SupportedAdvertisingIncludes",
	AdapterSupportedAdvertisingSecondaryChannels: "SupportedAdvertisingSecondaryChannels",
	AdapterSupportedAdvertisingCapabilities:      "SupportedAdvertisingCapabilities",
	AdapterSupportedAdvertisingFeatures:          "SupportedAdvertisingFeatures",
}

func (k AdapterPropertyKind) String() string {
	if k >= 0 && int(k) < len(adapterPropertyNames) {
		return adapterPropertyNames[k]
	}
	return "AdapterPropertyKind(?)"
}

// AdapterProperty is a decoded adapter property. Value holds the type the
// matching Adapter getter returns: Address, AddressType, string, uint32,
// bool, time.Duration, []uuid.UUID, Modalias, uint8,
// []AdvertisementInclude, []SecondaryChannel, AdvertisingCapabilities or
// []AdvertisingFeature.
type AdapterProperty = Change[AdapterPropertyKind]

var (
	adapterAddressProp             = newProperty(adapterInterface, "Address", sigString, Mandatory, parsedString(ParseAddress))
	adapterAddressTypeProp         = newProperty(adapterInterface, "AddressType", sigString, Mandatory, parsedString(ParseAddressType))
	adapterSystemNameProp          = newProperty(adapterInterface, "Name", sigString, Mandatory, decodeString)
	adapterAliasProp               = newProperty(adapterInterface, "Alias", sigString, Mandatory, decodeString).writable(encodeIdentity[string])
	adapterClassProp               = newProperty(adapterInterface, "Class", sigUint32, Mandatory, decodeUint32)
	adapterPoweredProp             = newProperty(adapterInterface, "Powered", sigBool, Mandatory, decodeBool).writable(encodeIdentity[bool])
	adapterDiscoverableProp        = newProperty(adapterInterface, "Discoverable", sigBool, Mandatory, decodeBool).writable(encodeIdentity[bool])
	adapterPairableProp            = newProperty(adapterInterface, "Pairable", sigBool, Mandatory, decodeBool).writable(encodeIdentity[bool])
	adapterPairableTimeoutProp     = newProperty(adapterInterface, "PairableTimeout", sigUint32, Mandatory, decodeSeconds).writable(encodeSeconds)
	adapterDiscoverableTimeoutProp = newProperty(adapterInterface, "DiscoverableTimeout", sigUint32, Mandatory, decodeSeconds).writable(encodeSeconds)
	adapterDiscoveringProp         = newProperty(adapterInterface, "Discovering", sigBool, Mandatory, decodeBool)
	adapterUUIDsProp               = newProperty(adapterInterface, "UUIDs", sigStrings, Optional, decodeUUIDs)
	adapterModaliasProp            = newProperty(adapterInterface, "Modalias", sigString, Optional, parsedString(ParseModalias))

	advActiveInstancesProp    = newProperty(advertisingManagerInterface, "ActiveInstances", sigByte, Mandatory, decodeByte)
	advSupportedInstancesProp = newProperty(advertisingManagerInterface, "SupportedInstances", sigByte, Mandatory, decodeByte)
	advSupportedIncludesProp  = newProperty(advertisingManagerInterface, "SupportedIncludes", sigStrings, Mandatory, knownStrings(parseAdvertisementInclude))
	advSecondaryChannelsProp  = newProperty(advertisingManagerInterface, "SupportedSecondaryChannels", sigStrings, Mandatory, knownStrings(parseSecondaryChannel))
	advCapabilitiesProp       = newProperty(advertisingManagerInterface, "SupportedCapabilities", sigDict, Optional, decodeAdvertisingCapabilities)
	advFeaturesProp           = newProperty(advertisingManagerInterface, "SupportedFeatures", sigStrings, Optional, knownStrings(parseAdvertisingFeature))
)

var adapterProperties = newPropertyTable(
	entry(AdapterAddress, adapterAddressProp),
	entry(AdapterAddressType, adapterAddressTypeProp),
	entry(AdapterSystemName, adapterSystemNameProp),
	entry(AdapterAlias, adapterAliasProp),
	entry(AdapterClass, adapterClassProp),
	entry(AdapterPowered, adapterPoweredProp),
	entry(AdapterDiscoverable, adapterDiscoverableProp),
	entry(AdapterPairable, adapterPairableProp),
	entry(AdapterPairableTimeout, adapterPairableTimeoutProp),
	entry(AdapterDiscoverableTimeout, adapterDiscoverableTimeoutProp),
	entry(AdapterDiscovering, adapterDiscoveringProp),
	entry(AdapterUUIDs, adapterUUIDsProp),
	entry(AdapterModalias, adapterModaliasProp),
	entry(AdapterActiveAdvertisingInstances, advActiveInstancesProp),
	entry(AdapterSupportedAdvertisingInstances, advSupportedInstancesProp),
	entry(AdapterSupportedAdvertisingIncludes, advSupportedIncludesProp),
	entry(AdapterSupportedAdvertisingSecondaryChannels, advSecondaryChannelsProp),
	entry(AdapterSupportedAdvertisingCapabilities, advCapabilitiesProp),
	entry(AdapterSupportedAdvertisingFeatures, advFeaturesProp),
)

// Address returns the adapter's Bluetooth address.
func (a *Adapter) Address(ctx context.Context) (Address, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterAddressProp)
}

// AddressType returns the type of the identity address. Dual-mode and
// BR/EDR-only adapters report public.
func (a *Adapter) AddressType(ctx context.Context) (AddressType, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterAddressTypeProp)
}

// SystemName returns the system name (pretty hostname).
func (a *Adapter) SystemName(ctx context.Context) (string, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterSystemNameProp)
}

// Alias returns the friendly name, which defaults to the system name.
func (a *Adapter) Alias(ctx context.Context) (string, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterAliasProp)
}

// SetAlias sets the friendly name; the empty string resets it to the system
// name.
func (a *Adapter) SetAlias(ctx context.Context, alias string) error {
	return adapterAliasProp.Set(ctx, a.session.bus, a.path, alias)
}

// Class returns the Bluetooth class of device.
func (a *Adapter) Class(ctx context.Context) (uint32, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterClassProp)
}

func (a *Adapter) IsPowered(ctx context.Context) (bool, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterPoweredProp)
}

// SetPowered switches the adapter on or off. The setting is not persistent.
func (a *Adapter) SetPowered(ctx context.Context, powered bool) error {
	return adapterPoweredProp.Set(ctx, a.session.bus, a.path, powered)
}

func (a *Adapter) IsDiscoverable(ctx context.Context) (bool, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterDiscoverableProp)
}

// SetDiscoverable makes the adapter visible or hidden. It fails while the
// adapter is powered off.
func (a *Adapter) SetDiscoverable(ctx context.Context, discoverable bool) error {
	return adapterDiscoverableProp.Set(ctx, a.session.bus, a.path, discoverable)
}

func (a *Adapter) IsPairable(ctx context.Context) (bool, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterPairableProp)
}

func (a *Adapter) SetPairable(ctx context.Context, pairable bool) error {
	return adapterPairableProp.Set(ctx, a.session.bus, a.path, pairable)
}

// PairableTimeout returns how long the adapter stays pairable; zero means
// forever.
func (a *Adapter) PairableTimeout(ctx context.Context) (time.Duration, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterPairableTimeoutProp)
}

// SetPairableTimeout sets the pairable timeout, truncated to whole seconds.
func (a *Adapter) SetPairableTimeout(ctx context.Context, d time.Duration) error {
	return adapterPairableTimeoutProp.Set(ctx, a.session.bus, a.path, d)
}

// DiscoverableTimeout returns how long the adapter stays discoverable; zero
// means forever.
func (a *Adapter) DiscoverableTimeout(ctx context.Context) (time.Duration, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterDiscoverableTimeoutProp)
}

// SetDiscoverableTimeout sets the discoverable timeout, truncated to whole
// seconds.
func (a *Adapter) SetDiscoverableTimeout(ctx context.Context, d time.Duration) error {
	return adapterDiscoverableTimeoutProp.Set(ctx, a.session.bus, a.path, d)
}

// IsDiscovering reports whether a discovery procedure is active, started by
// any client.
func (a *Adapter) IsDiscovering(ctx context.Context) (bool, error) {
	return getMandatory(ctx, a.session.bus, a.path, adapterDiscoveringProp)
}

// UUIDs returns the UUIDs of the available local services. ok is false when
// the daemon does not report them.
func (a *Adapter) UUIDs(ctx context.Context) (uuids []uuid.UUID, ok bool, err error) {
	return adapterUUIDsProp.Get(ctx, a.session.bus, a.path)
}

// Modalias returns the local Device ID information, if reported.
func (a *Adapter) Modalias(ctx context.Context) (m Modalias, ok bool, err error) {
	return adapterModaliasProp.Get(ctx, a.session.bus, a.path)
}

// ActiveAdvertisingInstances returns the number of active advertising
// instances.
func (a *Adapter) ActiveAdvertisingInstances(ctx context.Context) (uint8, error) {
	return getMandatory(ctx, a.session.bus, a.path, advActiveInstancesProp)
}

// SupportedAdvertisingInstances returns the number of available advertising
// instances.
func (a *Adapter) SupportedAdvertisingInstances(ctx context.Context) (uint8, error) {
	return getMandatory(ctx, a.session.bus, a.path, advSupportedInstancesProp)
}

func (a *Adapter) SupportedAdvertisingIncludes(ctx context.Context) ([]AdvertisementInclude, error) {
	return getMandatory(ctx, a.session.bus, a.path, advSupportedIncludesProp)
}

func (a *Adapter) SupportedAdvertisingSecondaryChannels(ctx context.Context) ([]SecondaryChannel, error) {
	return getMandatory(ctx, a.session.bus, a.path, advSecondaryChannelsProp)
}

func (a *Adapter) SupportedAdvertisingCapabilities(ctx context.Context) (c AdvertisingCapabilities, ok bool, err error) {
	return advCapabilitiesProp.Get(ctx, a.session.bus, a.path)
}

// SupportedAdvertisingFeatures returns the platform advertising features.
// An empty result means the platform has none.
func (a *Adapter) SupportedAdvertisingFeatures(ctx context.Context) (f []AdvertisingFeature, ok bool, err error) {
	return advFeaturesProp.Get(ctx, a.session.bus, a.path)
}
