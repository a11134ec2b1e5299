package bluez

import (
	"fmt"

	"bluetalk/dbus"
)

// AdvertisementInclude is a system-provided field BlueZ can add to an LE
// advertisement (SupportedIncludes).
type AdvertisementInclude string

const (
	IncludeTxPower    AdvertisementInclude = "tx-power"
	IncludeAppearance AdvertisementInclude = "appearance"
	IncludeLocalName  AdvertisementInclude = "local-name"
	IncludeRSI        AdvertisementInclude = "rsi"
)

func parseAdvertisementInclude(s string) (AdvertisementInclude, bool) {
	switch i := AdvertisementInclude(s); i {
	case IncludeTxPower, IncludeAppearance, IncludeLocalName, IncludeRSI:
		return i, true
	}
	return "", false
}

// SecondaryChannel is a PHY usable as an LE advertising secondary channel.
type SecondaryChannel string

const (
	SecondaryChannel1M    SecondaryChannel = "1M"
	SecondaryChannel2M    SecondaryChannel = "2M"
	SecondaryChannelCoded SecondaryChannel = "Coded"
)

func parseSecondaryChannel(s string) (SecondaryChannel, bool) {
	switch c := SecondaryChannel(s); c {
	case SecondaryChannel1M, SecondaryChannel2M, SecondaryChannelCoded:
		return c, true
	}
	return "", false
}

// AdvertisingFeature is a platform advertising feature (SupportedFeatures).
type AdvertisingFeature string

const (
	FeatureCanSetTxPower   AdvertisingFeature = "CanSetTxPower"
	FeatureHardwareOffload AdvertisingFeature = "HardwareOffload"
)

func parseAdvertisingFeature(s string) (AdvertisingFeature, bool) {
	switch f := AdvertisingFeature(s); f {
	case FeatureCanSetTxPower, FeatureHardwareOffload:
		return f, true
	}
	return "", false
}

// AdvertisingCapabilities are the controller limits from SupportedCapabilities.
// Keys the controller does not report stay zero.
type AdvertisingCapabilities struct {
	MaxAdvertisingDataLength uint8
	MaxScanResponseLength    uint8
	MinTxPower               int16
	MaxTxPower               int16
}

func decodeAdvertisingCapabilities(v dbus.Variant) (AdvertisingCapabilities, error) {
	dict, err := wireValue[map[string]dbus.Variant](v)
	if err != nil {
		return AdvertisingCapabilities{}, err
	}
	var c AdvertisingCapabilities
	if err := dictField(dict, "MaxAdvLen", &c.MaxAdvertisingDataLength); err != nil {
		return AdvertisingCapabilities{}, err
	}
	if err := dictField(dict, "MaxScnRspLen", &c.MaxScanResponseLength); err != nil {
		return AdvertisingCapabilities{}, err
	}
	if err := dictField(dict, "MinTxPower", &c.MinTxPower); err != nil {
		return AdvertisingCapabilities{}, err
	}
	if err := dictField(dict, "MaxTxPower", &c.MaxTxPower); err != nil {
		return AdvertisingCapabilities{}, err
	}
	return c, nil
}

// dictField stores dict[key] into dst when present.
func dictField[T any](dict map[string]dbus.Variant, key string, dst *T) error {
	v, ok := dict[key]
	if !ok {
		return nil
	}
	t, ok := v.Value().(T)
	if !ok {
		return &DecodeError{Value: v.Value(), Err: fmt.Errorf("%s: unexpected wire type %T", key, v.Value())}
	}
	*dst = t
	return nil
}
