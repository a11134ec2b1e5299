package bluez

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Address is a 48-bit Bluetooth device address.
type Address struct {
	mac bluetooth.MAC
}

// ParseAddress parses the canonical form AA:BB:CC:DD:EE:FF (hex digits of
// either case).
func ParseAddress(s string) (Address, error) {
	if len(s) != 17 {
		return Address{}, fmt.Errorf("invalid Bluetooth address %q", s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return Address{}, fmt.Errorf("invalid Bluetooth address %q", s)
			}
			continue
		}
		if !isHex(c) {
			return Address{}, fmt.Errorf("invalid Bluetooth address %q", s)
		}
	}
	mac, err := bluetooth.ParseMAC(strings.ToUpper(s))
	if err != nil {
		return Address{}, fmt.Errorf("invalid Bluetooth address %q: %w", s, err)
	}
	return Address{mac: mac}, nil
}

// AddressFromMAC converts a tinygo bluetooth MAC.
func AddressFromMAC(mac bluetooth.MAC) Address {
	return Address{mac: mac}
}

// MAC returns the address in tinygo bluetooth form.
func (a Address) MAC() bluetooth.MAC {
	return a.mac
}

// String returns the address as AA:BB:CC:DD:EE:FF.
func (a Address) String() string {
	return a.mac.String()
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// AddressType is the kind of a Bluetooth LE address.
type AddressType int

const (
	AddressPublic AddressType = iota
	AddressRandom
)

func (t AddressType) String() string {
	switch t {
	case AddressPublic:
		return "public"
	case AddressRandom:
		return "random"
	}
	return fmt.Sprintf("AddressType(%d)", int(t))
}

// ParseAddressType parses the BlueZ spelling ("public" or "random").
func ParseAddressType(s string) (AddressType, error) {
	switch s {
	case "public":
		return AddressPublic, nil
	case "random":
		return AddressRandom, nil
	}
	return 0, fmt.Errorf("unknown address type %q", s)
}
