package bluez

import (
	"fmt"
	"strconv"
	"strings"
)

// Modalias is Device ID information in the kernel/udev modalias format,
// e.g. usb:v1D6Bp0246d0537.
type Modalias struct {
	Source  string
	Vendor  uint32
	Product uint32
	Device  uint32
}

// ParseModalias parses source:vVVVVpPPPPdDDDD.
func ParseModalias(s string) (Modalias, error) {
	source, ids, ok := strings.Cut(s, ":")
	if !ok || source == "" {
		return Modalias{}, fmt.Errorf("invalid modalias %q: missing source", s)
	}
	var m Modalias
	m.Source = source
	fields := []struct {
		tag byte
		dst *uint32
	}{
		{'v', &m.Vendor},
		{'p', &m.Product},
		{'d', &m.Device},
	}
	for _, f := range fields {
		if len(ids) < 5 || ids[0] != f.tag {
			return Modalias{}, fmt.Errorf("invalid modalias %q: expected %c and four hex digits", s, f.tag)
		}
		n, err := strconv.ParseUint(ids[1:5], 16, 32)
		if err != nil {
			return Modalias{}, fmt.Errorf("invalid modalias %q: %w", s, err)
		}
		*f.dst = uint32(n)
		ids = ids[5:]
	}
	if ids != "" {
		return Modalias{}, fmt.Errorf("invalid modalias %q: trailing %q", s, ids)
	}
	return m, nil
}

func (m Modalias) String() string {
	return fmt.Sprintf("%s:v%04Xp%04Xd%04X", m.Source, m.Vendor, m.Product, m.Device)
}
