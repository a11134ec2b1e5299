package bluez

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ScanResult holds a discovered device's address, name, and service UUIDs.
type ScanResult struct {
	Address Address
	Name    string
	UUIDs   []uuid.UUID
	RSSI    int16
	HasRSSI bool
}

// Matches reports whether r satisfies f. The daemon applies the union of
// every client's filter, so results are checked again on our side.
func (f DiscoveryFilter) Matches(r ScanResult) bool {
	if len(f.UUIDs) > 0 && !slices.ContainsFunc(r.UUIDs, func(u uuid.UUID) bool {
		return slices.Contains(f.UUIDs, u)
	}) {
		return false
	}
	if f.RSSI != nil && r.HasRSSI && r.RSSI < *f.RSSI {
		return false
	}
	if f.Pattern != nil && *f.Pattern != "" {
		p := *f.Pattern
		if !strings.HasPrefix(r.Address.String(), strings.ToUpper(p)) && !strings.HasPrefix(r.Name, p) {
			return false
		}
	}
	return true
}

// Scan runs discovery on adapter and sends results matching filter to
// found until ctx is done, then stops the scan. A device is checked when
// its object appears and, for devices the daemon already knew, whenever a
// fresh RSSI shows it was heard during this scan. Each device is reported
// at most once.
func Scan(ctx context.Context, adapter *Adapter, filter DiscoveryFilter, found chan<- ScanResult) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watch before starting so no device seen by our own scan is missed.
	events, err := adapter.DeviceChanges(ctx)
	if err != nil {
		return err
	}
	sightings, err := PropertyEventsUnder(ctx, adapter.session.bus, adapter.path)
	if err != nil {
		return err
	}
	session, err := adapter.DiscoverDevices(ctx, filter)
	if err != nil {
		return err
	}
	defer session.Close()

	log := adapter.session.log.WithField("adapter", adapter.name)
	reported := make(map[Address]bool)
	check := func(addr Address) error {
		if reported[addr] {
			return nil
		}
		res, err := readScanResult(ctx, adapter, addr)
		if err != nil {
			log.WithError(err).WithField("device", addr.String()).Debug("skipping device")
			return nil
		}
		if !filter.Matches(res) {
			return nil
		}
		select {
		case found <- res:
			reported[addr] = true
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	closed := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return transportError("scan", errSubscriptionClosed)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return closed()
			}
			if ev.Kind != DeviceAdded {
				continue
			}
			if err := check(ev.Address); err != nil {
				return err
			}
		case ev, ok := <-sightings:
			if !ok {
				return closed()
			}
			addr, ok := adapter.sighted(ev)
			if !ok {
				continue
			}
			if err := check(addr); err != nil {
				return err
			}
		}
	}
}

// sighted reports the device whose RSSI changed in ev, if ev is one of
// this adapter's devices.
func (a *Adapter) sighted(ev PropertyEvent) (Address, bool) {
	if ev.Interface != deviceInterface {
		return Address{}, false
	}
	if _, ok := ev.Changed["RSSI"]; !ok {
		return Address{}, false
	}
	adapter, addr, ok := ParseDevicePath(ev.Object)
	if !ok || adapter != a.name {
		return Address{}, false
	}
	return addr, true
}

func readScanResult(ctx context.Context, adapter *Adapter, addr Address) (ScanResult, error) {
	dev, err := adapter.Device(addr)
	if err != nil {
		return ScanResult{}, err
	}
	res := ScanResult{Address: addr}
	name, ok, err := dev.Name(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	if !ok {
		if name, err = dev.Alias(ctx); err != nil {
			return ScanResult{}, err
		}
	}
	res.Name = name
	if res.UUIDs, _, err = dev.UUIDs(ctx); err != nil {
		return ScanResult{}, err
	}
	if res.RSSI, res.HasRSSI, err = dev.RSSI(ctx); err != nil {
		return ScanResult{}, err
	}
	return res, nil
}
