package bluez

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"bluetalk/dbus"
)

// stopDiscoveryTimeout bounds the StopDiscovery call made after a session
// is released.
const stopDiscoveryTimeout = 10 * time.Second

// DiscoveryTransport determines the type of scan.
type DiscoveryTransport int

const (
	// TransportAuto interleaves LE and BR/EDR, depending on what the
	// controller has enabled.
	TransportAuto DiscoveryTransport = iota
	// TransportBREDR is BR/EDR inquiry only.
	TransportBREDR
	// TransportLE is LE scan only.
	TransportLE
)

func (t DiscoveryTransport) String() string {
	switch t {
	case TransportBREDR:
		return "bredr"
	case TransportLE:
		return "le"
	}
	return "auto"
}

func ParseDiscoveryTransport(s string) (DiscoveryTransport, error) {
	switch s {
	case "auto", "":
		return TransportAuto, nil
	case "bredr":
		return TransportBREDR, nil
	case "le":
		return TransportLE, nil
	}
	return 0, fmt.Errorf("unknown discovery transport %q", s)
}

// DiscoveryFilter constrains a discovery session. The daemon merges the
// filters of all clients scanning on one adapter, so results may include
// devices outside this filter; see Matches.
type DiscoveryFilter struct {
	// UUIDs filters by advertised service UUID; empty matches any.
	UUIDs []uuid.UUID
	// RSSI is the minimum received signal strength, in dBm.
	RSSI *int16
	// Pathloss is the maximum path loss, in dB.
	Pathloss *uint16
	// Transport selects LE, BR/EDR or both.
	Transport DiscoveryTransport
	// DuplicateData disables duplicate detection of advertisement data.
	DuplicateData bool
	// Discoverable makes the adapter discoverable while scanning.
	Discoverable bool
	// Pattern matches a prefix of the device address or name. The empty
	// pattern matches every device.
	Pattern *string
}

// DefaultDiscoveryFilter matches everything on every transport and reports
// duplicate advertisement data.
func DefaultDiscoveryFilter() DiscoveryFilter {
	return DiscoveryFilter{Transport: TransportAuto, DuplicateData: true}
}

// Dict is the SetDiscoveryFilter argument. Unset optional fields are left
// out entirely.
func (f DiscoveryFilter) Dict() map[string]dbus.Variant {
	uuids := make([]string, 0, len(f.UUIDs))
	for _, u := range uuidSet(f.UUIDs) {
		uuids = append(uuids, u.String())
	}
	d := map[string]dbus.Variant{
		"UUIDs":         dbus.MakeVariant(uuids),
		"Transport":     dbus.MakeVariant(f.Transport.String()),
		"DuplicateData": dbus.MakeVariant(f.DuplicateData),
		"Discoverable":  dbus.MakeVariant(f.Discoverable),
	}
	if f.RSSI != nil {
		d["RSSI"] = dbus.MakeVariant(*f.RSSI)
	}
	if f.Pathloss != nil {
		d["Pathloss"] = dbus.MakeVariant(*f.Pathloss)
	}
	if f.Pattern != nil {
		d["Pattern"] = dbus.MakeVariant(*f.Pattern)
	}
	return d
}

// discoverySlots tracks the live discovery session of each adapter. A slot
// holds the session's done channel, which is closed once its scan has been
// stopped.
type discoverySlots struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newDiscoverySlots() *discoverySlots {
	return &discoverySlots{slots: make(map[string]chan struct{})}
}

// acquire claims the adapter's slot. A slot whose session already finished
// is treated as free.
func (s *discoverySlots) acquire(adapter string) (chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.slots[adapter]; ok {
		select {
		case <-prev:
		default:
			return nil, ErrDiscoveryInProgress
		}
	}
	done := make(chan struct{})
	s.slots[adapter] = done
	return done, nil
}

// release frees the slot claimed with done and closes done. Slot removal and
// the close happen under one lock, so no caller can observe a finished
// session still holding the slot.
func (s *discoverySlots) release(adapter string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[adapter] == done {
		delete(s.slots, adapter)
	}
	close(done)
}

// active reports whether the adapter currently has a live session.
func (s *discoverySlots) active(adapter string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[adapter]
	return ok
}

// DeviceDiscovery is ownership of an adapter's discovery session. Close it
// to stop scanning; a session that becomes unreachable without Close is
// released when the garbage collector finds it.
type DeviceDiscovery struct {
	adapter string
	term    *terminator
	done    <-chan struct{}
}

type terminator struct {
	once sync.Once
	ch   chan struct{}
}

func (t *terminator) fire() {
	t.once.Do(func() { close(t.ch) })
}

// Adapter returns the name of the scanning adapter.
func (d *DeviceDiscovery) Adapter() string {
	return d.adapter
}

// Close releases the session. It returns immediately; StopDiscovery is
// issued in the background and Done is closed once it has completed.
func (d *DeviceDiscovery) Close() error {
	d.term.fire()
	return nil
}

// Done is closed after the session has been released and the scan stop
// request has completed (successfully or not).
func (d *DeviceDiscovery) Done() <-chan struct{} {
	return d.done
}

func (d *DeviceDiscovery) String() string {
	return fmt.Sprintf("DeviceDiscovery{adapter: %s}", d.adapter)
}

// startDiscovery sets the filter and starts scanning on the adapter whose
// slot is held by done, then hands the slot to a cleanup goroutine that
// stops the scan once the returned session is closed. On failure the slot
// is released before returning.
func startDiscovery(ctx context.Context, a *Adapter, filter DiscoveryFilter, done chan struct{}) (*DeviceDiscovery, error) {
	s := a.session
	log := s.log.WithField("adapter", a.name)

	if _, err := s.bus.Call(ctx, bluezDest, a.path, adapterInterface+".SetDiscoveryFilter", filter.Dict()); err != nil {
		s.discovery.release(a.name, done)
		return nil, transportError("SetDiscoveryFilter", err)
	}
	if _, err := s.bus.Call(ctx, bluezDest, a.path, adapterInterface+".StartDiscovery"); err != nil {
		s.discovery.release(a.name, done)
		return nil, transportError("StartDiscovery", err)
	}
	log.Debug("discovery started")

	term := &terminator{ch: make(chan struct{})}
	go func() {
		defer s.discovery.release(a.name, done)
		<-term.ch

		ctx, cancel := context.WithTimeout(context.Background(), stopDiscoveryTimeout)
		defer cancel()
		if _, err := s.bus.Call(ctx, bluezDest, a.path, adapterInterface+".StopDiscovery"); err != nil {
			log.WithError(err).Warn("stop discovery failed")
			return
		}
		log.Debug("discovery stopped")
	}()

	d := &DeviceDiscovery{adapter: a.name, term: term, done: done}
	runtime.AddCleanup(d, (*terminator).fire, term)
	return d, nil
}
