package bluez

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Session is the shared context every adapter handle hangs off: the bus
// connection, the per-adapter discovery slots and the logger. Create one per
// bus connection and share it; handles from different sessions do not
// coordinate discovery.
type Session struct {
	bus       Bus
	log       logrus.FieldLogger
	discovery *discoverySlots
}

type Option func(*Session)

// WithLogger sets the logger for background work (default
// logrus.StandardLogger()).
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func NewSession(bus Bus, opts ...Option) *Session {
	s := &Session{
		bus:       bus,
		log:       logrus.StandardLogger(),
		discovery: newDiscoverySlots(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AdapterNames returns the names of all adapters, sorted (e.g. hci0, hci1).
func (s *Session) AdapterNames(ctx context.Context) ([]string, error) {
	objects, err := ListObjects(ctx, s.bus)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, path := range objects.Implementing(adapterInterface) {
		if name, ok := ParseAdapterPath(path); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Adapter returns a handle for the named adapter. It does not check that
// the adapter exists.
func (s *Session) Adapter(name string) (*Adapter, error) {
	path, err := AdapterPath(name)
	if err != nil {
		return nil, err
	}
	return &Adapter{session: s, path: path, name: name}, nil
}

// DefaultAdapter returns the first adapter in name order.
func (s *Session) DefaultAdapter(ctx context.Context) (*Adapter, error) {
	names, err := s.AdapterNames(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("bluez: no adapter found")
	}
	return s.Adapter(names[0])
}
