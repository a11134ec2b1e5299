package dbus

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"
)

// signalBuffer sizes the channel each subscription registers with godbus.
// The sequential handler queues anything beyond it in order.
const signalBuffer = 64

const removeMatchTimeout = 2 * time.Second

const methodGetNameOwner = "org.freedesktop.DBus.GetNameOwner"

// Conn is a shared bus connection. All methods are safe for concurrent use.
type Conn struct {
	conn *godbus.Conn

	mu     sync.Mutex
	closed bool
}

// ConnectSystemBus opens a private connection to the system bus.
func ConnectSystemBus() (*Conn, error) {
	c, err := godbus.ConnectSystemBus(godbus.WithSignalHandler(newSignalHandler()))
	if err != nil {
		return nil, fmt.Errorf("dbus: connect system bus: %w", err)
	}
	return &Conn{conn: c}, nil
}

// newSignalHandler returns a handler that hands signals to each registered
// channel in bus order. godbus's default handler falls back to one
// goroutine per signal once a channel is full, which reorders them.
func newSignalHandler() godbus.SignalHandler {
	return godbus.NewSequentialSignalHandler()
}

// NewConn wraps an already connected and authenticated godbus connection.
// Subscriptions only see signals in bus order if c was opened with
// godbus.WithSignalHandler(godbus.NewSequentialSignalHandler()).
func NewConn(c *godbus.Conn) *Conn {
	return &Conn{conn: c}
}

// Call invokes dest's method ("interface.Member") on path and returns the
// reply body.
func (c *Conn) Call(ctx context.Context, dest string, path ObjectPath, method string, args ...any) ([]any, error) {
	if c.isClosed() {
		return nil, os.ErrClosed
	}
	call := c.conn.Object(dest, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

// ManagedObjects snapshots dest's object tree rooted at root.
func (c *Conn) ManagedObjects(ctx context.Context, dest string, root ObjectPath) (ManagedObjects, error) {
	body, err := c.Call(ctx, dest, root, MethodGetManagedObjects)
	if err != nil {
		return nil, err
	}
	var out ManagedObjects
	if err := Store(body, &out); err != nil {
		return nil, fmt.Errorf("dbus: GetManagedObjects reply: %w", err)
	}
	return out, nil
}

// Subscribe installs m on the bus and returns a channel of matching
// signals in arrival order. The channel is closed when ctx is done or the
// connection goes away; the match rule is removed at that point.
//
// A well-known Sender is resolved to its current owner first, and only
// signals from that owner are delivered. If the owning service restarts,
// subscribe again.
func (c *Conn) Subscribe(ctx context.Context, m Match) (<-chan *Signal, error) {
	if c.isClosed() {
		return nil, os.ErrClosed
	}
	if m.Sender != "" && !isUniqueName(m.Sender) {
		owner, err := c.nameOwner(ctx, m.Sender)
		if err != nil {
			return nil, err
		}
		m.owner = owner
	}
	opts := m.options()
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return nil, fmt.Errorf("dbus: AddMatch: %w", err)
	}
	in := make(chan *godbus.Signal, signalBuffer)
	c.conn.Signal(in)

	out := make(chan *Signal)
	go func() {
		defer close(out)
		defer func() {
			c.conn.RemoveSignal(in)
			if c.isClosed() {
				return
			}
			rctx, cancel := context.WithTimeout(context.Background(), removeMatchTimeout)
			defer cancel()
			_ = c.conn.RemoveMatchSignalContext(rctx, opts...)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				sig := fromGodbus(raw)
				if !m.Matches(sig) {
					continue
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Conn) nameOwner(ctx context.Context, name string) (string, error) {
	var owner string
	err := c.conn.BusObject().CallWithContext(ctx, methodGetNameOwner, 0, name).Store(&owner)
	if err != nil {
		return "", fmt.Errorf("dbus: GetNameOwner %s: %w", name, err)
	}
	return owner, nil
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
