// bluetalk inspects BlueZ adapters over the system bus: it lists adapters
// and their devices, prints adapter properties, toggles power and runs
// filtered discovery while following adapter property changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"bluetalk/bluez"
	"bluetalk/dbus"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("bluetalk", pflag.ContinueOnError)
	fv := registerFlags(flags)
	flags.Usage = func() { printUsage(flags) }
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, path, err := LoadConfig(fv.config)
	if err != nil {
		return err
	}
	fv.apply(flags, cfg)

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	if path != "" {
		log.WithField("path", path).Debug("loaded config")
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(flags)
		return fmt.Errorf("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return err
	}
	defer conn.Close()
	session := bluez.NewSession(conn, bluez.WithLogger(log))

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "adapters" {
		return listAdapters(ctx, session)
	}

	adapter, err := selectAdapter(ctx, session, cfg.Adapter)
	if err != nil {
		return err
	}
	switch cmd {
	case "info":
		return showAdapter(ctx, adapter)
	case "devices":
		return listDevices(ctx, adapter)
	case "power":
		return setPower(ctx, adapter, cmdArgs)
	case "scan":
		return scan(ctx, log, adapter, cfg.Scan)
	}
	printUsage(flags)
	return fmt.Errorf("unknown command %q", cmd)
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: bluetalk [flags] <command>

Commands:
  adapters      list adapters
  info          show adapter properties
  devices       list devices known to the adapter
  power on|off  switch the adapter on or off
  scan          discover devices matching the scan filter

Flags:
%s`, flags.FlagUsages())
}

func newLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}

func selectAdapter(ctx context.Context, session *bluez.Session, name string) (*bluez.Adapter, error) {
	if name == "" {
		return session.DefaultAdapter(ctx)
	}
	return session.Adapter(name)
}

func listAdapters(ctx context.Context, session *bluez.Session) error {
	names, err := session.AdapterNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		a, err := session.Adapter(name)
		if err != nil {
			return err
		}
		addr, err := a.Address(ctx)
		if err != nil {
			return err
		}
		alias, err := a.Alias(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", name, addr, alias)
	}
	return nil
}

func showAdapter(ctx context.Context, a *bluez.Adapter) error {
	addr, err := a.Address(ctx)
	if err != nil {
		return err
	}
	addrType, err := a.AddressType(ctx)
	if err != nil {
		return err
	}
	name, err := a.SystemName(ctx)
	if err != nil {
		return err
	}
	alias, err := a.Alias(ctx)
	if err != nil {
		return err
	}
	class, err := a.Class(ctx)
	if err != nil {
		return err
	}
	powered, err := a.IsPowered(ctx)
	if err != nil {
		return err
	}
	discoverable, err := a.IsDiscoverable(ctx)
	if err != nil {
		return err
	}
	discoverableTimeout, err := a.DiscoverableTimeout(ctx)
	if err != nil {
		return err
	}
	pairable, err := a.IsPairable(ctx)
	if err != nil {
		return err
	}
	pairableTimeout, err := a.PairableTimeout(ctx)
	if err != nil {
		return err
	}
	discovering, err := a.IsDiscovering(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Adapter %s (%s)\n", a.Name(), a.Path())
	fmt.Printf("  Address:             %s (%s)\n", addr, addrType)
	fmt.Printf("  Name:                %s\n", name)
	fmt.Printf("  Alias:               %s\n", alias)
	fmt.Printf("  Class:               0x%06x\n", class)
	fmt.Printf("  Powered:             %t\n", powered)
	fmt.Printf("  Discoverable:        %t (timeout %s)\n", discoverable, discoverableTimeout)
	fmt.Printf("  Pairable:            %t (timeout %s)\n", pairable, pairableTimeout)
	fmt.Printf("  Discovering:         %t\n", discovering)

	if m, ok, err := a.Modalias(ctx); err != nil {
		return err
	} else if ok {
		fmt.Printf("  Modalias:            %s\n", m)
	}
	if uuids, ok, err := a.UUIDs(ctx); err != nil {
		return err
	} else if ok {
		for _, u := range uuids {
			fmt.Printf("  UUID:                %s\n", u)
		}
	}

	// Adapters without LE support do not export the advertising manager.
	active, err := a.ActiveAdvertisingInstances(ctx)
	if err != nil {
		fmt.Printf("  Advertising:         unavailable (%v)\n", err)
		return nil
	}
	supported, err := a.SupportedAdvertisingInstances(ctx)
	if err != nil {
		return err
	}
	includes, err := a.SupportedAdvertisingIncludes(ctx)
	if err != nil {
		return err
	}
	channels, err := a.SupportedAdvertisingSecondaryChannels(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Advertising:         %d/%d instances\n", active, supported)
	fmt.Printf("  Includes:            %v\n", includes)
	fmt.Printf("  Secondary channels:  %v\n", channels)
	if caps, ok, err := a.SupportedAdvertisingCapabilities(ctx); err != nil {
		return err
	} else if ok {
		fmt.Printf("  Capabilities:        adv %d bytes, scan response %d bytes, tx power %d..%d dBm\n",
			caps.MaxAdvertisingDataLength, caps.MaxScanResponseLength, caps.MinTxPower, caps.MaxTxPower)
	}
	if features, ok, err := a.SupportedAdvertisingFeatures(ctx); err != nil {
		return err
	} else if ok {
		fmt.Printf("  Features:            %v\n", features)
	}
	return nil
}

func listDevices(ctx context.Context, a *bluez.Adapter) error {
	addrs, err := a.DeviceAddresses(ctx)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		dev, err := a.Device(addr)
		if err != nil {
			return err
		}
		alias, err := dev.Alias(ctx)
		if err != nil {
			return err
		}
		connected, err := dev.IsConnected(ctx)
		if err != nil {
			return err
		}
		state := ""
		if connected {
			state = "connected"
		}
		fmt.Printf("%s\t%s\t%s\n", addr, alias, state)
	}
	return nil
}

func setPower(ctx context.Context, a *bluez.Adapter, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: bluetalk power on|off")
	}
	return a.SetPowered(ctx, args[0] == "on")
}

// scan prints matching devices and adapter property changes until the scan
// duration elapses or the process is interrupted.
func scan(ctx context.Context, log logrus.FieldLogger, a *bluez.Adapter, cfg ScanConfig) error {
	filter, err := cfg.Filter()
	if err != nil {
		return err
	}
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	changes, err := a.Changes(ctx)
	if err != nil {
		return err
	}
	found := make(chan bluez.ScanResult)

	g.Go(func() error {
		defer close(found)
		err := bluez.Scan(ctx, a, filter, found)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		for ch := range changes {
			log.WithFields(logrus.Fields{
				"adapter":  ch.Name,
				"property": ch.Property.Kind.String(),
			}).Infof("changed to %v", ch.Property.Value)
		}
		return nil
	})

	g.Go(func() error {
		for res := range found {
			rssi := "?"
			if res.HasRSSI {
				rssi = fmt.Sprintf("%d dBm", res.RSSI)
			}
			fmt.Printf("%s\t%s\t%s\t%v\n", res.Address, rssi, res.Name, res.UUIDs)
		}
		return nil
	})

	return g.Wait()
}
