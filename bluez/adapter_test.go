package bluez

import (
	"context"
	"errors"
	"slices"
	"testing"

	"bluetalk/dbus"
)

func populate(bus *fakeBus) {
	bus.addObject("/org", dbus.ObjectManagerInterface)
	bus.addObject("/org/bluez", "org.bluez.AgentManager1", "org.bluez.ProfileManager1")
	bus.addObject("/org/bluez/hci1", adapterInterface, advertisingManagerInterface)
	bus.addObject("/org/bluez/hci0", adapterInterface)
	bus.addObject("/org/bluez/hci0/dev_11_22_33_44_55_66", deviceInterface)
	bus.addObject("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", deviceInterface)
	bus.addObject("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service0001", "org.bluez.GattService1")
	bus.addObject("/org/bluez/hci1/dev_00_00_00_00_00_01", deviceInterface)
}

func TestAdapterNames(t *testing.T) {
	ctx := context.Background()
	bus := newFakeBus()
	populate(bus)
	s := newTestSession(bus)

	names, err := s.AdapterNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"hci0", "hci1"}) {
		t.Errorf("AdapterNames() = %v", names)
	}

	a, err := s.DefaultAdapter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name() != "hci0" || a.Path() != "/org/bluez/hci0" {
		t.Errorf("DefaultAdapter() = %s", a)
	}

	t.Run("no adapters", func(t *testing.T) {
		if _, err := newTestSession(newFakeBus()).DefaultAdapter(ctx); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := s.Adapter("hci0/dev")
		var ne *InvalidNameError
		if !errors.As(err, &ne) || ne.Name != "hci0/dev" {
			t.Errorf("expected InvalidNameError, got %v", err)
		}
	})
}

func TestDeviceAddresses(t *testing.T) {
	ctx := context.Background()
	bus := newFakeBus()
	populate(bus)
	s := newTestSession(bus)

	hci0, _ := s.Adapter("hci0")
	addrs, err := hci0.DeviceAddresses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Address{mustAddress("11:22:33:44:55:66"), mustAddress("AA:BB:CC:DD:EE:FF")}
	if !slices.Equal(addrs, want) {
		t.Errorf("hci0 devices = %v, want %v", addrs, want)
	}

	hci2, _ := s.Adapter("hci2")
	addrs, err = hci2.DeviceAddresses(ctx)
	if err != nil || len(addrs) != 0 {
		t.Errorf("hci2 devices = %v, %v", addrs, err)
	}
}

func TestListObjects(t *testing.T) {
	bus := newFakeBus()
	populate(bus)
	objects, err := ListObjects(context.Background(), bus)
	if err != nil {
		t.Fatal(err)
	}
	got := objects.Implementing(deviceInterface)
	want := []dbus.ObjectPath{
		"/org/bluez/hci0/dev_11_22_33_44_55_66",
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF",
		"/org/bluez/hci1/dev_00_00_00_00_00_01",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Implementing(Device1) = %v", got)
	}
	if names := objects["/org/bluez"].Names(); !slices.Equal(names, []string{"org.bluez.AgentManager1", "org.bluez.ProfileManager1"}) {
		t.Errorf("Names() = %v", names)
	}
}

func TestRemoveDevice(t *testing.T) {
	bus, a := testAdapter(t)
	if err := a.RemoveDevice(context.Background(), mustAddress("AA:BB:CC:DD:EE:FF")); err != nil {
		t.Fatal(err)
	}
	calls := bus.callsTo(adapterInterface + ".RemoveDevice")
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}
	if calls[0].path != a.Path() {
		t.Errorf("sent to %s", calls[0].path)
	}
	if arg, ok := calls[0].args[0].(dbus.ObjectPath); !ok || arg != hci0Device {
		t.Errorf("argument = %#v", calls[0].args[0])
	}

	t.Run("daemon error", func(t *testing.T) {
		bus, a := testAdapter(t)
		bus.handle(adapterInterface+".RemoveDevice", func(dbus.ObjectPath, []any) ([]any, error) {
			return nil, dbus.Error{Name: "org.bluez.Error.DoesNotExist"}
		})
		err := a.RemoveDevice(context.Background(), mustAddress("AA:BB:CC:DD:EE:FF"))
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		var de dbus.Error
		if !errors.As(err, &de) || de.Name != "org.bluez.Error.DoesNotExist" {
			t.Errorf("daemon error not preserved: %v", err)
		}
	})
}

func TestConnectDevice(t *testing.T) {
	ctx := context.Background()
	addr := mustAddress("AA:BB:CC:DD:EE:FF")
	reply := func(p dbus.ObjectPath) func(dbus.ObjectPath, []any) ([]any, error) {
		return func(dbus.ObjectPath, []any) ([]any, error) { return []any{p}, nil }
	}

	t.Run("without address type", func(t *testing.T) {
		bus, a := testAdapter(t)
		bus.handle(adapterInterface+".ConnectDevice", reply(hci0Device))
		dev, err := a.ConnectDevice(ctx, addr, nil)
		if err != nil {
			t.Fatal(err)
		}
		if dev.Path() != hci0Device || dev.Address() != addr || dev.AdapterName() != "hci0" {
			t.Errorf("got %s", dev)
		}
		args := bus.callsTo(adapterInterface + ".ConnectDevice")[0].args[0].(map[string]dbus.Variant)
		if len(args) != 1 || args["Address"].Value() != "AA:BB:CC:DD:EE:FF" {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("with address type", func(t *testing.T) {
		bus, a := testAdapter(t)
		bus.handle(adapterInterface+".ConnectDevice", reply(hci0Device))
		typ := AddressRandom
		if _, err := a.ConnectDevice(ctx, addr, &typ); err != nil {
			t.Fatal(err)
		}
		args := bus.callsTo(adapterInterface + ".ConnectDevice")[0].args[0].(map[string]dbus.Variant)
		if len(args) != 2 || args["AddressType"].Value() != "random" {
			t.Errorf("args = %v", args)
		}
	})

	t.Run("reply for another device", func(t *testing.T) {
		bus, a := testAdapter(t)
		bus.handle(adapterInterface+".ConnectDevice", reply(hci1Device))
		_, err := a.ConnectDevice(ctx, addr, nil)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
	})

	t.Run("malformed reply", func(t *testing.T) {
		bus, a := testAdapter(t)
		bus.handle(adapterInterface+".ConnectDevice", func(dbus.ObjectPath, []any) ([]any, error) {
			return []any{uint32(1)}, nil
		})
		_, err := a.ConnectDevice(ctx, addr, nil)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
	})
}

func TestDeviceProperties(t *testing.T) {
	ctx := context.Background()
	bus, a := testAdapter(t)
	dev, err := a.Device(mustAddress("AA:BB:CC:DD:EE:FF"))
	if err != nil {
		t.Fatal(err)
	}
	bus.setProp(hci0Device, deviceInterface, "Alias", "AA-BB-CC-DD-EE-FF")
	bus.setProp(hci0Device, deviceInterface, "AddressType", "random")
	bus.setProp(hci0Device, deviceInterface, "Appearance", uint16(0x03c1))
	bus.setProp(hci0Device, deviceInterface, "Paired", false)

	if _, ok, err := dev.Name(ctx); ok || err != nil {
		t.Errorf("Name: ok=%v err=%v, want absent", ok, err)
	}
	if alias, err := dev.Alias(ctx); err != nil || alias != "AA-BB-CC-DD-EE-FF" {
		t.Errorf("Alias = %q, %v", alias, err)
	}
	if typ, err := dev.AddressType(ctx); err != nil || typ != AddressRandom {
		t.Errorf("AddressType = %v, %v", typ, err)
	}
	if app, ok, err := dev.Appearance(ctx); err != nil || !ok || app != 0x03c1 {
		t.Errorf("Appearance = %#x, %v, %v", app, ok, err)
	}
	if paired, err := dev.IsPaired(ctx); err != nil || paired {
		t.Errorf("IsPaired = %v, %v", paired, err)
	}

	if err := dev.SetTrusted(ctx, true); err != nil {
		t.Fatal(err)
	}
	if trusted, err := dev.IsTrusted(ctx); err != nil || !trusted {
		t.Errorf("IsTrusted = %v, %v", trusted, err)
	}
	if err := deviceConnectedProp.Set(ctx, bus, dev.Path(), true); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Connected is writable: %v", err)
	}

	if err := dev.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dev.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}
	if len(bus.callsTo(deviceInterface+".Connect")) != 1 || len(bus.callsTo(deviceInterface+".Disconnect")) != 1 {
		t.Error("Connect/Disconnect not sent")
	}
}
