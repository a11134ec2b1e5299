package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"bluetalk/bluez"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bluetalk.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := DefaultConfig()
		if cfg.Scan.Duration != defaultScanDuration || cfg.Scan.Transport != "auto" || cfg.Log.Level != "info" {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.Scan.DuplicateData == nil || !*cfg.Scan.DuplicateData {
			t.Error("duplicate data should default to true")
		}
	})

	t.Run("file", func(t *testing.T) {
		path := writeConfig(t, `
adapter: hci1
scan:
  duration: 10s
  transport: le
  uuids:
    - 0000180d-0000-1000-8000-00805f9b34fb
  rssi: -70
  pattern: Polar
  duplicate_data: false
log:
  level: debug
`)
		cfg, got, err := LoadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if got != path {
			t.Errorf("path = %s", got)
		}
		if cfg.Adapter != "hci1" || cfg.Scan.Duration != 10*time.Second || cfg.Log.Level != "debug" {
			t.Errorf("got %+v", cfg)
		}
		if cfg.Scan.RSSI == nil || *cfg.Scan.RSSI != -70 {
			t.Errorf("rssi = %v", cfg.Scan.RSSI)
		}
		if cfg.Scan.Pathloss != nil {
			t.Errorf("pathloss = %v, want unset", *cfg.Scan.Pathloss)
		}

		f, err := cfg.Scan.Filter()
		if err != nil {
			t.Fatal(err)
		}
		if f.Transport != bluez.TransportLE || f.DuplicateData || f.Discoverable {
			t.Errorf("filter = %+v", f)
		}
		if len(f.UUIDs) != 1 || f.UUIDs[0] != uuid.MustParse("0000180d-0000-1000-8000-00805f9b34fb") {
			t.Errorf("uuids = %v", f.UUIDs)
		}
		if f.Pattern == nil || *f.Pattern != "Polar" {
			t.Errorf("pattern = %v", f.Pattern)
		}
	})

	t.Run("environment", func(t *testing.T) {
		path := writeConfig(t, "adapter: hci3\n")
		t.Setenv(configEnv, path)
		cfg, got, err := LoadConfig("")
		if err != nil {
			t.Fatal(err)
		}
		if got != path || cfg.Adapter != "hci3" {
			t.Errorf("loaded %s: %+v", got, cfg)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, _, err := LoadConfig(writeConfig(t, "scan: [1, 2")); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestScanFilterErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Transport = "usb"
	if _, err := cfg.Scan.Filter(); err == nil {
		t.Error("expected transport error")
	}

	cfg = DefaultConfig()
	cfg.Scan.UUIDs = []string{"heart-rate"}
	if _, err := cfg.Scan.Filter(); err == nil {
		t.Error("expected uuid error")
	}
}

func TestFlagOverrides(t *testing.T) {
	path := writeConfig(t, `
adapter: hci1
scan:
  transport: le
  rssi: -70
`)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fv := registerFlags(fs)
	if err := fs.Parse([]string{"--config", path, "--adapter", "hci0", "--rssi=-50", "--duration", "0", "--duplicate-data=false", "scan"}); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadConfig(fv.config)
	if err != nil {
		t.Fatal(err)
	}
	fv.apply(fs, cfg)

	if cfg.Adapter != "hci0" {
		t.Errorf("adapter = %s", cfg.Adapter)
	}
	if cfg.Scan.Transport != "le" {
		t.Errorf("unset flag overrode transport: %s", cfg.Scan.Transport)
	}
	if cfg.Scan.RSSI == nil || *cfg.Scan.RSSI != -50 {
		t.Errorf("rssi = %v", cfg.Scan.RSSI)
	}
	if cfg.Scan.Duration != 0 {
		t.Errorf("duration = %s", cfg.Scan.Duration)
	}
	if *cfg.Scan.DuplicateData {
		t.Error("duplicate data flag ignored")
	}
	if cfg.Scan.Pattern != nil {
		t.Error("unset pattern flag applied")
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "scan" {
		t.Errorf("args = %v", args)
	}
}
