package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"bluetalk/bluez"
)

// Config file locations, in priority order:
//  1. $BLUETALK_CONFIG
//  2. ./bluetalk.yaml
//  3. ~/.config/bluetalk/config.yaml
//  4. /etc/bluetalk/config.yaml
const configEnv = "BLUETALK_CONFIG"

const defaultScanDuration = 30 * time.Second

type Config struct {
	// Adapter is the adapter name, e.g. hci0. Empty selects the first
	// adapter.
	Adapter string     `yaml:"adapter"`
	Scan    ScanConfig `yaml:"scan"`
	Log     LogConfig  `yaml:"log"`
}

type ScanConfig struct {
	// Duration bounds a scan; unset means 30s. Only the --duration flag
	// can ask for an unbounded scan, with 0.
	Duration      time.Duration `yaml:"duration"`
	Transport     string        `yaml:"transport"`
	UUIDs         []string      `yaml:"uuids"`
	RSSI          *int16        `yaml:"rssi"`
	Pathloss      *uint16       `yaml:"pathloss"`
	Pattern       *string       `yaml:"pattern"`
	DuplicateData *bool         `yaml:"duplicate_data"`
	Discoverable  bool          `yaml:"discoverable"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the config file at path, or the first one found in the
// standard locations when path is empty. It returns the path actually read,
// empty when defaults were used.
func LoadConfig(path string) (*Config, string, error) {
	if path == "" {
		path = findConfigPath()
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, path, nil
}

func findConfigPath() string {
	if p := os.Getenv(configEnv); p != "" {
		return p
	}
	candidates := []string{"bluetalk.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "bluetalk", "config.yaml"))
	}
	candidates = append(candidates, "/etc/bluetalk/config.yaml")
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyDefaults() {
	if c.Scan.Duration == 0 {
		c.Scan.Duration = defaultScanDuration
	}
	if c.Scan.Transport == "" {
		c.Scan.Transport = bluez.TransportAuto.String()
	}
	if c.Scan.DuplicateData == nil {
		dup := true
		c.Scan.DuplicateData = &dup
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Filter converts the scan settings into a discovery filter.
func (c *ScanConfig) Filter() (bluez.DiscoveryFilter, error) {
	f := bluez.DefaultDiscoveryFilter()
	transport, err := bluez.ParseDiscoveryTransport(c.Transport)
	if err != nil {
		return f, err
	}
	f.Transport = transport
	for _, s := range c.UUIDs {
		u, err := uuid.Parse(s)
		if err != nil {
			return f, fmt.Errorf("scan uuid %q: %w", s, err)
		}
		f.UUIDs = append(f.UUIDs, u)
	}
	f.RSSI = c.RSSI
	f.Pathloss = c.Pathloss
	f.Pattern = c.Pattern
	if c.DuplicateData != nil {
		f.DuplicateData = *c.DuplicateData
	}
	f.Discoverable = c.Discoverable
	return f, nil
}

// flagValues holds command-line overrides; only flags the user set replace
// config file values.
type flagValues struct {
	config        string
	adapter       string
	duration      time.Duration
	transport     string
	uuids         []string
	rssi          int16
	pathloss      uint16
	pattern       string
	duplicateData bool
	discoverable  bool
	logLevel      string
}

func registerFlags(fs *pflag.FlagSet) *flagValues {
	v := &flagValues{}
	fs.StringVarP(&v.config, "config", "c", "", "config file (default: $"+configEnv+", ./bluetalk.yaml, ~/.config/bluetalk/config.yaml)")
	fs.StringVarP(&v.adapter, "adapter", "a", "", "adapter name, e.g. hci0 (default: first adapter)")
	fs.DurationVarP(&v.duration, "duration", "d", defaultScanDuration, "scan duration, 0 to scan until interrupted")
	fs.StringVar(&v.transport, "transport", "auto", "scan transport: auto, bredr or le")
	fs.StringSliceVar(&v.uuids, "uuid", nil, "only report devices advertising this service UUID (repeatable)")
	fs.Int16Var(&v.rssi, "rssi", 0, "minimum RSSI in dBm")
	fs.Uint16Var(&v.pathloss, "pathloss", 0, "maximum path loss in dB")
	fs.StringVar(&v.pattern, "pattern", "", "address or name prefix")
	fs.BoolVar(&v.duplicateData, "duplicate-data", true, "report duplicate advertisement data")
	fs.BoolVar(&v.discoverable, "discoverable", false, "make the adapter discoverable while scanning")
	fs.StringVar(&v.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	return v
}

// apply overlays the flags that were set on the command line onto cfg.
func (v *flagValues) apply(fs *pflag.FlagSet, cfg *Config) {
	if fs.Changed("adapter") {
		cfg.Adapter = v.adapter
	}
	if fs.Changed("duration") {
		cfg.Scan.Duration = v.duration
	}
	if fs.Changed("transport") {
		cfg.Scan.Transport = v.transport
	}
	if fs.Changed("uuid") {
		cfg.Scan.UUIDs = v.uuids
	}
	if fs.Changed("rssi") {
		rssi := v.rssi
		cfg.Scan.RSSI = &rssi
	}
	if fs.Changed("pathloss") {
		pathloss := v.pathloss
		cfg.Scan.Pathloss = &pathloss
	}
	if fs.Changed("pattern") {
		pattern := v.pattern
		cfg.Scan.Pattern = &pattern
	}
	if fs.Changed("duplicate-data") {
		dup := v.duplicateData
		cfg.Scan.DuplicateData = &dup
	}
	if fs.Changed("discoverable") {
		cfg.Scan.Discoverable = v.discoverable
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = v.logLevel
	}
}
