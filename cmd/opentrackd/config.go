package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the opentrackd daemon.
//
// The config file is the primary configuration surface; flags exist for
// small overrides and for environments where a file is awkward. Defaults and
// validation are centralized here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// UDP source for the opentrack feed
	Listen ListenConfig `yaml:"listen"`

	// Sampling loop behavior
	Loop LoopConfig `yaml:"loop"`

	// Per-axis low-pass smoothing
	Smoothing SmoothingConfig `yaml:"smoothing"`

	// Binding table and quantization knobs
	Mapping MappingConfig `yaml:"mapping"`

	// Auto-centering
	Center CenterConfig `yaml:"center"`

	// Virtual device identity
	Device DeviceConfig `yaml:"device"`

	// Optional websocket state feed
	Monitor MonitorConfig `yaml:"monitor"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type LoopConfig struct {
	// WaitSeconds is the maximum time to poll for a new datagram while
	// output is still in flight. The minimum send interval is half of it.
	WaitSeconds float64 `yaml:"wait_seconds"`
	Debug       bool    `yaml:"debug"`
}

type SmoothingConfig struct {
	// Window is the number of recent raw values the filter spans.
	// 0 or 1 disables smoothing.
	Window int `yaml:"window"`
	// Alpha in (0,1]; smaller smooths more but settles slower.
	Alpha float64 `yaml:"alpha"`
}

type MappingConfig struct {
	// Bindings assigns each pose field (x,y,z,yaw,pitch,roll) an output
	// catalog index, 0 to discard, with an optional seventh index for the
	// center-fire target.
	Bindings string `yaml:"bindings"`
	// DeadZone is the neutral band, in source units, for hat and button
	// quantization. 0 degenerates to plain sign.
	DeadZone float64 `yaml:"dead_zone"`
	// Scale is the sensitivity factor for relative (mouse) outputs.
	Scale float64 `yaml:"scale"`
	// Training substitutes logging dummies for every bound target.
	Training bool `yaml:"training"`
}

type CenterConfig struct {
	// Zone is the tolerance band around the captured reference pose.
	// 0 disables auto-centering.
	Zone float64 `yaml:"zone"`
	// DwellSeconds is how long all monitored axes must stay in the zone.
	DwellSeconds float64 `yaml:"dwell_seconds"`
	// Policy is "dwell" or "release".
	Policy string `yaml:"policy"`
	// Axes lists the monitored pose fields. Empty means all but z.
	Axes []string `yaml:"axes,omitempty"`
}

type DeviceConfig struct {
	Name string `yaml:"name"`
}

type MonitorConfig struct {
	// Port for the websocket state feed; 0 disables it.
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Listen: ListenConfig{
			Address: defaultListenAddress,
			Port:    defaultListenPort,
		},
		Loop: LoopConfig{
			WaitSeconds: defaultWaitSeconds,
		},
		Smoothing: SmoothingConfig{
			Window: defaultSmoothWindow,
			Alpha:  defaultSmoothAlpha,
		},
		Mapping: MappingConfig{
			Bindings: "1,2,3,4,5,6,0",
			DeadZone: defaultDeadZone,
			Scale:    defaultScale,
		},
		Center: CenterConfig{
			Zone:         defaultCenterZone,
			DwellSeconds: defaultCenterDwell,
			Policy:       string(centerPolicyDwell),
		},
		Device: DeviceConfig{
			Name: "opentrackd",
		},
		Monitor: MonitorConfig{
			Port: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of defaults.
// Unknown fields are rejected (helps catch typos).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies flag values on top of a loaded config. Each override
// is only applied when its pointer is non-nil.
type FlagOverrides struct {
	ListenAddress *string
	ListenPort    *int

	WaitSeconds *float64
	Debug       *bool

	SmoothWindow *int
	SmoothAlpha  *float64

	Bindings *string
	DeadZone *float64
	Scale    *float64
	Training *bool

	CenterZone         *float64
	CenterDwellSeconds *float64
	CenterPolicy       *string

	DeviceName  *string
	MonitorPort *int

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored; non-nil
// values are applied even when they are zero values.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.ListenAddress != nil {
		cfg.Listen.Address = *o.ListenAddress
	}
	if o.ListenPort != nil {
		cfg.Listen.Port = *o.ListenPort
	}
	if o.WaitSeconds != nil {
		cfg.Loop.WaitSeconds = *o.WaitSeconds
	}
	if o.Debug != nil {
		cfg.Loop.Debug = *o.Debug
	}
	if o.SmoothWindow != nil {
		cfg.Smoothing.Window = *o.SmoothWindow
	}
	if o.SmoothAlpha != nil {
		cfg.Smoothing.Alpha = *o.SmoothAlpha
	}
	if o.Bindings != nil {
		cfg.Mapping.Bindings = *o.Bindings
	}
	if o.DeadZone != nil {
		cfg.Mapping.DeadZone = *o.DeadZone
	}
	if o.Scale != nil {
		cfg.Mapping.Scale = *o.Scale
	}
	if o.Training != nil {
		cfg.Mapping.Training = *o.Training
	}
	if o.CenterZone != nil {
		cfg.Center.Zone = *o.CenterZone
	}
	if o.CenterDwellSeconds != nil {
		cfg.Center.DwellSeconds = *o.CenterDwellSeconds
	}
	if o.CenterPolicy != nil {
		cfg.Center.Policy = *o.CenterPolicy
	}
	if o.DeviceName != nil {
		cfg.Device.Name = *o.DeviceName
	}
	if o.MonitorPort != nil {
		cfg.Monitor.Port = *o.MonitorPort
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Intended to be called after defaults + file + overrides are applied.
// Every failure here is fatal at startup, before the loop begins.
func (c *Config) Validate() error {
	if c.Listen.Address == "" {
		return errors.New("listen.address must not be empty")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return errors.New("listen.port must be between 1 and 65535")
	}

	if c.Loop.WaitSeconds <= 0 {
		return errors.New("loop.wait_seconds must be > 0")
	}

	if c.Smoothing.Window < 0 {
		return errors.New("smoothing.window must be >= 0")
	}
	if c.Smoothing.Alpha <= 0 || c.Smoothing.Alpha > 1 {
		return errors.New("smoothing.alpha must be in (0, 1]")
	}

	if c.Mapping.DeadZone < 0 {
		return errors.New("mapping.dead_zone must be >= 0")
	}
	if c.Mapping.Scale <= 0 {
		return errors.New("mapping.scale must be > 0")
	}
	if _, _, err := parseBindingCSV(c.Mapping.Bindings); err != nil {
		return fmt.Errorf("mapping.bindings: %w", err)
	}

	if c.Center.Zone < 0 {
		return errors.New("center.zone must be >= 0")
	}
	if c.Center.DwellSeconds < 0 {
		return errors.New("center.dwell_seconds must be >= 0")
	}
	switch centerPolicy(c.Center.Policy) {
	case centerPolicyDwell, centerPolicyRelease:
	default:
		return fmt.Errorf("center.policy must be %q or %q", centerPolicyDwell, centerPolicyRelease)
	}
	for i, name := range c.Center.Axes {
		if _, err := poseFieldByName(name); err != nil {
			return fmt.Errorf("center.axes[%d]: %w", i, err)
		}
	}

	if c.Device.Name == "" {
		return errors.New("device.name must not be empty")
	}
	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return errors.New("monitor.port must be between 0 and 65535")
	}
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// monitoredFields resolves the configured center axes. An empty list keeps
// watching everything except the z (depth) offset, since leaning toward the
// screen should not break centering.
func (c *Config) monitoredFields() ([]poseField, error) {
	if len(c.Center.Axes) == 0 {
		return []poseField{fieldX, fieldY, fieldYaw, fieldPitch, fieldRoll}, nil
	}
	fields := make([]poseField, 0, len(c.Center.Axes))
	for _, name := range c.Center.Axes {
		f, err := poseFieldByName(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}
