package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opentrackd.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// TestDefaultConfig tests that the defaults validate and match the
// documented values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if cfg.Listen.Address != "127.0.0.1" || cfg.Listen.Port != 5005 {
		t.Errorf("expected default listen 127.0.0.1:5005, got %s:%d", cfg.Listen.Address, cfg.Listen.Port)
	}
	if cfg.Smoothing.Window != 100 || cfg.Smoothing.Alpha != 0.1 {
		t.Errorf("expected default smoothing 100/0.1, got %d/%g", cfg.Smoothing.Window, cfg.Smoothing.Alpha)
	}
	if cfg.Mapping.Bindings != "1,2,3,4,5,6,0" {
		t.Errorf("expected default full-stick bindings, got %q", cfg.Mapping.Bindings)
	}
	if cfg.Center.Policy != string(centerPolicyDwell) {
		t.Errorf("expected default dwell policy, got %q", cfg.Center.Policy)
	}
	if cfg.Monitor.Port != 0 {
		t.Errorf("expected monitor feed disabled by default, got port %d", cfg.Monitor.Port)
	}
}

// TestLoadConfigFile_MergesOverDefaults tests that unspecified sections keep
// their defaults
func TestLoadConfigFile_MergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
listen:
  port: 4242
mapping:
  bindings: "9,0,1,4,5,0,12"
center:
  policy: release
  axes: [yaw, pitch]
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen.Port != 4242 {
		t.Errorf("expected port 4242, got %d", cfg.Listen.Port)
	}
	if cfg.Listen.Address != "127.0.0.1" {
		t.Errorf("expected default address to survive, got %q", cfg.Listen.Address)
	}
	if cfg.Mapping.Bindings != "9,0,1,4,5,0,12" {
		t.Errorf("expected bindings override, got %q", cfg.Mapping.Bindings)
	}
	if cfg.Center.Policy != "release" {
		t.Errorf("expected release policy, got %q", cfg.Center.Policy)
	}
	if cfg.Smoothing.Window != 100 {
		t.Errorf("expected default smoothing window to survive, got %d", cfg.Smoothing.Window)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config failed validation: %v", err)
	}
}

// TestLoadConfigFile_RejectsUnknownFields tests typo detection
func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `
listen:
  prot: 4242
`)
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

// TestLoadConfigFile_RejectsTrailingDocument tests the multi-document guard
func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfigFile(t, `
listen:
  port: 4242
---
{}
`)
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected trailing document to be rejected")
	}
}

// TestLoadConfigFile_MissingFile tests the error path for a bad path
func TestLoadConfigFile_MissingFile(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadConfigFile(""); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestFlagOverrides_Apply tests that only non-nil overrides are applied,
// including zero values
func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	port := 7777
	zone := 0.0 // explicit zero must win over the default
	training := true
	o := FlagOverrides{
		ListenPort: &port,
		CenterZone: &zone,
		Training:   &training,
	}
	o.Apply(&cfg)

	if cfg.Listen.Port != 7777 {
		t.Errorf("expected port override 7777, got %d", cfg.Listen.Port)
	}
	if cfg.Center.Zone != 0 {
		t.Errorf("expected explicit zero zone, got %g", cfg.Center.Zone)
	}
	if !cfg.Mapping.Training {
		t.Error("expected training override")
	}
	// Untouched fields keep their values.
	if cfg.Listen.Address != "127.0.0.1" {
		t.Errorf("expected address untouched, got %q", cfg.Listen.Address)
	}
	if cfg.Smoothing.Alpha != 0.1 {
		t.Errorf("expected alpha untouched, got %g", cfg.Smoothing.Alpha)
	}
}

// TestConfig_Validate_Rejects tests each validation failure in isolation
func TestConfig_Validate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Listen.Address = "" }},
		{"port too low", func(c *Config) { c.Listen.Port = 0 }},
		{"port too high", func(c *Config) { c.Listen.Port = 70000 }},
		{"zero wait", func(c *Config) { c.Loop.WaitSeconds = 0 }},
		{"negative window", func(c *Config) { c.Smoothing.Window = -1 }},
		{"zero alpha", func(c *Config) { c.Smoothing.Alpha = 0 }},
		{"alpha above one", func(c *Config) { c.Smoothing.Alpha = 1.5 }},
		{"negative dead zone", func(c *Config) { c.Mapping.DeadZone = -1 }},
		{"zero scale", func(c *Config) { c.Mapping.Scale = 0 }},
		{"bad bindings", func(c *Config) { c.Mapping.Bindings = "1,2" }},
		{"negative zone", func(c *Config) { c.Center.Zone = -1 }},
		{"negative dwell", func(c *Config) { c.Center.DwellSeconds = -1 }},
		{"bad policy", func(c *Config) { c.Center.Policy = "sometimes" }},
		{"bad center axis", func(c *Config) { c.Center.Axes = []string{"heave"} }},
		{"empty device name", func(c *Config) { c.Device.Name = "" }},
		{"negative monitor port", func(c *Config) { c.Monitor.Port = -1 }},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

// TestConfig_MonitoredFields tests the default center axis set and the
// configured override
func TestConfig_MonitoredFields(t *testing.T) {
	cfg := DefaultConfig()

	fields, err := cfg.monitoredFields()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Depth movement toward the screen must not break centering.
	want := []poseField{fieldX, fieldY, fieldYaw, fieldPitch, fieldRoll}
	if len(fields) != len(want) {
		t.Fatalf("expected %d default fields, got %d", len(want), len(fields))
	}
	for i, f := range fields {
		if f != want[i] {
			t.Errorf("field %d: expected %v, got %v", i, want[i], f)
		}
	}

	cfg.Center.Axes = []string{"yaw", "pitch"}
	fields, err = cfg.monitoredFields()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 2 || fields[0] != fieldYaw || fields[1] != fieldPitch {
		t.Errorf("expected [yaw pitch], got %v", fields)
	}

	cfg.Center.Axes = []string{"bogus"}
	if _, err := cfg.monitoredFields(); err == nil {
		t.Error("expected error for unknown axis name")
	}
}

// TestParseLogLevel tests level parsing including the warning alias
func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"error", "warn", "warning", "info", "debug", "INFO", "Debug"} {
		if _, err := parseLogLevel(s); err != nil {
			t.Errorf("unexpected error for %q: %v", s, err)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
