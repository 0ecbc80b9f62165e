package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.PollInterval != 500*time.Millisecond {
		t.Errorf("poll_interval = %v, want 500ms", cfg.Device.PollInterval)
	}
	if cfg.Patrol.SettleDelay != time.Second {
		t.Errorf("settle_delay = %v, want 1s", cfg.Patrol.SettleDelay)
	}
	if cfg.Patrol.AbortOnFailure {
		t.Error("abort_on_failure should default to false")
	}
	if cfg.Grid.Cols != 7 || cfg.Grid.Rows != 10 {
		t.Errorf("grid = %dx%d, want 7x10", cfg.Grid.Cols, cfg.Grid.Rows)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridpatrol.yaml")
	yaml := `
device:
  base_url: http://10.0.0.5:5000
  poll_interval: 250ms
patrol:
  x_max: 3
  abort_on_failure: true
indicator:
  tags:
    LM1: 1
    LM2: 2
messaging:
  backend: kafka
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device.BaseURL != "http://10.0.0.5:5000" || cfg.Device.PollInterval != 250*time.Millisecond {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Patrol.XMax != 3 || !cfg.Patrol.AbortOnFailure {
		t.Errorf("patrol = %+v", cfg.Patrol)
	}
	// Untouched fields keep defaults.
	if cfg.Patrol.YMax != 9 || cfg.Device.MaxPollDuration != 10*time.Minute {
		t.Errorf("defaults lost: %+v %+v", cfg.Patrol, cfg.Device)
	}
	if cfg.Indicator.Tags["LM2"] != 2 {
		t.Errorf("tags = %v", cfg.Indicator.Tags)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"x_max beyond grid": "patrol:\n  x_max: 9\n",
		"bad backend":       "messaging:\n  backend: amqp\n",
		"zero interval":     "device:\n  poll_interval: 0s\n",
		"not yaml":          "device: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			os.WriteFile(path, []byte(body), 0644)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	cfg := Defaults()
	cfg.Patrol.SettleDelay = 2 * time.Second
	cfg.Indicator.Tags["LM4"] = 4
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Patrol.SettleDelay != 2*time.Second || got.Indicator.Tags["LM4"] != 4 {
		t.Errorf("round trip lost values: %+v", got.Patrol)
	}
}
