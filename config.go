package fidokey

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// Config is the simulator's startup configuration: everything that is
// hardware-fixed in the real token (region sizes, wire opcodes) stays
// a constant; everything that depends on the deployment (which
// storage backend, which serial device, how fast the confirmation
// window runs in a bench rig) lives here.
type Config struct {
	// StoreKind selects the credential Store backend: "flat" (the
	// default, byte-region layout per spec §4.4) or "sqlite".
	StoreKind string `json:"store_kind"`
	// StorePath is a directory (flat) or DSN (sqlite).
	StorePath string `json:"store_path"`

	// SerialDevice is a POSIX tty path. Empty means the Dispatcher is
	// driven over a PipeTransport instead (e.g. for a co-located host
	// simulator or tests).
	SerialDevice string `json:"serial_device,omitempty"`
	// BaudRate is only consulted when SerialDevice is set.
	BaudRate uint32 `json:"baud_rate,omitempty"`

	// GateTiming overrides the Confirmation Gate's window, phase, and
	// sample cadence. Zero fields fall back to DefaultGateTiming.
	GateTiming GateTimingConfig `json:"gate_timing,omitempty"`
}

// GateTimingConfig is the JSON-friendly mirror of GateTiming; durations
// are expressed in milliseconds since JSON has no native duration type.
type GateTimingConfig struct {
	PhaseDurationMS  int64 `json:"phase_duration_ms,omitempty"`
	NumPhases        int   `json:"num_phases,omitempty"`
	SampleIntervalMS int64 `json:"sample_interval_ms,omitempty"`
	SamplesPerPhase  int   `json:"samples_per_phase,omitempty"`
}

// DefaultConfig returns the configuration a fresh device boots with:
// the flat on-disk store and the spec-default confirmation window.
func DefaultConfig() Config {
	return Config{
		StoreKind:  "flat",
		StorePath:  "fidokey-store",
		GateTiming: GateTimingConfig{},
	}
}

// Resolve turns the JSON-friendly GateTimingConfig into a GateTiming,
// substituting DefaultGateTiming's values for any field left at zero.
func (c GateTimingConfig) Resolve() GateTiming {
	t := DefaultGateTiming()
	if c.PhaseDurationMS > 0 {
		t.PhaseDuration = time.Duration(c.PhaseDurationMS) * time.Millisecond
	}
	if c.NumPhases > 0 {
		t.NumPhases = c.NumPhases
	}
	if c.SampleIntervalMS > 0 {
		t.SampleInterval = time.Duration(c.SampleIntervalMS) * time.Millisecond
	}
	if c.SamplesPerPhase > 0 {
		t.SamplesPerPhase = c.SamplesPerPhase
	}
	return t
}

// LoadConfig reads a JSON-with-comments config file at path, merging it
// over DefaultConfig. A missing file is not an error: the caller gets
// the defaults back untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: invalid JSONC: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: invalid JSON: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the rest of the program cannot act on.
func (c Config) Validate() error {
	switch c.StoreKind {
	case "flat", "sqlite":
	default:
		return fmt.Errorf("unknown store_kind %q (want \"flat\" or \"sqlite\")", c.StoreKind)
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}
	if c.SerialDevice != "" && c.BaudRate == 0 {
		return fmt.Errorf("baud_rate must be set when serial_device is set")
	}
	return nil
}

// OpenStore opens the Store backend c selects.
func (c Config) OpenStore() (Store, error) {
	switch c.StoreKind {
	case "sqlite":
		return OpenSQLiteStore(c.StorePath)
	default:
		return OpenFlatStore(c.StorePath)
	}
}
