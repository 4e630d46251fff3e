// Package config loads the reactor configuration and reaction catalog
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ConserveLee/pxlreact/internal/constants"
)

// DefaultPath is used when PXLREACT_CONFIG is unset.
const DefaultPath = "pxlreact.yaml"

// Config mirrors pxlreact.yaml.
type Config struct {
	TickInterval  time.Duration     `yaml:"tick_interval"`
	PixelCount    int               `yaml:"pixel_count"`
	Tolerance     int               `yaml:"tolerance"`
	IgnoredDeltas []int             `yaml:"ignored_deltas"`
	SettleDelay   time.Duration     `yaml:"settle_delay"`
	MousePreview  bool              `yaml:"mouse_preview"`
	Debug         bool              `yaml:"debug"`
	Bounds        Bounds            `yaml:"bounds"`
	Dispatcher    Dispatcher        `yaml:"dispatcher"`
	Gate          Gate              `yaml:"gate"`
	Rearm         Rearm             `yaml:"rearm"`
	Actions       map[string]Action `yaml:"actions"`
	Reactions     []Reaction        `yaml:"reactions"`
	Bindings      map[int]string    `yaml:"bindings"` // pixel index -> reaction name
}

// Bounds limits reaction locations. With Auto set the union of active
// displays is used instead of the explicit rectangle. The default is the
// fixed rectangle, so the built-in reactions load on any display layout.
type Bounds struct {
	Auto bool `yaml:"auto"`
	MinX int  `yaml:"min_x"`
	MinY int  `yaml:"min_y"`
	MaxX int  `yaml:"max_x"` // exclusive
	MaxY int  `yaml:"max_y"` // exclusive
}

// Range is an inclusive millisecond range.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type Dispatcher struct {
	Workers     int   `yaml:"workers"`
	Queue       int   `yaml:"queue"`
	Precompute  int   `yaml:"precompute"`
	ReactDelay  Range `yaml:"react_delay_ms"`
	PressHold   Range `yaml:"press_hold_ms"`
	SequenceGap Range `yaml:"sequence_gap_ms"`
}

type Gate struct {
	Enabled     bool          `yaml:"enabled"`
	WindowTitle string        `yaml:"window_title"`
	Marker      Marker        `yaml:"marker"`
	Interval    time.Duration `yaml:"interval"`
}

// Marker is a fixed pixel that must show Color while the session is valid.
type Marker struct {
	Enabled bool  `yaml:"enabled"`
	X       int   `yaml:"x"`
	Y       int   `yaml:"y"`
	Color   []int `yaml:"color"`
}

type Rearm struct {
	Burst          int     `yaml:"burst"`
	IntervalFactor float64 `yaml:"interval_factor"`
}

// Action is one entry of the action catalog.
type Action struct {
	Kind string        `yaml:"kind"` // press, sequence, hold
	Keys []string      `yaml:"keys"`
	Hold time.Duration `yaml:"hold"`
}

// Reaction is one raw registry entry; it is validated by the engine.
type Reaction struct {
	Name     string  `yaml:"name"`
	X        int     `yaml:"x"`
	Y        int     `yaml:"y"`
	Mode     string  `yaml:"mode"`
	Color    []int   `yaml:"color"`
	Cooldown float64 `yaml:"cooldown"` // seconds
	Action   string  `yaml:"action"`
}

// Default returns the built-in configuration with the two flask reactions.
func Default() *Config {
	return &Config{
		TickInterval: constants.TickInterval,
		PixelCount:   constants.PixelCount,
		Tolerance:    constants.DefaultTolerance,
		SettleDelay:  constants.SettleDelay,
		MousePreview: true,
		Bounds: Bounds{
			MinX: constants.BoundsMinX,
			MinY: constants.BoundsMinY,
			MaxX: constants.BoundsMaxX,
			MaxY: constants.BoundsMaxY,
		},
		Dispatcher: Dispatcher{
			Workers:     constants.DispatcherWorkers,
			Queue:       constants.DispatcherQueue,
			Precompute:  constants.PrecomputeSize,
			ReactDelay:  Range{Min: constants.ReactDelayMinMs, Max: constants.ReactDelayMaxMs},
			PressHold:   Range{Min: constants.PressHoldMinMs, Max: constants.PressHoldMaxMs},
			SequenceGap: Range{Min: constants.SequenceGapMinMs, Max: constants.SequenceGapMaxMs},
		},
		Gate: Gate{
			Enabled:     true,
			WindowTitle: "Path of Exile 2",
			Marker:      Marker{Enabled: true, X: 21, Y: 1084, Color: []int{129, 121, 91}},
			Interval:    constants.GatePollInterval,
		},
		Rearm: Rearm{Burst: constants.RearmBurst, IntervalFactor: constants.RearmIntervalFactor},
		Actions: map[string]Action{
			"hp_flask": {Kind: "press", Keys: []string{"1"}},
			"mp_flask": {Kind: "press", Keys: []string{"2"}},
		},
		Reactions: []Reaction{
			{Name: "HP1", X: 134, Y: 1275, Mode: "trigger_if_different", Color: []int{167, 34, 46}, Cooldown: 4, Action: "hp_flask"},
			{Name: "MP1", X: 2400, Y: 1364, Mode: "trigger_if_different", Color: []int{16, 53, 111}, Cooldown: 2.5, Action: "mp_flask"},
		},
		Bindings: map[int]string{1: "HP1", 2: "MP1"},
	}
}

// Path returns the configuration file path, honoring PXLREACT_CONFIG.
func Path() string {
	return getEnv("PXLREACT_CONFIG", DefaultPath)
}

// Load reads filename on top of the defaults. A missing file yields the
// defaults; a malformed one is an error.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		applyEnv(cfg)
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}

	// The catalog comes entirely from the file when one exists
	cfg.Actions = nil
	cfg.Reactions = nil
	cfg.Bindings = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(cfg *Config, filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

func applyEnv(cfg *Config) {
	cfg.Debug = getEnvBool("PXLREACT_DEBUG", cfg.Debug)
	if ms := getEnvInt("PXLREACT_TICK_MS", 0); ms > 0 {
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	}
	cfg.Dispatcher.Workers = getEnvInt("PXLREACT_WORKERS", cfg.Dispatcher.Workers)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
