package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors embedsim.yml
type Config struct {
	CounterBits     int    `yaml:"counter_bits"`     // 24 (nRF52 RTC)
	ReadyCapacity   int    `yaml:"ready_capacity"`   // 4
	MaxDeadlines    int    `yaml:"max_deadlines"`    // 8
	EdgeChannels    int    `yaml:"edge_channels"`    // 2
	TriggerOverflow bool   `yaml:"trigger_overflow"` // start next to the first counter wrap
	DebounceMS      int    `yaml:"debounce_ms"`      // 100
	BlinkMS         int    `yaml:"blink_ms"`         // 500
	Tone            Tone   `yaml:"tone"`
	LogLevel        string `yaml:"log_level"`  // info
	LogFormat       string `yaml:"log_format"` // text
	Sim             Sim    `yaml:"sim"`
}

// Tone configures the tone player.
type Tone struct {
	LeftHz     int `yaml:"left_hz"`
	RightHz    int `yaml:"right_hz"`
	DurationMS int `yaml:"duration_ms"`
}

// Sim configures the simulated board.
type Sim struct {
	StepInterval time.Duration `yaml:"step_interval"`  // wall time per RTC step
	TicksPerStep int           `yaml:"ticks_per_step"` // RTC ticks per step
	Stimulus     []Stimulus    `yaml:"stimulus"`
}

// Stimulus is one scripted button action.
type Stimulus struct {
	At     time.Duration `yaml:"at"`
	Button string        `yaml:"button"` // "a" or "b"
	Action string        `yaml:"action"` // "press" or "release"
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		CounterBits:   24,
		ReadyCapacity: 4,
		MaxDeadlines:  8,
		EdgeChannels:  2,
		DebounceMS:    100,
		BlinkMS:       500,
		Tone: Tone{
			LeftHz:     880,
			RightHz:    440,
			DurationMS: 50,
		},
		LogLevel:  "info",
		LogFormat: "text",
		Sim: Sim{
			StepInterval: time.Millisecond,
			TicksPerStep: 33,
		},
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.clamp()
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// sanity clamps
func (c *Config) clamp() {
	def := Default()
	if c.CounterBits < 8 || c.CounterBits > 32 {
		c.CounterBits = def.CounterBits
	}
	if c.ReadyCapacity <= 0 {
		c.ReadyCapacity = def.ReadyCapacity
	}
	if c.MaxDeadlines <= 0 {
		c.MaxDeadlines = def.MaxDeadlines
	}
	if c.EdgeChannels <= 0 {
		c.EdgeChannels = def.EdgeChannels
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = def.DebounceMS
	}
	if c.BlinkMS <= 0 {
		c.BlinkMS = def.BlinkMS
	}
	if c.Tone.LeftHz <= 0 {
		c.Tone.LeftHz = def.Tone.LeftHz
	}
	if c.Tone.RightHz <= 0 {
		c.Tone.RightHz = def.Tone.RightHz
	}
	if c.Tone.DurationMS <= 0 {
		c.Tone.DurationMS = def.Tone.DurationMS
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.Sim.StepInterval <= 0 {
		c.Sim.StepInterval = def.Sim.StepInterval
	}
	if c.Sim.TicksPerStep <= 0 {
		c.Sim.TicksPerStep = def.Sim.TicksPerStep
	}
}
