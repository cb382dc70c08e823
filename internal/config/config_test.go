package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "embedsim.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
counter_bits: 16
max_deadlines: 8
trigger_overflow: true
log_level: debug
sim:
  step_interval: 2ms
  stimulus:
    - at: 250ms
      button: a
      action: press
    - at: 400ms
      button: a
      action: release
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.CounterBits)
	assert.Equal(t, 8, cfg.MaxDeadlines)
	assert.True(t, cfg.TriggerOverflow)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.ReadyCapacity, "unset keys keep defaults")
	assert.Equal(t, 2*time.Millisecond, cfg.Sim.StepInterval)
	require.Len(t, cfg.Sim.Stimulus, 2)
	assert.Equal(t, Stimulus{At: 250 * time.Millisecond, Button: "a", Action: "press"}, cfg.Sim.Stimulus[0])
}

func TestLoadClamps(t *testing.T) {
	path := writeConfig(t, `
counter_bits: 64
ready_capacity: -1
edge_channels: 0
blink_ms: -5
tone:
  left_hz: 0
sim:
  ticks_per_step: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.CounterBits, cfg.CounterBits)
	assert.Equal(t, def.ReadyCapacity, cfg.ReadyCapacity)
	assert.Equal(t, def.EdgeChannels, cfg.EdgeChannels)
	assert.Equal(t, def.BlinkMS, cfg.BlinkMS)
	assert.Equal(t, def.Tone.LeftHz, cfg.Tone.LeftHz)
	assert.Equal(t, def.Sim.TicksPerStep, cfg.Sim.TicksPerStep)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "counter_bits: [1, 2\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Sim.Stimulus = []Stimulus{{At: time.Second, Button: "b", Action: "press"}}

	out, err := Marshal(cfg)
	require.NoError(t, err)

	got, err := Load(writeConfig(t, string(out)))
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
