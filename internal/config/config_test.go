package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/building-sim/core"
)

const sampleTOML = `
[simulation]
building = "office.yaml"
behaviors = "behaviors.yaml"
tick = "250ms"
duration = "2m"
accelerated = true

[navigation]
stall_ticks = 8
stagnation = "fail"

[logging]
level = "debug"
format = "json"

[metrics]
addr = ":9102"

[store]
path = "sim.db"

[[agents]]
id = "r1"
name = "tug"
model = "MiR100"
behavior = "deliver"
start = "charger"
speed = 0.8

[[agents]]
id = "r2"
behavior = "park"
x = 3.5
y = -1
level = "L1"
`

func TestDecode(t *testing.T) {
	cfg, err := Decode(strings.NewReader(sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "office.yaml", cfg.Simulation.Building)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.Tick.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Simulation.Duration.Duration)
	assert.True(t, cfg.Simulation.Accelerated)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
	assert.Equal(t, "sim.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, AgentConfig{ID: "r1", Name: "tug", Model: "MiR100", Behavior: "deliver", Start: "charger", Speed: 0.8}, cfg.Agents[0])
	assert.Equal(t, 3.5, cfg.Agents[1].X)
	assert.Equal(t, "L1", cfg.Agents[1].Level)

	nav, err := cfg.NavigateConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, nav.StallTicks)
	assert.Equal(t, core.StagnationFail, nav.Policy)
	assert.Equal(t, core.DefaultWaypointTolerance, nav.WaypointTolerance, "unset keys keep defaults")
	assert.Equal(t, core.DefaultProgressRate, nav.ProgressRate)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[simulation]\nticks = \"1s\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulation.ticks")
}

func TestDecodeRejectsBadDuration(t *testing.T) {
	_, err := Decode(strings.NewReader("[simulation]\ntick = \"soon\"\n"))
	assert.Error(t, err)
}

func TestApplyDefaultsFixesInvalidValues(t *testing.T) {
	cfg := Config{}.ApplyDefaults()
	def := Default()

	assert.Equal(t, def.Simulation.Tick, cfg.Simulation.Tick)
	assert.Equal(t, def.Navigation.StallTicks, cfg.Navigation.StallTicks)
	assert.Equal(t, "replan", cfg.Navigation.Stagnation)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Zero(t, cfg.Navigation.ProgressRate, "zero rate is kept")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTOML), 0o644))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SIM_METRICS_ADDR", "127.0.0.1:0")
	t.Setenv("SIM_STORE_PATH", "/tmp/other.db")
	t.Setenv("SIM_TRACING_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "127.0.0.1:0", cfg.Metrics.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.True(t, cfg.Tracing.Enabled)
	assert.True(t, cfg.TracingConfig().Enabled)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Simulation.Tick, cfg.Simulation.Tick)
	assert.Empty(t, cfg.Agents)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) { c.Agents = []AgentConfig{{ID: "a", Behavior: "b"}} }, ""},
		{"missing id", func(c *Config) { c.Agents = []AgentConfig{{Behavior: "b"}} }, "id is required"},
		{"duplicate id", func(c *Config) {
			c.Agents = []AgentConfig{{ID: "a", Behavior: "b"}, {ID: "a", Behavior: "b"}}
		}, "duplicate id"},
		{"missing behavior", func(c *Config) { c.Agents = []AgentConfig{{ID: "a"}} }, "behavior is required"},
		{"negative speed", func(c *Config) { c.Agents = []AgentConfig{{ID: "a", Behavior: "b", Speed: -1}} }, "speed"},
		{"bad policy", func(c *Config) { c.Navigation.Stagnation = "panic" }, "navigation.stagnation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
