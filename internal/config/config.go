// Package config loads the simulator configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/signalsfoundry/building-sim/core"
	"github.com/signalsfoundry/building-sim/internal/logging"
	"github.com/signalsfoundry/building-sim/internal/observability"
)

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full simulator configuration.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Navigation NavigationConfig `toml:"navigation"`
	Logging    LoggingConfig    `toml:"logging"`
	Tracing    TracingConfig    `toml:"tracing"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Store      StoreConfig      `toml:"store"`
	Agents     []AgentConfig    `toml:"agents"`
}

// SimulationConfig selects the input documents and the clock.
type SimulationConfig struct {
	Building    string   `toml:"building"`
	Behaviors   string   `toml:"behaviors"`
	Scenario    string   `toml:"scenario"`
	Tick        Duration `toml:"tick"`
	Duration    Duration `toml:"duration"`
	Accelerated bool     `toml:"accelerated"`
}

// NavigationConfig tunes every navigate node.
type NavigationConfig struct {
	WaypointTolerance float64 `toml:"waypoint_tolerance"`
	ProgressRate      float64 `toml:"progress_rate"`
	StallTicks        int     `toml:"stall_ticks"`
	Stagnation        string  `toml:"stagnation"` // replan | fail
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	Exporter    string  `toml:"exporter"`
	Endpoint    string  `toml:"endpoint"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// MetricsConfig controls the /metrics listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig points at the SQLite archive. An empty Path disables it.
type StoreConfig struct {
	Path string `toml:"path"`
}

// AgentConfig declares one agent. The agent starts at the named location
// when Start is set, otherwise at (X, Y) on Level.
type AgentConfig struct {
	ID       string  `toml:"id"`
	Name     string  `toml:"name"`
	Model    string  `toml:"model"`
	Behavior string  `toml:"behavior"`
	Start    string  `toml:"start"`
	X        float64 `toml:"x"`
	Y        float64 `toml:"y"`
	Level    string  `toml:"level"`
	Speed    float64 `toml:"speed"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	nav := core.DefaultNavigateConfig()
	return Config{
		Simulation: SimulationConfig{
			Tick:     Duration{100 * time.Millisecond},
			Duration: Duration{time.Minute},
		},
		Navigation: NavigationConfig{
			WaypointTolerance: nav.WaypointTolerance,
			ProgressRate:      nav.ProgressRate,
			StallTicks:        nav.StallTicks,
			Stagnation:        nav.Policy.String(),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "stdout", ServiceName: "building-sim", SampleRatio: 1},
	}
}

// Load reads a TOML file over the defaults, then applies environment
// overrides. An empty path yields the defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if cfg, err = Decode(f); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg = cfg.ApplyEnv().ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses a TOML document over Default(). Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return cfg.ApplyDefaults(), nil
}

// ApplyDefaults replaces zero or invalid values with defaults.
func (c Config) ApplyDefaults() Config {
	def := Default()
	if c.Simulation.Tick.Duration <= 0 {
		c.Simulation.Tick = def.Simulation.Tick
	}
	if c.Simulation.Duration.Duration < 0 {
		c.Simulation.Duration = def.Simulation.Duration
	}
	if c.Navigation.WaypointTolerance <= 0 {
		c.Navigation.WaypointTolerance = def.Navigation.WaypointTolerance
	}
	if c.Navigation.ProgressRate < 0 {
		c.Navigation.ProgressRate = def.Navigation.ProgressRate
	}
	if c.Navigation.StallTicks <= 0 {
		c.Navigation.StallTicks = def.Navigation.StallTicks
	}
	if c.Navigation.Stagnation == "" {
		c.Navigation.Stagnation = def.Navigation.Stagnation
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	c.Tracing = fromObservability(c.TracingConfig().ApplyDefaults())
	return c
}

// ApplyEnv overlays LOG_LEVEL, LOG_FORMAT, SIM_TRACING_*, SIM_METRICS_ADDR
// and SIM_STORE_PATH.
func (c Config) ApplyEnv() Config {
	lc := logging.ConfigFromEnv(c.LoggingConfig())
	c.Logging = LoggingConfig{Level: lc.Level, Format: lc.Format, AddSource: lc.AddSource}
	c.Tracing = fromObservability(observability.TracingConfigFromEnv(c.TracingConfig()))
	if addr := os.Getenv("SIM_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	if path := os.Getenv("SIM_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	return c
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if _, err := core.ParseStagnationPolicy(c.Navigation.Stagnation); err != nil {
		errs = append(errs, fmt.Errorf("navigation.stagnation: %w", err))
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Errorf("agents[%d]: id is required", i))
		case seen[a.ID]:
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
		if a.Behavior == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: behavior is required", i))
		}
		if a.Speed < 0 {
			errs = append(errs, fmt.Errorf("agents[%d]: speed must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NavigateConfig converts the navigation section.
func (c Config) NavigateConfig() (core.NavigateConfig, error) {
	policy, err := core.ParseStagnationPolicy(c.Navigation.Stagnation)
	if err != nil {
		return core.NavigateConfig{}, err
	}
	return core.NavigateConfig{
		WaypointTolerance: c.Navigation.WaypointTolerance,
		ProgressRate:      c.Navigation.ProgressRate,
		StallTicks:        c.Navigation.StallTicks,
		Policy:            policy,
	}.ApplyDefaults(), nil
}

// LoggingConfig converts the logging section.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.AddSource}
}

// TracingConfig converts the tracing section.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

func fromObservability(t observability.TracingConfig) TracingConfig {
	return TracingConfig{
		Enabled:     t.Enabled,
		Exporter:    t.Exporter,
		Endpoint:    t.Endpoint,
		ServiceName: t.ServiceName,
		SampleRatio: t.SampleRatio,
	}
}
