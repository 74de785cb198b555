// Package config loads engine settings, insight provider profiles and
// scenario files.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/metrics"
	"github.com/picogrid/hexfleet/pkg/tracker"
)

// EnvPrefix prefixes every environment override, e.g. HEXFLEET_ZOOM.
const EnvPrefix = "HEXFLEET"

// MetricsConfig holds the pricing constants.
type MetricsConfig struct {
	BaseRatePerCell float64 `mapstructure:"base_rate_per_cell" yaml:"base_rate_per_cell"`
	SurchargeFactor float64 `mapstructure:"surcharge_factor" yaml:"surcharge_factor"`
	AverageSpeedKmh float64 `mapstructure:"average_speed_kmh" yaml:"average_speed_kmh"`
}

// EngineConfig holds the simulation engine settings.
type EngineConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	// Progress added to an active delivery per tick at the nominal rate.
	ProgressStep float64 `mapstructure:"progress_step" yaml:"progress_step"`
	Zoom         float64 `mapstructure:"zoom" yaml:"zoom"`
	// Fraction of the nominal step applied to DELAYED deliveries.
	DelayedRate float64 `mapstructure:"delayed_rate" yaml:"delayed_rate"`
	// "occupancy" or "random".
	Congestion   string        `mapstructure:"congestion" yaml:"congestion"`
	Saturation   int           `mapstructure:"saturation" yaml:"saturation"`
	Seed         int64         `mapstructure:"seed" yaml:"seed"`
	StopWhenIdle bool          `mapstructure:"stop_when_idle" yaml:"stop_when_idle"`
	EventHistory int           `mapstructure:"event_history" yaml:"event_history"`
	Metrics      MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultEngineConfig returns the built-in settings.
func DefaultEngineConfig() EngineConfig {
	m := metrics.DefaultConfig()
	return EngineConfig{
		TickInterval: time.Second,
		ProgressStep: 0.01,
		Zoom:         13,
		DelayedRate:  tracker.DefaultRates().Delayed,
		Congestion:   "occupancy",
		Saturation:   5,
		Seed:         1,
		StopWhenIdle: true,
		EventHistory: 200,
		Metrics: MetricsConfig{
			BaseRatePerCell: m.BaseRatePerCell,
			SurchargeFactor: m.SurchargeFactor,
			AverageSpeedKmh: m.AverageSpeedKmh,
		},
	}
}

// SetDefaults registers the defaults on v so that every key is known to
// AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := DefaultEngineConfig()
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("progress_step", d.ProgressStep)
	v.SetDefault("zoom", d.Zoom)
	v.SetDefault("delayed_rate", d.DelayedRate)
	v.SetDefault("congestion", d.Congestion)
	v.SetDefault("saturation", d.Saturation)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("stop_when_idle", d.StopWhenIdle)
	v.SetDefault("event_history", d.EventHistory)
	v.SetDefault("metrics.base_rate_per_cell", d.Metrics.BaseRatePerCell)
	v.SetDefault("metrics.surcharge_factor", d.Metrics.SurchargeFactor)
	v.SetDefault("metrics.average_speed_kmh", d.Metrics.AverageSpeedKmh)
}

// ConfigureViper applies defaults and the HEXFLEET_ environment mapping.
// Nested keys use underscores, so metrics.surcharge_factor is read from
// HEXFLEET_METRICS_SURCHARGE_FACTOR.
func ConfigureViper(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadEngineConfig unmarshals and validates the engine settings held by v.
func LoadEngineConfig(v *viper.Viper) (EngineConfig, error) {
	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to decode engine config: %w", err)
	}
	cfg.Congestion = strings.ToLower(strings.TrimSpace(cfg.Congestion))
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings.
func (c EngineConfig) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("tick_interval must be positive")
	}
	if c.ProgressStep <= 0 || c.ProgressStep > 1 || math.IsNaN(c.ProgressStep) {
		return errors.New("progress_step must be in (0,1]")
	}
	if math.IsNaN(c.Zoom) || math.IsInf(c.Zoom, 0) {
		return errors.New("zoom must be a finite number")
	}
	if c.DelayedRate < 0 || c.DelayedRate > 1 || math.IsNaN(c.DelayedRate) {
		return errors.New("delayed_rate must be between 0.0 and 1.0")
	}
	switch c.Congestion {
	case "occupancy", "random":
	default:
		return fmt.Errorf("unknown congestion policy %q", c.Congestion)
	}
	if c.Saturation < 1 {
		return errors.New("saturation must be at least 1")
	}
	if c.EventHistory < 0 {
		return errors.New("event_history must not be negative")
	}
	return c.MetricsConfig().Validate()
}

// MetricsConfig converts the pricing constants.
func (c EngineConfig) MetricsConfig() metrics.Config {
	return metrics.Config{
		BaseRatePerCell: c.Metrics.BaseRatePerCell,
		SurchargeFactor: c.Metrics.SurchargeFactor,
		AverageSpeedKmh: c.Metrics.AverageSpeedKmh,
	}
}

// Rates converts the status rates.
func (c EngineConfig) Rates() tracker.Rates {
	return tracker.Rates{Delayed: c.DelayedRate}
}

// Policy builds the configured congestion policy.
func (c EngineConfig) Policy() metrics.CongestionPolicy {
	return metrics.PolicyByName(c.Congestion, c.Saturation, c.Seed)
}

// Resolution is the grid resolution the zoom maps to.
func (c EngineConfig) Resolution() int {
	return geoindex.ResolutionForZoom(c.Zoom)
}

// String returns a human-readable summary.
func (c EngineConfig) String() string {
	return fmt.Sprintf(`Engine Configuration:
  Tick Interval: %v
  Progress Step: %.3f
  Zoom: %.1f (resolution %d)
  Delayed Rate: %.2f
  Congestion: %s (saturation %d, seed %d)
  Stop When Idle: %v
  Pricing: %.2f per cell, surcharge %.2f, %.1f km/h`,
		c.TickInterval, c.ProgressStep, c.Zoom, c.Resolution(), c.DelayedRate,
		c.Congestion, c.Saturation, c.Seed, c.StopWhenIdle,
		c.Metrics.BaseRatePerCell, c.Metrics.SurchargeFactor, c.Metrics.AverageSpeedKmh)
}
