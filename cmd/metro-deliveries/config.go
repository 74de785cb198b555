package metrodeliveries

import (
	"fmt"
	"time"

	"github.com/picogrid/hexfleet/pkg/simulation"
)

// Config holds the configuration for the metro deliveries simulation
type Config struct {
	UpdateInterval time.Duration
	Duration       time.Duration
	ProgressStep   float64
	Zoom           float64
	ScenarioFile   string
}

// ValidateAndParse validates and parses the raw parameters into a Config
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	p := simulation.Params(params)
	config := &Config{}
	var err error

	if config.UpdateInterval, err = p.Duration("update_interval", time.Second); err != nil {
		return nil, err
	}
	if config.UpdateInterval < 10*time.Millisecond || config.UpdateInterval > time.Minute {
		return nil, fmt.Errorf("update_interval must be between 10ms and 1m")
	}

	if config.Duration, err = p.Duration("duration", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.Duration < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}

	if config.ProgressStep, err = p.Float("progress_step", 0.01); err != nil {
		return nil, err
	}
	if config.ProgressStep <= 0 || config.ProgressStep > 1 {
		return nil, fmt.Errorf("progress_step must be in (0,1]")
	}

	if config.Zoom, err = p.Float("zoom", 13); err != nil {
		return nil, err
	}
	if config.Zoom < 1 || config.Zoom > 22 {
		return nil, fmt.Errorf("zoom must be between 1 and 22")
	}

	config.ScenarioFile = p.String("scenario_file", "")

	return config, nil
}
