package surgefleet

import (
	"fmt"
	"time"

	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/simulation"
)

// Config holds the configuration for the surge fleet simulation
type Config struct {
	NumDeliveries  int
	Center         models.LatLng
	RadiusMeters   float64
	HubRadiusM     float64
	Seed           int64
	UpdateInterval time.Duration
	Duration       time.Duration
	ProgressStep   float64
	Zoom           float64
	Saturation     int
}

// ValidateAndParse validates and parses raw parameters into a Config
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	p := simulation.Params(params)
	cfg := &Config{}
	var err error

	if cfg.NumDeliveries, err = p.Int("num_deliveries", 40); err != nil {
		return nil, err
	}
	if cfg.NumDeliveries < 1 || cfg.NumDeliveries > 5000 {
		return nil, fmt.Errorf("num_deliveries must be between 1 and 5000")
	}

	if cfg.Center.Lat, err = p.Float("center_lat", 40.7484); err != nil {
		return nil, err
	}
	if cfg.Center.Lng, err = p.Float("center_lon", -73.9857); err != nil {
		return nil, err
	}
	if !cfg.Center.Valid() {
		return nil, fmt.Errorf("center %s is not a valid coordinate", cfg.Center)
	}

	if cfg.RadiusMeters, err = p.Float("radius_m", 3000); err != nil {
		return nil, err
	}
	if cfg.RadiusMeters <= 0 || cfg.RadiusMeters > 50000 {
		return nil, fmt.Errorf("radius_m must be between 0 and 50000 meters")
	}

	if cfg.HubRadiusM, err = p.Float("hub_radius_m", 400); err != nil {
		return nil, err
	}
	if cfg.HubRadiusM <= 0 {
		return nil, fmt.Errorf("hub_radius_m must be greater than 0")
	}

	seed, err := p.Int("seed", 42)
	if err != nil {
		return nil, err
	}
	cfg.Seed = int64(seed)

	if cfg.UpdateInterval, err = p.Duration("update_interval", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("update_interval must be greater than 0")
	}

	if cfg.Duration, err = p.Duration("duration", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Duration < 0 {
		return nil, fmt.Errorf("duration must not be negative")
	}

	if cfg.ProgressStep, err = p.Float("progress_step", 0.02); err != nil {
		return nil, err
	}
	if cfg.ProgressStep <= 0 || cfg.ProgressStep > 1 {
		return nil, fmt.Errorf("progress_step must be in (0,1]")
	}

	if cfg.Zoom, err = p.Float("zoom", 12); err != nil {
		return nil, err
	}
	if cfg.Zoom < 1 || cfg.Zoom > 22 {
		return nil, fmt.Errorf("zoom must be between 1 and 22")
	}

	if cfg.Saturation, err = p.Int("saturation", 3); err != nil {
		return nil, err
	}
	if cfg.Saturation < 1 {
		return nil, fmt.Errorf("saturation must be at least 1")
	}

	return cfg, nil
}
