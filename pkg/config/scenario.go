package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Scenario is a fleet and its geofences as stored on disk.
type Scenario struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Settings    ScenarioSettings  `yaml:"settings,omitempty"`
	Deliveries  []models.Delivery `yaml:"deliveries"`
	Geofences   []GeofenceSpec    `yaml:"geofences,omitempty"`
}

// ScenarioSettings override engine settings for one scenario. Zero values
// leave the engine setting unchanged.
type ScenarioSettings struct {
	UpdateInterval time.Duration `yaml:"update_interval,omitempty"`
	ProgressStep   float64       `yaml:"progress_step,omitempty"`
	Zoom           float64       `yaml:"zoom,omitempty"`
}

// GeofenceSpec is a geofence entry. Active defaults to true when omitted.
type GeofenceSpec struct {
	ID           string              `yaml:"id,omitempty"`
	Name         string              `yaml:"name"`
	Center       models.LatLng       `yaml:"center"`
	RadiusMeters float64             `yaml:"radius_m"`
	Type         models.GeofenceType `yaml:"type"`
	Active       *bool               `yaml:"active,omitempty"`
}

// Geofence converts the entry.
func (g GeofenceSpec) Geofence(createdAt time.Time) models.Geofence {
	active := true
	if g.Active != nil {
		active = *g.Active
	}
	return models.Geofence{
		ID:           g.ID,
		Name:         g.Name,
		Center:       g.Center,
		RadiusMeters: g.RadiusMeters,
		Type:         g.Type,
		Active:       active,
		CreatedAt:    createdAt,
	}
}

// SpecFor converts a geofence back to a file entry.
func SpecFor(g models.Geofence) GeofenceSpec {
	active := g.Active
	return GeofenceSpec{
		ID:           g.ID,
		Name:         g.Name,
		Center:       g.Center,
		RadiusMeters: g.RadiusMeters,
		Type:         g.Type,
		Active:       &active,
	}
}

// Fences returns the scenario geofences stamped with createdAt.
func (s *Scenario) Fences(createdAt time.Time) []models.Geofence {
	out := make([]models.Geofence, 0, len(s.Geofences))
	for _, g := range s.Geofences {
		out = append(out, g.Geofence(createdAt))
	}
	return out
}

// AddGeofence validates g, assigns an id when it has none and appends it.
func (s *Scenario) AddGeofence(g GeofenceSpec) (GeofenceSpec, error) {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if err := g.Geofence(time.Time{}).Validate(); err != nil {
		return GeofenceSpec{}, err
	}
	g.Type, _ = models.ParseGeofenceType(string(g.Type))
	for _, existing := range s.Geofences {
		if existing.ID == g.ID {
			return GeofenceSpec{}, fmt.Errorf("duplicate geofence id %q: %w", g.ID, models.ErrConfiguration)
		}
	}
	s.Geofences = append(s.Geofences, g)
	return g, nil
}

// Validate checks every delivery and geofence and rejects duplicate ids.
// Geofences without an id are assigned one.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required: %w", models.ErrConfiguration)
	}
	if s.Settings.UpdateInterval < 0 || s.Settings.ProgressStep < 0 || s.Settings.ProgressStep > 1 {
		return fmt.Errorf("scenario %s: invalid settings: %w", s.Name, models.ErrConfiguration)
	}

	seen := make(map[string]bool, len(s.Deliveries))
	for _, d := range s.Deliveries {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate delivery id %q: %w", d.ID, models.ErrConfiguration)
		}
		seen[d.ID] = true
	}

	fences := make(map[string]bool, len(s.Geofences))
	for i := range s.Geofences {
		if s.Geofences[i].ID == "" {
			s.Geofences[i].ID = uuid.New().String()
		}
		g := s.Geofences[i]
		if err := g.Geofence(time.Time{}).Validate(); err != nil {
			return err
		}
		s.Geofences[i].Type, _ = models.ParseGeofenceType(string(g.Type))
		if fences[g.ID] {
			return fmt.Errorf("duplicate geofence id %q: %w", g.ID, models.ErrConfiguration)
		}
		fences[g.ID] = true
	}
	return nil
}

// ApplyTo copies the non-zero settings onto cfg.
func (s *Scenario) ApplyTo(cfg *EngineConfig) {
	if s.Settings.UpdateInterval > 0 {
		cfg.TickInterval = s.Settings.UpdateInterval
	}
	if s.Settings.ProgressStep > 0 {
		cfg.ProgressStep = s.Settings.ProgressStep
	}
	if s.Settings.Zoom > 0 {
		cfg.Zoom = s.Settings.Zoom
	}
}

// DefaultScenario returns the seed metro fleet and geofences.
func DefaultScenario(now time.Time) *Scenario {
	s := &Scenario{
		Name:        "metro-deliveries",
		Description: "Seed delivery fleet around lower Manhattan",
		Deliveries:  models.SeedDeliveries(now),
	}
	for _, g := range models.SeedGeofences(now) {
		s.Geofences = append(s.Geofences, SpecFor(g))
	}
	return s
}

// LoadScenario loads and validates a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenario file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading scenario file: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("error parsing scenario file: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// SaveScenario validates and writes a scenario to a YAML file
func SaveScenario(scenario *Scenario, path string) error {
	if err := scenario.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	data, err := yaml.Marshal(scenario)
	if err != nil {
		return fmt.Errorf("error marshaling scenario: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing scenario file: %w", err)
	}

	return nil
}

// MergeWithEnvironment applies HEXFLEET_UPDATE_INTERVAL, HEXFLEET_ZOOM and
// HEXFLEET_PROGRESS_STEP over the scenario settings. Unparseable values are
// ignored.
func MergeWithEnvironment(scenario *Scenario) {
	if interval := os.Getenv(EnvPrefix + "_UPDATE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			scenario.Settings.UpdateInterval = d
		}
	}

	if zoom := os.Getenv(EnvPrefix + "_ZOOM"); zoom != "" {
		if z, err := strconv.ParseFloat(zoom, 64); err == nil && z > 0 {
			scenario.Settings.Zoom = z
		}
	}

	if step := os.Getenv(EnvPrefix + "_PROGRESS_STEP"); step != "" {
		if s, err := strconv.ParseFloat(step, 64); err == nil && s > 0 && s <= 1 {
			scenario.Settings.ProgressStep = s
		}
	}
}
