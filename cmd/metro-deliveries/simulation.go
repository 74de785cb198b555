package metrodeliveries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/simulation"
)

// Name is the registry name of the simulation.
const Name = "metro-deliveries"

// MetroSimulation replays a delivery fleet and its geofences, by default
// the seed fleet around lower Manhattan.
type MetroSimulation struct {
	config   *Config
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMetroSimulation creates a new instance of the metro simulation
func NewMetroSimulation() simulation.Simulation {
	return &MetroSimulation{
		stopChan: make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *MetroSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *MetroSimulation) Description() string {
	return "Seed delivery fleet crossing lower Manhattan hubs, restricted zones and customer zones"
}

// Configure sets up the simulation with provided parameters
func (s *MetroSimulation) Configure(params map[string]interface{}) error {
	config, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = config
	return nil
}

// Scenario returns the fleet and geofences the simulation runs.
func (s *MetroSimulation) Scenario(now time.Time) (*config.Scenario, error) {
	if s.config != nil && s.config.ScenarioFile != "" {
		return config.LoadScenario(s.config.ScenarioFile)
	}
	return config.DefaultScenario(now), nil
}

// EngineConfig applies the simulation parameters and then the scenario
// settings to base.
func (s *MetroSimulation) EngineConfig(base config.EngineConfig, scenario *config.Scenario) config.EngineConfig {
	cfg := base
	if s.config != nil {
		cfg.TickInterval = s.config.UpdateInterval
		cfg.ProgressStep = s.config.ProgressStep
		cfg.Zoom = s.config.Zoom
	}
	scenario.ApplyTo(&cfg)
	return cfg
}

// Run executes the simulation
func (s *MetroSimulation) Run(ctx context.Context, rt simulation.Runtime) error {
	if s.config == nil {
		return fmt.Errorf("simulation not configured")
	}
	log := rt.Logger
	if log == nil {
		log = logger.Default()
	}

	now := time.Now()
	scenario, err := s.Scenario(now)
	if err != nil {
		return err
	}
	config.MergeWithEnvironment(scenario)
	cfg := s.EngineConfig(rt.Engine, scenario)

	eng, err := engine.New(cfg, scenario.Deliveries, scenario.Fences(now), engine.Options{
		Renderer: rt.Renderer,
		Notifier: rt.Notifier,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	log.Infof("Starting %s with %d deliveries and %d geofences (resolution %d)",
		scenario.Name, len(scenario.Deliveries), len(scenario.Geofences), cfg.Resolution())

	return simulation.RunEngine(ctx, rt, eng, s.config.Duration, s.stopChan)
}

// Stop gracefully shuts down the simulation
func (s *MetroSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// init registers the simulation
func init() {
	err := simulation.DefaultRegistry.Register(Name, NewMetroSimulation)
	if err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
		return
	}
}
