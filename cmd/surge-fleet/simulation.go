package surgefleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/render"
	"github.com/picogrid/hexfleet/pkg/simulation"
)

// Name is the registry name of the simulation.
const Name = "surge-fleet"

// SurgeSimulation floods a city center with deliveries leaving one hub.
type SurgeSimulation struct {
	config   *Config
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSurgeSimulation creates a new instance of the surge simulation
func NewSurgeSimulation() simulation.Simulation {
	return &SurgeSimulation{
		stopChan: make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *SurgeSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *SurgeSimulation) Description() string {
	return "Rush hour surge of seeded random deliveries fanning out from a congested central hub"
}

// Configure sets up the simulation with provided parameters
func (s *SurgeSimulation) Configure(params map[string]interface{}) error {
	cfg, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = cfg
	return nil
}

// EngineConfig applies the simulation parameters to base. Congestion is
// always occupancy based so the hub cell prices higher.
func (s *SurgeSimulation) EngineConfig(base config.EngineConfig) config.EngineConfig {
	cfg := base
	cfg.TickInterval = s.config.UpdateInterval
	cfg.ProgressStep = s.config.ProgressStep
	cfg.Zoom = s.config.Zoom
	cfg.Congestion = "occupancy"
	cfg.Saturation = s.config.Saturation
	cfg.Seed = s.config.Seed
	return cfg
}

// Run executes the simulation
func (s *SurgeSimulation) Run(ctx context.Context, rt simulation.Runtime) error {
	if s.config == nil {
		return fmt.Errorf("simulation not configured")
	}
	log := rt.Logger
	if log == nil {
		log = logger.Default()
	}

	now := time.Now()
	fleet := GenerateFleet(s.config, now)
	cfg := s.EngineConfig(rt.Engine)

	eng, err := engine.New(cfg, fleet.Deliveries, fleet.Geofences, engine.Options{
		Renderer: rt.Renderer,
		Notifier: rt.Notifier,
		Logger:   log,
		OnFrame: func(e *engine.Engine, f *render.Frame) {
			if err := dispatchNext(e, f, log); err != nil {
				log.Warnf("Dispatch failed: %v", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	log.Infof("Starting %s: %d deliveries within %.0f m of %s (resolution %d)",
		Name, len(fleet.Deliveries), s.config.RadiusMeters, s.config.Center, cfg.Resolution())

	return simulation.RunEngine(ctx, rt, eng, s.config.Duration, s.stopChan)
}

// dispatchNext sends out the first pending delivery of the frame.
func dispatchNext(eng *engine.Engine, f *render.Frame, log logger.Logger) error {
	for _, d := range f.Deliveries {
		if d.Status != models.StatusPending {
			continue
		}
		if err := eng.Dispatch(d.ID); err != nil {
			return err
		}
		log.Debugf("Dispatched %s to %s", d.ID, d.Dropoff.Name)
		return nil
	}
	return nil
}

// Stop gracefully shuts down the simulation
func (s *SurgeSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// init registers the simulation
func init() {
	err := simulation.DefaultRegistry.Register(Name, NewSurgeSimulation)
	if err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
		return
	}
}
