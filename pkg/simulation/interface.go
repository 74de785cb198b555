package simulation

import (
	"context"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/notify"
	"github.com/picogrid/hexfleet/pkg/render"
)

// Runtime is what a simulation runs against: the base engine settings and
// the collaborators its engine publishes to.
type Runtime struct {
	Engine   config.EngineConfig
	Renderer render.Renderer
	Notifier notify.Notifier
	Logger   logger.Logger
	// OnStart, if set, receives the engine once it has been created.
	OnStart func(*engine.Engine)
}

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until it completes, ctx is done or Stop
	// is called
	Run(ctx context.Context, rt Runtime) error

	// Stop gracefully shuts down the simulation
	Stop() error
}
