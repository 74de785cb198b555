package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/logger"
)

// RunEngine runs eng until it finishes, ctx is done, stop is closed or
// duration elapses. A zero duration means no limit. Reaching the duration
// or stop is a normal completion.
func RunEngine(ctx context.Context, rt Runtime, eng *engine.Engine, duration time.Duration, stop <-chan struct{}) error {
	log := rt.Logger
	if log == nil {
		log = logger.Default()
	}
	if rt.OnStart != nil {
		rt.OnStart(eng)
	}

	runCtx := ctx
	if duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-stop:
			log.Info("Simulation stopped by user")
			eng.Stop()
		case <-done:
		}
	}()

	err := eng.Run(runCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		log.Infof("Simulation completed after %s", duration)
		return nil
	}
	return err
}
