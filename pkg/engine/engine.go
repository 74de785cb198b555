// Package engine owns the simulation state and runs the per tick pipeline:
// advance positions, bucket them into cells, derive metrics, detect
// geofence transitions and publish the resulting frame.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/picogrid/hexfleet/pkg/aggregate"
	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/geofence"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/metrics"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/notify"
	"github.com/picogrid/hexfleet/pkg/render"
	"github.com/picogrid/hexfleet/pkg/tracker"
)

// ErrStopped is returned by operations on an engine after Stop.
var ErrStopped = errors.New("engine stopped")

// Options wires the engine to its collaborators. Nil fields are skipped.
type Options struct {
	Renderer render.Renderer
	Notifier notify.Notifier
	Logger   logger.Logger
	// Clock stamps snapshots. Defaults to time.Now.
	Clock func() time.Time
	// OnFrame runs after each stepped frame has been published, outside the
	// engine lock, so it may call back into the engine.
	OnFrame func(e *Engine, f *render.Frame)
}

// Engine is the single owner of the fleet snapshot, the geofence store,
// per delivery memberships and the zoom level. All methods are safe for
// concurrent use.
type Engine struct {
	cfg      config.EngineConfig
	metrics  *metrics.Engine
	detector *geofence.Detector
	store    *geofence.Store
	renderer render.Renderer
	notifier notify.Notifier
	onFrame  func(*Engine, *render.Frame)
	log      logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	snap    tracker.Snapshot
	members geofence.Memberships
	zoom    float64

	frame    atomic.Pointer[render.Frame]
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an engine for the given fleet and geofences. Deliveries that
// start inside a fence are primed without events.
func New(cfg config.EngineConfig, deliveries []models.Delivery, fences []models.Geofence, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	seen := make(map[string]bool, len(deliveries))
	for _, d := range deliveries {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate delivery id %q: %w", d.ID, models.ErrConfiguration)
		}
		seen[d.ID] = true
	}

	me, err := metrics.NewEngine(cfg.MetricsConfig(), cfg.Policy())
	if err != nil {
		return nil, err
	}
	store, err := geofence.NewStore(fences...)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		cfg:      cfg,
		metrics:  me,
		detector: geofence.NewDetector(),
		store:    store,
		renderer: opts.Renderer,
		onFrame:  opts.OnFrame,
		notifier: opts.Notifier,
		log:      opts.Logger.WithPrefix("engine"),
		now:      opts.Clock,
		members:  make(geofence.Memberships),
		zoom:     cfg.Zoom,
		stopCh:   make(chan struct{}),
	}

	snap := tracker.NewSnapshot(deliveries, e.now())
	active := store.List()
	for _, d := range snap.Deliveries {
		m, err := e.detector.Prime(d, active)
		if err != nil {
			continue
		}
		e.members[d.ID] = m
	}

	frame, err := e.compose(&snap, active, nil)
	if err != nil {
		return nil, err
	}
	e.snap = snap
	e.frame.Store(frame)
	return e, nil
}

// Frame returns the last published frame. It is never nil.
func (e *Engine) Frame() *render.Frame {
	return e.frame.Load()
}

// Config returns the engine settings.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Step runs one tick and publishes its frame to the renderer and its
// events to the notifier. A renderer error is returned after the frame has
// been published.
func (e *Engine) Step(ctx context.Context) (*render.Frame, error) {
	select {
	case <-e.stopCh:
		return nil, ErrStopped
	default:
	}

	e.mu.Lock()
	snap := tracker.Tick(e.snap, e.cfg.ProgressStep, e.cfg.Rates(), e.now())
	fences := e.store.List()
	members, events := e.detect(snap, fences)
	frame, err := e.compose(&snap, fences, events)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.snap = snap
	e.members = members
	e.frame.Store(frame)
	e.mu.Unlock()

	if e.notifier != nil {
		for _, ev := range events {
			e.notifier.Notify(ev)
		}
	}
	err = e.publish(ctx, frame)
	if e.onFrame != nil {
		e.onFrame(e, frame)
	}
	return frame, err
}

func (e *Engine) publish(ctx context.Context, frame *render.Frame) error {
	if e.renderer == nil {
		return nil
	}
	if err := e.renderer.Render(ctx, frame); err != nil {
		return fmt.Errorf("render frame %d: %w", frame.Seq, err)
	}
	return nil
}

// detect evaluates every positioned delivery against the active fences and
// returns the next memberships without touching the stored ones.
// Deliveries without a position keep their previous membership.
func (e *Engine) detect(snap tracker.Snapshot, fences []models.Geofence) (geofence.Memberships, []models.TransitionEvent) {
	members := make(geofence.Memberships, len(e.members))
	for id, m := range e.members {
		members[id] = m
	}

	var events []models.TransitionEvent
	for _, d := range snap.Deliveries {
		next, evs, err := e.detector.Evaluate(d, fences, e.members.Of(d.ID))
		if err != nil {
			if !errors.Is(err, models.ErrUnavailablePosition) {
				e.log.Warnf("geofence check for %s: %v", d.ID, err)
			}
			continue
		}
		members[d.ID] = next
		events = append(events, evs...)
	}
	return members, events
}

// compose aggregates snap at the current zoom, stores cell and metrics on
// its deliveries and builds the frame. Metrics are only derived for
// deliveries that have not been delivered.
func (e *Engine) compose(snap *tracker.Snapshot, fences []models.Geofence, events []models.TransitionEvent) (*render.Frame, error) {
	agg, err := aggregate.Aggregate(snap.Deliveries, e.zoom)
	if err != nil {
		return nil, err
	}

	for i := range snap.Deliveries {
		d := &snap.Deliveries[i]
		d.CurrentCell = 0
		d.Metrics = nil
		if cell, ok := agg.CellOf(d.ID); ok {
			d.CurrentCell = cell
		}
		if d.Position == nil || d.Status.IsTerminal() {
			continue
		}
		m, err := e.metrics.Compute(*d, agg, agg.Resolution)
		if err != nil {
			e.log.Debugf("metrics for %s skipped: %v", d.ID, err)
			continue
		}
		d.Metrics = &m
	}

	frame := &render.Frame{
		Seq:        snap.Seq,
		At:         snap.At,
		Zoom:       e.zoom,
		Resolution: agg.Resolution,
		Deliveries: make([]models.Delivery, len(snap.Deliveries)),
		Cells:      agg.Sorted(),
		Geofences:  append([]models.Geofence(nil), fences...),
		Events:     events,
	}
	for i, d := range snap.Deliveries {
		frame.Deliveries[i] = d.Clone()
	}
	return frame, nil
}

// Run publishes the current frame and then steps once per tick interval
// until ctx is done, Stop is called or, with StopWhenIdle, every delivery
// is delivered.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.publish(ctx, e.Frame()); err != nil {
		e.log.Warnf("%v", err)
	}
	if e.cfg.StopWhenIdle && e.Done() {
		e.log.Info("All deliveries completed")
		return nil
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopCh:
			e.log.Info("Engine stopped")
			return nil
		case <-ticker.C:
			frame, err := e.Step(ctx)
			if errors.Is(err, ErrStopped) {
				return nil
			}
			if err != nil {
				e.log.Errorf("Tick failed: %v", err)
				if frame == nil {
					continue
				}
			}
			if len(frame.Events) > 0 {
				e.log.Debugf("tick %d: %d geofence transitions", frame.Seq, len(frame.Events))
			}
			if e.cfg.StopWhenIdle && e.Done() {
				e.log.Infof("All deliveries completed after %d ticks", frame.Seq)
				return nil
			}
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Done reports whether every delivery has been delivered.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.Done()
}

// Snapshot returns the current fleet snapshot.
func (e *Engine) Snapshot() tracker.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.snap
	out.Deliveries = make([]models.Delivery, len(e.snap.Deliveries))
	for i, d := range e.snap.Deliveries {
		out.Deliveries[i] = d.Clone()
	}
	return out
}

// Memberships returns the ids of the fences each delivery is inside.
func (e *Engine) Memberships() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]string, len(e.members))
	for id, m := range e.members {
		if ids := m.IDs(); len(ids) > 0 {
			out[id] = ids
		}
	}
	return out
}

// Inside returns the names of the active fences a delivery is inside.
func (e *Engine) Inside(entityID string) []string {
	e.mu.Lock()
	ids := e.members.Of(entityID).IDs()
	e.mu.Unlock()

	var names []string
	for _, id := range ids {
		if f, ok := e.store.Get(id); ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// Occupants returns the ids of the deliveries inside a geofence, sorted.
func (e *Engine) Occupants(fenceID string) ([]string, error) {
	if _, ok := e.store.Get(fenceID); !ok {
		return nil, fmt.Errorf("geofence %s: %w", fenceID, models.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.members.Inside(fenceID), nil
}

// SetZoom changes the zoom level used from the next tick on. The
// published frame is recomposed immediately without advancing positions.
func (e *Engine) SetZoom(zoom float64) (*render.Frame, error) {
	cfg := e.cfg
	cfg.Zoom = zoom
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, models.ErrConfiguration)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom = zoom
	return e.recompose()
}

// recompose rebuilds the frame for the current snapshot without events.
// Callers hold e.mu.
func (e *Engine) recompose() (*render.Frame, error) {
	snap := e.snap
	snap.Deliveries = make([]models.Delivery, len(e.snap.Deliveries))
	for i, d := range e.snap.Deliveries {
		snap.Deliveries[i] = d.Clone()
	}
	frame, err := e.compose(&snap, e.store.List(), nil)
	if err != nil {
		return nil, err
	}
	e.snap = snap
	e.frame.Store(frame)
	return frame, nil
}

// Dispatch moves a pending delivery to PICKED_UP.
func (e *Engine) Dispatch(id string) error {
	return e.transition(id, tracker.Dispatch)
}

// MarkDelayed moves an active delivery to DELAYED.
func (e *Engine) MarkDelayed(id string) error {
	return e.transition(id, tracker.MarkDelayed)
}

// Resume moves a delayed delivery back to OUT_FOR_DELIVERY.
func (e *Engine) Resume(id string) error {
	return e.transition(id, tracker.Resume)
}

func (e *Engine) transition(id string, apply func(tracker.Snapshot, string) (tracker.Snapshot, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	before, _ := e.snap.Find(id)
	snap, err := apply(e.snap, id)
	if err != nil {
		return err
	}

	// A delivery that gains a position starts inside its fences silently.
	if after, ok := snap.Find(id); ok && before.Position == nil && after.Position != nil {
		m, err := e.detector.Prime(after, e.store.List())
		if err == nil {
			e.members[id] = m
		}
	}

	e.snap = snap
	_, err = e.recompose()
	return err
}

// Geofences returns the current geofences.
func (e *Engine) Geofences() []models.Geofence {
	return e.store.List()
}

// CreateGeofence adds an active geofence. Deliveries already inside it
// get an ENTERED event on the next tick.
func (e *Engine) CreateGeofence(name string, center models.LatLng, radiusMeters float64, t models.GeofenceType) (models.Geofence, error) {
	f, err := e.store.Create(name, center, radiusMeters, t)
	if err != nil {
		return models.Geofence{}, err
	}
	e.log.Infof("Geofence %q created (%s, %.0f m)", f.Name, f.Type, f.RadiusMeters)
	return f, nil
}

// ToggleGeofence flips the active flag of a geofence. Deactivation clears
// every membership in it without emitting EXITED events.
func (e *Engine) ToggleGeofence(id string) (models.Geofence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.store.Toggle(id)
	if err != nil {
		return models.Geofence{}, err
	}
	if !f.Active {
		n := e.members.Forget(id)
		e.log.Debugf("geofence %s deactivated, %d memberships cleared", id, n)
	}
	return f, nil
}

// DeleteGeofence removes a geofence and every membership in it.
func (e *Engine) DeleteGeofence(id string) (models.Geofence, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.store.Delete(id)
	if err != nil {
		return models.Geofence{}, err
	}
	e.members.Forget(id)
	e.log.Infof("Geofence %q deleted", f.Name)
	return f, nil
}
