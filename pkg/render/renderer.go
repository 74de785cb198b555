// Package render defines the frame published after every tick and the
// renderers that consume it.
package render

import (
	"context"
	"errors"
	"time"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Frame is an immutable, fully formed view of one tick. Renderers must not
// modify any of its slices.
type Frame struct {
	Seq        uint64                   `json:"seq"`
	At         time.Time                `json:"at"`
	Zoom       float64                  `json:"zoom"`
	Resolution int                      `json:"resolution"`
	Deliveries []models.Delivery        `json:"deliveries"`
	Cells      []models.GeoCell         `json:"cells"`
	Geofences  []models.Geofence        `json:"geofences"`
	Events     []models.TransitionEvent `json:"events"`
}

// Delivery returns the delivery with the given id.
func (f *Frame) Delivery(id string) (models.Delivery, bool) {
	for _, d := range f.Deliveries {
		if d.ID == id {
			return d, true
		}
	}
	return models.Delivery{}, false
}

// MarkerPosition returns where a cell marker is drawn: the exact position
// of its only member for singleton cells, the cell center otherwise.
func (f *Frame) MarkerPosition(c models.GeoCell) models.LatLng {
	if c.Count() == 1 {
		if d, ok := f.Delivery(c.Members[0]); ok && d.Position != nil {
			return *d.Position
		}
	}
	return c.Center
}

// Renderer consumes frames.
type Renderer interface {
	Render(ctx context.Context, f *Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, f *Frame) error

// Render implements Renderer.
func (fn RendererFunc) Render(ctx context.Context, f *Frame) error {
	return fn(ctx, f)
}

// Multi fans a frame out to every renderer and joins their errors.
type Multi []Renderer

// Render implements Renderer.
func (m Multi) Render(ctx context.Context, f *Frame) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
