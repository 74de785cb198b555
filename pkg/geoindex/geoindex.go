// Package geoindex wraps the H3 hexagonal grid. Every function is pure and
// safe to call from any goroutine.
package geoindex

import (
	"errors"
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"

	"github.com/picogrid/hexfleet/pkg/models"
)

const (
	// MinResolution and MaxResolution bound the resolutions chosen for a zoom level.
	MinResolution = 3
	MaxResolution = 12
)

// ErrInvalidResolution is returned for an out of range resolution or for an
// operation across cells of different resolutions.
var ErrInvalidResolution = errors.New("invalid resolution")

// CheckResolution reports whether res is a valid grid resolution.
func CheckResolution(res int) error {
	if res < 0 || res > h3.MaxResolution {
		return fmt.Errorf("resolution %d outside [0,%d]: %w", res, h3.MaxResolution, ErrInvalidResolution)
	}
	return nil
}

func toCell(id models.CellID) (h3.Cell, error) {
	c := h3.Cell(id)
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid cell %s", id)
	}
	return c, nil
}

func fromLatLng(ll h3.LatLng) models.LatLng {
	return models.LatLng{Lat: ll.Lat, Lng: ll.Lng}
}

// CellForPoint returns the cell containing p at the given resolution.
func CellForPoint(p models.LatLng, res int) (models.CellID, error) {
	if err := CheckResolution(res); err != nil {
		return 0, err
	}
	if !p.Valid() {
		return 0, fmt.Errorf("point %s: %w", p, models.ErrUnavailablePosition)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("cell for %s at res %d: %w", p, res, err)
	}
	return models.CellID(c), nil
}

// CellCenter returns the centroid of a cell.
func CellCenter(id models.CellID) (models.LatLng, error) {
	c, err := toCell(id)
	if err != nil {
		return models.LatLng{}, err
	}
	ll, err := h3.CellToLatLng(c)
	if err != nil {
		return models.LatLng{}, fmt.Errorf("center of %s: %w", id, err)
	}
	return fromLatLng(ll), nil
}

// CellBoundary returns the polygon of a cell as a closed ring: the first
// vertex is repeated at the end.
func CellBoundary(id models.CellID) ([]models.LatLng, error) {
	c, err := toCell(id)
	if err != nil {
		return nil, err
	}
	b, err := h3.CellToBoundary(c)
	if err != nil {
		return nil, fmt.Errorf("boundary of %s: %w", id, err)
	}
	ring := make([]models.LatLng, 0, len(b)+1)
	for _, v := range b {
		ring = append(ring, fromLatLng(v))
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

// Resolution returns the resolution of a cell.
func Resolution(id models.CellID) (int, error) {
	c, err := toCell(id)
	if err != nil {
		return 0, err
	}
	return c.Resolution(), nil
}

// CellDistance returns the number of grid steps between two cells of the
// same resolution. Callers must normalize resolution first.
func CellDistance(a, b models.CellID) (int, error) {
	ca, err := toCell(a)
	if err != nil {
		return 0, err
	}
	cb, err := toCell(b)
	if err != nil {
		return 0, err
	}
	if ca.Resolution() != cb.Resolution() {
		return 0, fmt.Errorf("distance %s (res %d) to %s (res %d): %w",
			a, ca.Resolution(), b, cb.Resolution(), ErrInvalidResolution)
	}
	if ca == cb {
		return 0, nil
	}
	d, err := h3.GridDistance(ca, cb)
	if err != nil {
		return 0, fmt.Errorf("distance %s to %s: %w", a, b, err)
	}
	return d, nil
}

// Neighbors returns every cell within k grid steps of id, including id.
func Neighbors(id models.CellID, k int) ([]models.CellID, error) {
	c, err := toCell(id)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		k = 0
	}
	disk, err := h3.GridDisk(c, k)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %s: %w", id, err)
	}
	out := make([]models.CellID, 0, len(disk))
	for _, n := range disk {
		out = append(out, models.CellID(n))
	}
	return out, nil
}

// ResolutionForZoom maps a web map zoom level to a grid resolution. The
// mapping is a non-decreasing step function clamped to
// [MinResolution, MaxResolution].
func ResolutionForZoom(zoom float64) int {
	switch {
	case math.IsNaN(zoom) || zoom < MinResolution+1:
		return MinResolution
	case zoom >= MaxResolution+1:
		return MaxResolution
	}
	return int(math.Floor(zoom)) - 1
}

// EdgeLengthKm returns the average hexagon edge length at a resolution.
func EdgeLengthKm(res int) (float64, error) {
	if err := CheckResolution(res); err != nil {
		return 0, err
	}
	km, err := h3.HexagonEdgeLengthAvgKm(res)
	if err != nil {
		return 0, fmt.Errorf("edge length at res %d: %w", res, err)
	}
	return km, nil
}

// ParseCell parses a hexadecimal cell token.
func ParseCell(s string) (models.CellID, error) {
	c := h3.Cell(h3.IndexFromString(s))
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid cell token %q", s)
	}
	return models.CellID(c), nil
}
