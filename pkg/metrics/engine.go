// Package metrics derives distance, ETA, congestion and price figures for
// deliveries from their grid cell relationships.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/picogrid/hexfleet/pkg/aggregate"
	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/models"
)

// Config holds the pricing and travel constants.
type Config struct {
	// Price of one grid step before surcharge.
	BaseRatePerCell float64
	// Surcharge at congestion score 1, as a fraction of the base price.
	SurchargeFactor float64
	// Assumed average traversal speed.
	AverageSpeedKmh float64
}

// DefaultConfig returns the constants used by the demo scenarios.
func DefaultConfig() Config {
	return Config{
		BaseRatePerCell: 1.25,
		SurchargeFactor: 0.5,
		AverageSpeedKmh: 24,
	}
}

// Validate checks the constants.
func (c Config) Validate() error {
	if c.BaseRatePerCell < 0 || math.IsNaN(c.BaseRatePerCell) {
		return errors.New("base_rate_per_cell must be >= 0")
	}
	if c.SurchargeFactor < 0 || math.IsNaN(c.SurchargeFactor) {
		return errors.New("surcharge_factor must be >= 0")
	}
	if c.AverageSpeedKmh <= 0 || math.IsNaN(c.AverageSpeedKmh) {
		return errors.New("average_speed_kmh must be greater than 0")
	}
	return nil
}

// Engine computes per delivery metrics.
type Engine struct {
	cfg    Config
	policy CongestionPolicy
}

// NewEngine creates a metrics engine. A nil policy selects
// OccupancyCongestion with a saturation of 5.
func NewEngine(cfg Config, policy CongestionPolicy) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("metrics config: %w", err)
	}
	if policy == nil {
		policy = OccupancyCongestion{Saturation: 5}
	}
	return &Engine{cfg: cfg, policy: policy}, nil
}

// MinutesPerCell returns the time to cross one grid step at res. Adjacent
// hexagon centers are sqrt(3) edge lengths apart.
func (e *Engine) MinutesPerCell(res int) (float64, error) {
	edge, err := geoindex.EdgeLengthKm(res)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(3) * edge / e.cfg.AverageSpeedKmh * 60, nil
}

// PriceFor returns the price of a trip of distance grid steps at a
// congestion score. The surcharge never lowers the price.
func (e *Engine) PriceFor(distance int, score float64) float64 {
	score = clamp01(score)
	return float64(distance) * e.cfg.BaseRatePerCell * (1 + e.cfg.SurchargeFactor*score)
}

// Compute derives the metrics of a delivery at res using the occupancy in
// agg. agg must have been built at the same resolution.
func (e *Engine) Compute(d models.Delivery, agg aggregate.Snapshot, res int) (models.Metrics, error) {
	pos, err := d.CurrentPosition()
	if err != nil {
		return models.Metrics{}, err
	}
	if !d.Dropoff.Point.Valid() {
		return models.Metrics{}, fmt.Errorf("delivery %s dropoff: %w", d.ID, models.ErrUnavailablePosition)
	}
	if agg.Resolution != res {
		return models.Metrics{}, fmt.Errorf("metrics for %s: aggregate at res %d, requested %d: %w",
			d.ID, agg.Resolution, res, geoindex.ErrInvalidResolution)
	}

	current, err := geoindex.CellForPoint(pos, res)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("metrics for %s: %w", d.ID, err)
	}
	dest, err := geoindex.CellForPoint(d.Dropoff.Point, res)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("metrics for %s: %w", d.ID, err)
	}
	distance, err := geoindex.CellDistance(current, dest)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("metrics for %s: %w", d.ID, err)
	}
	perCell, err := e.MinutesPerCell(res)
	if err != nil {
		return models.Metrics{}, fmt.Errorf("metrics for %s: %w", d.ID, err)
	}

	score := clamp01(e.policy.Score(agg.Occupancy(current)))

	return models.Metrics{
		GridDistance:    distance,
		CongestionScore: score,
		Price:           e.PriceFor(distance, score),
		ETAMinutes:      float64(distance) * perCell,
		Resolution:      res,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
