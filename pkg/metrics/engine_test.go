package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/picogrid/hexfleet/pkg/aggregate"
	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/models"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func delivery(id string, pos, dropoff models.LatLng) models.Delivery {
	return models.Delivery{
		ID:       id,
		Status:   models.StatusOutForDelivery,
		Dropoff:  models.Location{Point: dropoff},
		Position: &pos,
	}
}

func TestPriceSurchargeMonotonic(t *testing.T) {
	e := newEngine(t)
	for _, dist := range []int{0, 1, 7, 120} {
		low := e.PriceFor(dist, 0.1)
		high := e.PriceFor(dist, 0.8)
		free := e.PriceFor(dist, 0)
		if high < low {
			t.Errorf("dist %d: price(0.8)=%v < price(0.1)=%v", dist, high, low)
		}
		if low < free || free < 0 {
			t.Errorf("dist %d: surcharge lowered price: %v < %v", dist, low, free)
		}
	}
}

func TestOccupancyCongestionMonotonic(t *testing.T) {
	p := OccupancyCongestion{Saturation: 5}
	prev := -1.0
	for n := 0; n <= 12; n++ {
		s := p.Score(n)
		if s < 0 || s > 1 {
			t.Fatalf("score %v outside [0,1] for occupancy %d", s, n)
		}
		if s < prev {
			t.Fatalf("score decreased at occupancy %d: %v < %v", n, s, prev)
		}
		prev = s
	}
	if p.Score(1) != 0 {
		t.Errorf("Expected lone delivery score 0, got %v", p.Score(1))
	}
	if p.Score(5) != 1 {
		t.Errorf("Expected saturated score 1, got %v", p.Score(5))
	}
}

func TestRandomCongestionRange(t *testing.T) {
	p := NewRandomCongestion(7)
	for i := 0; i < 500; i++ {
		if s := p.Score(i); s < 0 || s > 1 {
			t.Fatalf("score %v outside [0,1]", s)
		}
	}
}

func TestComputeMetrics(t *testing.T) {
	e := newEngine(t)
	pickup := models.LatLng{Lat: 40.7128, Lng: -74.0060}
	dropoff := models.LatLng{Lat: 40.7336, Lng: -74.0027}

	fleet := []models.Delivery{
		delivery("A", pickup, dropoff),
		delivery("B", pickup, dropoff),
		delivery("C", pickup, dropoff),
	}
	const res = 9
	agg, err := aggregate.AggregateAt(fleet, res)
	if err != nil {
		t.Fatal(err)
	}

	m, err := e.Compute(fleet[0], agg, res)
	if err != nil {
		t.Fatalf("Compute() error: %v", err)
	}

	from, _ := geoindex.CellForPoint(pickup, res)
	to, _ := geoindex.CellForPoint(dropoff, res)
	want, _ := geoindex.CellDistance(from, to)
	if m.GridDistance != want || want == 0 {
		t.Errorf("Expected grid distance %d (>0), got %d", want, m.GridDistance)
	}
	if m.CongestionScore != 0.5 {
		t.Errorf("Expected congestion 0.5 for 3 sharing a cell, got %v", m.CongestionScore)
	}
	if got := e.PriceFor(want, 0.5); m.Price != got {
		t.Errorf("Expected price %v, got %v", got, m.Price)
	}
	perCell, _ := e.MinutesPerCell(res)
	if math.Abs(m.ETAMinutes-float64(want)*perCell) > 1e-9 {
		t.Errorf("Expected ETA %v, got %v", float64(want)*perCell, m.ETAMinutes)
	}
	if m.Resolution != res {
		t.Errorf("Expected resolution %d, got %d", res, m.Resolution)
	}
}

func TestComputeAtDestination(t *testing.T) {
	e := newEngine(t)
	p := models.LatLng{Lat: 40.7336, Lng: -74.0027}
	d := delivery("A", p, p)
	agg, _ := aggregate.AggregateAt([]models.Delivery{d}, 10)

	m, err := e.Compute(d, agg, 10)
	if err != nil {
		t.Fatal(err)
	}
	if m.GridDistance != 0 || m.Price != 0 || m.ETAMinutes != 0 {
		t.Errorf("Expected zero metrics at destination, got %+v", m)
	}
}

func TestComputeErrors(t *testing.T) {
	e := newEngine(t)
	p := models.LatLng{Lat: 40.7128, Lng: -74.0060}
	d := delivery("A", p, p)
	agg, _ := aggregate.AggregateAt([]models.Delivery{d}, 9)

	if _, err := e.Compute(d, agg, 10); !errors.Is(err, geoindex.ErrInvalidResolution) {
		t.Errorf("Expected ErrInvalidResolution, got %v", err)
	}

	pending := models.Delivery{ID: "P", Status: models.StatusPending}
	if _, err := e.Compute(pending, agg, 9); !errors.Is(err, models.ErrUnavailablePosition) {
		t.Errorf("Expected ErrUnavailablePosition, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"negative rate", Config{BaseRatePerCell: -1, AverageSpeedKmh: 10}, true},
		{"negative surcharge", Config{SurchargeFactor: -0.1, AverageSpeedKmh: 10}, true},
		{"zero speed", Config{BaseRatePerCell: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
