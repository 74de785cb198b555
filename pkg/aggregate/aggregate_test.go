package aggregate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/picogrid/hexfleet/pkg/models"
)

func positioned(id string, lat, lng float64) models.Delivery {
	p := models.LatLng{Lat: lat, Lng: lng}
	return models.Delivery{ID: id, Status: models.StatusOutForDelivery, Position: &p}
}

func randomFleet(r *rand.Rand, n int) []models.Delivery {
	out := make([]models.Delivery, 0, n)
	for i := 0; i < n; i++ {
		if i%7 == 0 {
			out = append(out, models.Delivery{ID: fmt.Sprintf("P-%d", i), Status: models.StatusPending})
			continue
		}
		out = append(out, positioned(fmt.Sprintf("D-%d", i),
			40.70+r.Float64()*0.08, -74.02+r.Float64()*0.08))
	}
	return out
}

func TestAggregateConservation(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	fleet := randomFleet(r, 120)

	withPosition := 0
	for _, d := range fleet {
		if d.Position != nil {
			withPosition++
		}
	}

	for zoom := 0.0; zoom <= 18; zoom++ {
		snap, err := Aggregate(fleet, zoom)
		if err != nil {
			t.Fatalf("zoom %v: unexpected error: %v", zoom, err)
		}
		if got := snap.Total(); got != withPosition {
			t.Errorf("zoom %v: expected %d members, got %d", zoom, withPosition, got)
		}

		seen := make(map[string]models.CellID)
		for id, cell := range snap.Cells {
			if cell.ID != id {
				t.Errorf("cell keyed %s carries id %s", id, cell.ID)
			}
			if cell.Resolution != snap.Resolution {
				t.Errorf("cell %s has resolution %d, expected %d", id, cell.Resolution, snap.Resolution)
			}
			for _, m := range cell.Members {
				if prev, dup := seen[m]; dup {
					t.Errorf("zoom %v: %s in both %s and %s", zoom, m, prev, id)
				}
				seen[m] = id
			}
		}
	}
}

func TestAggregateSkipsPending(t *testing.T) {
	fleet := []models.Delivery{
		positioned("A", 40.7128, -74.0060),
		{ID: "B", Status: models.StatusPending},
	}
	snap, err := Aggregate(fleet, 12)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Total() != 1 {
		t.Errorf("Expected 1 member, got %d", snap.Total())
	}
	if _, ok := snap.CellOf("B"); ok {
		t.Error("pending delivery should not be placed in a cell")
	}
	cell, ok := snap.CellOf("A")
	if !ok {
		t.Fatal("Expected A to be placed")
	}
	if snap.Occupancy(cell) != 1 {
		t.Errorf("Expected occupancy 1, got %d", snap.Occupancy(cell))
	}
}

func TestAggregateClusters(t *testing.T) {
	fleet := []models.Delivery{
		positioned("C", 40.71280, -74.00600),
		positioned("A", 40.71280, -74.00600),
		positioned("B", 40.71280, -74.00600),
		positioned("Z", 40.77360, -73.95660),
	}

	snap, err := AggregateAt(fleet, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Cells) != 2 {
		t.Fatalf("Expected 2 cells, got %d", len(snap.Cells))
	}

	sorted := snap.Sorted()
	top := sorted[0]
	if top.Count() != 3 {
		t.Fatalf("Expected top cell count 3, got %d", top.Count())
	}
	want := []string{"A", "B", "C"}
	for i, id := range want {
		if top.Members[i] != id {
			t.Errorf("Expected sorted members %v, got %v", want, top.Members)
			break
		}
	}
	if top.Density != 1 {
		t.Errorf("Expected top density 1, got %v", top.Density)
	}
	if got := sorted[1].Density; got < 0.33 || got > 0.34 {
		t.Errorf("Expected singleton density 1/3, got %v", got)
	}
}

func TestAggregateInvalidResolution(t *testing.T) {
	if _, err := AggregateAt(nil, 20); err == nil {
		t.Error("Expected error for resolution 20")
	}
}
