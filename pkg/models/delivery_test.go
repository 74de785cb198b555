package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestInterpolate(t *testing.T) {
	d := Delivery{
		ID:       "D1",
		Status:   StatusOutForDelivery,
		Pickup:   Location{Point: LatLng{Lat: 0, Lng: 0}},
		Dropoff:  Location{Point: LatLng{Lat: 10, Lng: 10}},
		Progress: 0.5,
	}

	pos, err := d.Interpolate()
	if err != nil {
		t.Fatalf("Interpolate() error: %v", err)
	}
	if pos.Lat != 5 || pos.Lng != 5 {
		t.Errorf("Expected (5, 5), got %s", pos)
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	base := Delivery{
		ID:      "D1",
		Status:  StatusOutForDelivery,
		Pickup:  Location{Point: LatLng{Lat: 40.7128, Lng: -74.0060}},
		Dropoff: Location{Point: LatLng{Lat: 40.7336, Lng: -74.0027}},
	}

	for _, p := range []float64{0, 0.25, 0.5, 0.75, 1} {
		d := base
		d.Progress = p
		pos, err := d.Interpolate()
		if err != nil {
			t.Fatalf("progress %v: unexpected error: %v", p, err)
		}
		wantLat := base.Pickup.Point.Lat + (base.Dropoff.Point.Lat-base.Pickup.Point.Lat)*p
		wantLng := base.Pickup.Point.Lng + (base.Dropoff.Point.Lng-base.Pickup.Point.Lng)*p
		if math.Abs(pos.Lat-wantLat) > 1e-12 || math.Abs(pos.Lng-wantLng) > 1e-12 {
			t.Errorf("progress %v: expected (%v, %v), got %s", p, wantLat, wantLng, pos)
		}
	}
}

func TestInterpolateUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		delivery Delivery
	}{
		{
			name: "pending",
			delivery: Delivery{ID: "P", Status: StatusPending,
				Pickup: Location{Point: LatLng{Lat: 1, Lng: 1}}, Dropoff: Location{Point: LatLng{Lat: 2, Lng: 2}}},
		},
		{
			name: "malformed pickup",
			delivery: Delivery{ID: "M", Status: StatusOutForDelivery,
				Pickup: Location{Point: LatLng{Lat: 95, Lng: 1}}, Dropoff: Location{Point: LatLng{Lat: 2, Lng: 2}}},
		},
		{
			name: "nan dropoff",
			delivery: Delivery{ID: "N", Status: StatusOutForDelivery,
				Pickup: Location{Point: LatLng{Lat: 1, Lng: 1}}, Dropoff: Location{Point: LatLng{Lat: math.NaN(), Lng: 2}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.delivery.Interpolate()
			if !errors.Is(err, ErrUnavailablePosition) {
				t.Errorf("Expected ErrUnavailablePosition, got %v", err)
			}
		})
	}
}

func TestGeofenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		fence   Geofence
		wantErr bool
	}{
		{"valid", Geofence{Name: "Hub", Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: 100, Type: GeofenceHub}, false},
		{"zero radius", Geofence{Name: "Hub", Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: 0, Type: GeofenceHub}, true},
		{"negative radius", Geofence{Name: "Hub", Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: -5, Type: GeofenceHub}, true},
		{"missing name", Geofence{Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: 10, Type: GeofenceHub}, true},
		{"unknown type", Geofence{Name: "X", Center: LatLng{Lat: 1, Lng: 1}, RadiusMeters: 10, Type: "PARK"}, true},
		{"bad center", Geofence{Name: "X", Center: LatLng{Lat: 100, Lng: 1}, RadiusMeters: 10, Type: GeofenceHub}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fence.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestSeedDeliveriesValid(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, d := range SeedDeliveries(now) {
		if err := d.Validate(); err != nil {
			t.Errorf("seed delivery %s invalid: %v", d.ID, err)
		}
	}
	for _, g := range SeedGeofences(now) {
		if err := g.Validate(); err != nil {
			t.Errorf("seed geofence %s invalid: %v", g.ID, err)
		}
	}
}

func TestCellIDString(t *testing.T) {
	c := CellID(0x8a2a1072b59ffff)
	if got := c.String(); got != "8a2a1072b59ffff" {
		t.Errorf("Expected 8a2a1072b59ffff, got %s", got)
	}
}

func TestLocationLabel(t *testing.T) {
	tests := []struct {
		loc      Location
		expected string
	}{
		{Location{Name: "Downtown Hub", Code: "DTH"}, "Downtown Hub (DTH)"},
		{Location{Name: "Customer 3"}, "Customer 3"},
	}
	for _, tt := range tests {
		if got := tt.loc.Label(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}
