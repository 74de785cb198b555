package models

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a delivery.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPickedUp       Status = "PICKED_UP"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelayed        Status = "DELAYED"
	StatusDelivered      Status = "DELIVERED"
)

// IsActive reports whether deliveries in this status are advanced by the tracker.
func (s Status) IsActive() bool {
	switch s {
	case StatusPickedUp, StatusOutForDelivery, StatusDelayed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusOutForDelivery, StatusDelayed, StatusDelivered:
		return true
	}
	return false
}

// Priority affects rendering emphasis only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// VehicleType is the kind of vehicle carrying a delivery.
type VehicleType string

const (
	VehicleVan      VehicleType = "van"
	VehicleBike     VehicleType = "bike"
	VehicleTruck    VehicleType = "truck"
	VehicleElectric VehicleType = "electric"
)

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the coordinate is finite and within the WGS84 range.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p LatLng) String() string {
	return fmt.Sprintf("(%.5f, %.5f)", p.Lat, p.Lng)
}

// Lerp returns the point a fraction t of the way from p to q on a straight
// line in degree space.
func (p LatLng) Lerp(q LatLng, t float64) LatLng {
	return LatLng{
		Lat: p.Lat + (q.Lat-p.Lat)*t,
		Lng: p.Lng + (q.Lng-p.Lng)*t,
	}
}

// Location is a named geographic point used as a pickup or dropoff.
type Location struct {
	// Short identifier of the site, e.g. "L1".
	ID string `json:"id" yaml:"id"`
	// Human readable label shown next to the marker.
	Name string `json:"name" yaml:"name"`
	// Short site code, e.g. "DTH".
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
	// Optional street address.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Coordinate of the site.
	Point LatLng `json:"point" yaml:"point"`
}

// Label returns the name followed by the code when one is set.
func (l Location) Label() string {
	if l.Code == "" {
		return l.Name
	}
	return l.Name + " (" + l.Code + ")"
}

// Delivery is a tracked movement unit travelling from Pickup to Dropoff.
type Delivery struct {
	// Unique identifier, e.g. "DEL-9921".
	ID string `json:"id" yaml:"id"`
	// Current lifecycle status.
	Status Status `json:"status" yaml:"status"`
	// Origin of the segment.
	Pickup Location `json:"pickup" yaml:"pickup"`
	// Destination of the segment.
	Dropoff Location `json:"dropoff" yaml:"dropoff"`
	// Name of the assigned driver.
	DriverName string `json:"driver_name" yaml:"driver_name"`
	// Vehicle carrying the delivery.
	VehicleType VehicleType `json:"vehicle_type" yaml:"vehicle_type"`
	// Rendering emphasis.
	Priority Priority `json:"priority" yaml:"priority"`
	// Fractional completion of the pickup to dropoff segment, in [0,1].
	Progress float64 `json:"progress" yaml:"progress"`
	// Wall clock time the delivery left the pickup.
	StartTime time.Time `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	// Planned arrival time, informational only.
	EstimatedArrival time.Time `json:"estimated_arrival,omitempty" yaml:"estimated_arrival,omitempty"`

	// Position is the interpolated position computed at the last tick. It is
	// a cache of Interpolate and nil while the delivery has no position.
	Position *LatLng `json:"position,omitempty" yaml:"-"`
	// CurrentCell is the grid cell containing Position at the last tick.
	CurrentCell CellID `json:"current_cell,omitempty" yaml:"-"`
	// Metrics holds the derived metrics of the last tick.
	Metrics *Metrics `json:"metrics,omitempty" yaml:"-"`
}

// Interpolate derives the current position from the endpoints and progress.
// Pending deliveries and deliveries with malformed endpoints have no
// position and return ErrUnavailablePosition.
func (d Delivery) Interpolate() (LatLng, error) {
	if d.Status == StatusPending {
		return LatLng{}, fmt.Errorf("delivery %s is pending: %w", d.ID, ErrUnavailablePosition)
	}
	if !d.Pickup.Point.Valid() || !d.Dropoff.Point.Valid() {
		return LatLng{}, fmt.Errorf("delivery %s has malformed endpoints: %w", d.ID, ErrUnavailablePosition)
	}
	if d.Status == StatusDelivered || d.Progress >= 1 {
		return d.Dropoff.Point, nil
	}
	p := d.Progress
	if p < 0 {
		p = 0
	}
	return d.Pickup.Point.Lerp(d.Dropoff.Point, p), nil
}

// CurrentPosition returns the cached position of the last tick.
func (d Delivery) CurrentPosition() (LatLng, error) {
	if d.Position == nil {
		return LatLng{}, fmt.Errorf("delivery %s: %w", d.ID, ErrUnavailablePosition)
	}
	return *d.Position, nil
}

// Clone returns a copy that shares no pointers with d.
func (d Delivery) Clone() Delivery {
	out := d
	if d.Position != nil {
		p := *d.Position
		out.Position = &p
	}
	if d.Metrics != nil {
		m := *d.Metrics
		out.Metrics = &m
	}
	return out
}

// Validate checks the static fields of a delivery.
func (d Delivery) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("delivery id is required: %w", ErrConfiguration)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("delivery %s: unknown status %q: %w", d.ID, d.Status, ErrConfiguration)
	}
	if d.Progress < 0 || d.Progress > 1 || math.IsNaN(d.Progress) {
		return fmt.Errorf("delivery %s: progress %v outside [0,1]: %w", d.ID, d.Progress, ErrConfiguration)
	}
	if !d.Pickup.Point.Valid() {
		return fmt.Errorf("delivery %s: invalid pickup %s: %w", d.ID, d.Pickup.Point, ErrConfiguration)
	}
	if !d.Dropoff.Point.Valid() {
		return fmt.Errorf("delivery %s: invalid dropoff %s: %w", d.ID, d.Dropoff.Point, ErrConfiguration)
	}
	return nil
}
