package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// GeofenceType classifies a geofence.
type GeofenceType string

const (
	GeofenceHub          GeofenceType = "HUB"
	GeofenceRestricted   GeofenceType = "RESTRICTED"
	GeofenceCustomerZone GeofenceType = "CUSTOMER_ZONE"
)

// ParseGeofenceType parses a geofence type case-insensitively.
func ParseGeofenceType(s string) (GeofenceType, error) {
	t := GeofenceType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case GeofenceHub, GeofenceRestricted, GeofenceCustomerZone:
		return t, nil
	}
	return "", fmt.Errorf("unknown geofence type %q: %w", s, ErrConfiguration)
}

// Geofence is a named circular zone. Only Active changes after creation.
type Geofence struct {
	// Unique identifier, a UUID for operator created zones.
	ID string `json:"id" yaml:"id"`
	// Display name.
	Name string `json:"name" yaml:"name"`
	// Center of the circle.
	Center LatLng `json:"center" yaml:"center"`
	// Radius in meters, strictly positive.
	RadiusMeters float64 `json:"radius_m" yaml:"radius_m"`
	// Zone classification.
	Type GeofenceType `json:"type" yaml:"type"`
	// Inactive zones are ignored by the detector.
	Active bool `json:"active" yaml:"active"`
	// Creation time.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate rejects geofences that must never be stored.
func (g Geofence) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("geofence name is required: %w", ErrConfiguration)
	}
	if math.IsNaN(g.RadiusMeters) || math.IsInf(g.RadiusMeters, 0) || g.RadiusMeters <= 0 {
		return fmt.Errorf("geofence %q: radius must be greater than 0, got %v: %w", g.Name, g.RadiusMeters, ErrConfiguration)
	}
	if !g.Center.Valid() {
		return fmt.Errorf("geofence %q: invalid center %s: %w", g.Name, g.Center, ErrConfiguration)
	}
	if _, err := ParseGeofenceType(string(g.Type)); err != nil {
		return fmt.Errorf("geofence %q: %w", g.Name, err)
	}
	return nil
}
