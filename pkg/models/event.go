package models

import "time"

// TransitionKind is the direction of a geofence transition.
type TransitionKind string

const (
	TransitionEntered TransitionKind = "ENTERED"
	TransitionExited  TransitionKind = "EXITED"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TransitionEvent is emitted once per real enter or exit of a geofence.
type TransitionEvent struct {
	ID           string         `json:"id"`
	EntityID     string         `json:"entity_id"`
	GeofenceID   string         `json:"geofence_id"`
	GeofenceName string         `json:"geofence_name"`
	GeofenceType GeofenceType   `json:"geofence_type"`
	Kind         TransitionKind `json:"kind"`
	Severity     Severity       `json:"severity"`
	Position     LatLng         `json:"position"`
	At           time.Time      `json:"at"`
}

// SeverityFor maps a zone type and transition kind to a notification severity.
func SeverityFor(t GeofenceType, kind TransitionKind) Severity {
	switch t {
	case GeofenceRestricted:
		if kind == TransitionEntered {
			return SeverityCritical
		}
		return SeverityInfo
	case GeofenceCustomerZone:
		if kind == TransitionEntered {
			return SeveritySuccess
		}
		return SeverityInfo
	case GeofenceHub:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}
