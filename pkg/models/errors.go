package models

import "errors"

var (
	// ErrUnavailablePosition is returned when a position is requested for a
	// delivery that has none, such as a pending delivery or one with
	// malformed coordinates.
	ErrUnavailablePosition = errors.New("position unavailable")

	// ErrConfiguration is returned for malformed input such as a geofence
	// with a non-positive radius.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound is returned when an id does not match any known record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a lifecycle change does not
	// apply to the current status of a delivery.
	ErrInvalidTransition = errors.New("invalid status transition")
)
