package geofence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Detector compares delivery positions against circular geofences and
// reports transitions.
type Detector struct {
	now func() time.Time
}

// NewDetector returns a detector stamping events with the wall clock.
func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Evaluate returns the updated membership set of d and one event per real
// transition. prev is never modified. Inactive fences are ignored and any
// membership in a fence that is no longer active is dropped silently.
func (det *Detector) Evaluate(d models.Delivery, fences []models.Geofence, prev Membership) (Membership, []models.TransitionEvent, error) {
	pos, err := d.CurrentPosition()
	if err != nil {
		return prev, nil, err
	}

	next := make(Membership, len(prev))
	var events []models.TransitionEvent

	for _, f := range fences {
		if !f.Active {
			continue
		}

		inside := Distance(pos, f.Center) <= f.RadiusMeters
		was := prev.Has(f.ID)

		switch {
		case inside && !was:
			events = append(events, det.event(d.ID, f, models.TransitionEntered, pos))
		case !inside && was:
			events = append(events, det.event(d.ID, f, models.TransitionExited, pos))
		}
		if inside {
			next[f.ID] = struct{}{}
		}
	}

	return next, events, nil
}

// Prime computes the membership set of d without emitting events. It seeds
// deliveries that already start inside a fence.
func (det *Detector) Prime(d models.Delivery, fences []models.Geofence) (Membership, error) {
	m, _, err := det.Evaluate(d, fences, nil)
	if err != nil {
		return nil, fmt.Errorf("prime %s: %w", d.ID, err)
	}
	return m, nil
}

func (det *Detector) event(entityID string, f models.Geofence, kind models.TransitionKind, pos models.LatLng) models.TransitionEvent {
	return models.TransitionEvent{
		ID:           uuid.NewString(),
		EntityID:     entityID,
		GeofenceID:   f.ID,
		GeofenceName: f.Name,
		GeofenceType: f.Type,
		Kind:         kind,
		Severity:     models.SeverityFor(f.Type, kind),
		Position:     pos,
		At:           det.now(),
	}
}
