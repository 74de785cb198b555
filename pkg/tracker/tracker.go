// Package tracker advances deliveries along their pickup to dropoff segment.
// Every operation returns a new Snapshot and leaves its input untouched, so a
// published snapshot can be read by any number of goroutines.
package tracker

import (
	"fmt"
	"math"
	"time"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Snapshot is an immutable view of the fleet at one tick.
type Snapshot struct {
	Seq        uint64
	At         time.Time
	Deliveries []models.Delivery
}

// Rates scales the per tick progress step by status.
type Rates struct {
	// Delayed deliveries advance at this fraction of the nominal step.
	Delayed float64
}

// DefaultRates returns the rates used when none are configured.
func DefaultRates() Rates {
	return Rates{Delayed: 0.5}
}

func (r Rates) factor(s models.Status) float64 {
	if s == models.StatusDelayed {
		if r.Delayed < 0 || math.IsNaN(r.Delayed) {
			return 0
		}
		return r.Delayed
	}
	return 1
}

// NewSnapshot builds the first snapshot of a fleet with positions computed
// from the current progress. Deliveries without a position keep a nil one.
func NewSnapshot(deliveries []models.Delivery, at time.Time) Snapshot {
	out := make([]models.Delivery, len(deliveries))
	for i, d := range deliveries {
		d = d.Clone()
		d.Position = nil
		if pos, err := d.Interpolate(); err == nil {
			d.Position = &pos
		}
		out[i] = d
	}
	return Snapshot{At: at, Deliveries: out}
}

// Tick advances every active delivery by delta progress. A delivery that
// reaches progress 1 becomes DELIVERED and sits exactly on its dropoff.
// Pending and delivered entries are copied unchanged.
func Tick(snap Snapshot, delta float64, rates Rates, at time.Time) Snapshot {
	if delta < 0 || math.IsNaN(delta) {
		delta = 0
	}

	out := make([]models.Delivery, len(snap.Deliveries))
	for i, d := range snap.Deliveries {
		d = d.Clone()
		if d.Status.IsActive() {
			advance(&d, delta*rates.factor(d.Status))
		}
		out[i] = d
	}

	return Snapshot{Seq: snap.Seq + 1, At: at, Deliveries: out}
}

func advance(d *models.Delivery, step float64) {
	d.Progress = math.Min(1, d.Progress+step)
	if d.Status == models.StatusPickedUp && d.Progress > 0 {
		d.Status = models.StatusOutForDelivery
	}
	if d.Progress >= 1 {
		d.Progress = 1
		d.Status = models.StatusDelivered
	}

	pos, err := d.Interpolate()
	if err != nil {
		d.Position = nil
		return
	}
	d.Position = &pos
}

// Find returns the delivery with the given id.
func (s Snapshot) Find(id string) (models.Delivery, bool) {
	for _, d := range s.Deliveries {
		if d.ID == id {
			return d, true
		}
	}
	return models.Delivery{}, false
}

// Done reports whether every delivery reached the terminal state.
func (s Snapshot) Done() bool {
	for _, d := range s.Deliveries {
		if !d.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Counts returns the number of deliveries per status.
func (s Snapshot) Counts() map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, d := range s.Deliveries {
		counts[d.Status]++
	}
	return counts
}

// Dispatch moves a pending delivery to PICKED_UP and gives it a position.
func Dispatch(snap Snapshot, id string) (Snapshot, error) {
	return transition(snap, id, func(d *models.Delivery) error {
		if d.Status != models.StatusPending {
			return fmt.Errorf("delivery %s is %s, not %s: %w", id, d.Status, models.StatusPending, models.ErrInvalidTransition)
		}
		d.Status = models.StatusPickedUp
		return nil
	})
}

// MarkDelayed flags an active delivery as DELAYED.
func MarkDelayed(snap Snapshot, id string) (Snapshot, error) {
	return transition(snap, id, func(d *models.Delivery) error {
		if !d.Status.IsActive() {
			return fmt.Errorf("delivery %s is %s and cannot be delayed: %w", id, d.Status, models.ErrInvalidTransition)
		}
		d.Status = models.StatusDelayed
		return nil
	})
}

// Resume puts a delayed delivery back out for delivery.
func Resume(snap Snapshot, id string) (Snapshot, error) {
	return transition(snap, id, func(d *models.Delivery) error {
		if d.Status != models.StatusDelayed {
			return fmt.Errorf("delivery %s is %s, not %s: %w", id, d.Status, models.StatusDelayed, models.ErrInvalidTransition)
		}
		d.Status = models.StatusOutForDelivery
		return nil
	})
}

func transition(snap Snapshot, id string, apply func(*models.Delivery) error) (Snapshot, error) {
	out := make([]models.Delivery, len(snap.Deliveries))
	found := false
	for i, d := range snap.Deliveries {
		d = d.Clone()
		if d.ID == id {
			found = true
			if err := apply(&d); err != nil {
				return snap, err
			}
			d.Position = nil
			if pos, err := d.Interpolate(); err == nil {
				d.Position = &pos
			}
		}
		out[i] = d
	}
	if !found {
		return snap, fmt.Errorf("delivery %s: %w", id, models.ErrNotFound)
	}
	return Snapshot{Seq: snap.Seq, At: snap.At, Deliveries: out}, nil
}
