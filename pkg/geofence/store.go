package geofence

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/hexfleet/pkg/models"
)

// Store holds the geofence list. Every mutation replaces the list, so a
// slice returned by List is never modified afterwards.
type Store struct {
	mu     sync.RWMutex
	fences []models.Geofence
	now    func() time.Time
}

// NewStore creates a store seeded with fences. Invalid fences are rejected.
func NewStore(fences ...models.Geofence) (*Store, error) {
	s := &Store{now: time.Now}
	if err := s.Replace(fences); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps the whole list after validating every fence. Fences without
// an id get one.
func (s *Store) Replace(fences []models.Geofence) error {
	next := make([]models.Geofence, 0, len(fences))
	seen := make(map[string]bool, len(fences))
	for _, f := range fences {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if seen[f.ID] {
			return fmt.Errorf("geofence id %s is duplicated: %w", f.ID, models.ErrConfiguration)
		}
		seen[f.ID] = true
		next = append(next, f)
	}

	s.mu.Lock()
	s.fences = next
	s.mu.Unlock()
	return nil
}

// Create validates and appends a new active fence.
func (s *Store) Create(name string, center models.LatLng, radiusMeters float64, t models.GeofenceType) (models.Geofence, error) {
	f := models.Geofence{
		ID:           uuid.NewString(),
		Name:         name,
		Center:       center,
		RadiusMeters: radiusMeters,
		Type:         t,
		Active:       true,
		CreatedAt:    s.now(),
	}
	if err := f.Validate(); err != nil {
		return models.Geofence{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Geofence, len(s.fences), len(s.fences)+1)
	copy(next, s.fences)
	s.fences = append(next, f)
	return f, nil
}

// Toggle flips the active flag of a fence and returns the updated fence.
func (s *Store) Toggle(id string) (models.Geofence, error) {
	return s.update(id, func(f *models.Geofence) { f.Active = !f.Active })
}

func (s *Store) update(id string, apply func(*models.Geofence)) (models.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Geofence{}, fmt.Errorf("geofence %s: %w", id, models.ErrNotFound)
	}
	next := make([]models.Geofence, len(s.fences))
	copy(next, s.fences)
	apply(&next[idx])
	s.fences = next
	return next[idx], nil
}

// Delete removes a fence.
func (s *Store) Delete(id string) (models.Geofence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Geofence{}, fmt.Errorf("geofence %s: %w", id, models.ErrNotFound)
	}
	removed := s.fences[idx]
	next := make([]models.Geofence, 0, len(s.fences)-1)
	next = append(next, s.fences[:idx]...)
	next = append(next, s.fences[idx+1:]...)
	s.fences = next
	return removed, nil
}

// Get returns a fence by id.
func (s *Store) Get(id string) (models.Geofence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.fences[idx], true
	}
	return models.Geofence{}, false
}

// List returns the current list. Callers must not modify it.
func (s *Store) List() []models.Geofence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fences
}

func (s *Store) indexOf(id string) int {
	for i, f := range s.fences {
		if f.ID == id {
			return i
		}
	}
	return -1
}
