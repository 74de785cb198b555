package geofence

import "sort"

// Membership is the set of geofence ids a delivery is currently inside.
type Membership map[string]struct{}

// Has reports whether the fence id is in the set.
func (m Membership) Has(id string) bool {
	_, ok := m[id]
	return ok
}

// IDs returns the sorted fence ids.
func (m Membership) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m Membership) clone() Membership {
	out := make(Membership, len(m))
	for id := range m {
		out[id] = struct{}{}
	}
	return out
}

// Memberships holds the membership set of every delivery. Sets are created
// lazily on first evaluation.
type Memberships map[string]Membership

// Of returns the membership set of a delivery, nil if never evaluated.
func (ms Memberships) Of(entityID string) Membership {
	return ms[entityID]
}

// Forget removes a fence from every delivery's set without emitting any
// event. It runs when a fence is deactivated or deleted.
func (ms Memberships) Forget(fenceID string) int {
	n := 0
	for _, m := range ms {
		if m.Has(fenceID) {
			delete(m, fenceID)
			n++
		}
	}
	return n
}

// Inside returns the ids of deliveries currently inside a fence, sorted.
func (ms Memberships) Inside(fenceID string) []string {
	var ids []string
	for entity, m := range ms {
		if m.Has(fenceID) {
			ids = append(ids, entity)
		}
	}
	sort.Strings(ids)
	return ids
}
