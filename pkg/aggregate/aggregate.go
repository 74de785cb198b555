// Package aggregate buckets delivery positions into grid cells.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/models"
)

// Snapshot is the result of one aggregation pass.
type Snapshot struct {
	Zoom       float64
	Resolution int
	Cells      map[models.CellID]models.GeoCell

	byEntity map[string]models.CellID
}

// Aggregate groups deliveries into cells at the resolution for zoom.
func Aggregate(deliveries []models.Delivery, zoom float64) (Snapshot, error) {
	snap, err := AggregateAt(deliveries, geoindex.ResolutionForZoom(zoom))
	snap.Zoom = zoom
	return snap, err
}

// AggregateAt groups deliveries into cells at an explicit resolution.
// Deliveries without a defined position are skipped.
func AggregateAt(deliveries []models.Delivery, res int) (Snapshot, error) {
	snap := Snapshot{
		Resolution: res,
		Cells:      make(map[models.CellID]models.GeoCell),
		byEntity:   make(map[string]models.CellID),
	}
	if err := geoindex.CheckResolution(res); err != nil {
		return snap, fmt.Errorf("aggregate: %w", err)
	}

	members := make(map[models.CellID][]string)
	for _, d := range deliveries {
		pos, err := d.CurrentPosition()
		if err != nil {
			continue
		}
		cell, err := geoindex.CellForPoint(pos, res)
		if err != nil {
			continue
		}
		members[cell] = append(members[cell], d.ID)
		snap.byEntity[d.ID] = cell
	}

	maxCount := 0
	for _, ids := range members {
		if len(ids) > maxCount {
			maxCount = len(ids)
		}
	}

	for cell, ids := range members {
		center, err := geoindex.CellCenter(cell)
		if err != nil {
			return snap, fmt.Errorf("aggregate: %w", err)
		}
		sort.Strings(ids)
		snap.Cells[cell] = models.GeoCell{
			ID:         cell,
			Resolution: res,
			Members:    ids,
			Center:     center,
			Density:    float64(len(ids)) / float64(maxCount),
		}
	}

	return snap, nil
}

// Total returns the number of deliveries placed in a cell.
func (s Snapshot) Total() int {
	n := 0
	for _, c := range s.Cells {
		n += c.Count()
	}
	return n
}

// Occupancy returns how many deliveries share the cell.
func (s Snapshot) Occupancy(cell models.CellID) int {
	return s.Cells[cell].Count()
}

// CellOf returns the cell a delivery was placed in.
func (s Snapshot) CellOf(entityID string) (models.CellID, bool) {
	c, ok := s.byEntity[entityID]
	return c, ok
}

// Sorted returns the cells ordered by count descending, then by id.
func (s Snapshot) Sorted() []models.GeoCell {
	out := make([]models.GeoCell, 0, len(s.Cells))
	for _, c := range s.Cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count() != out[j].Count() {
			return out[i].Count() > out[j].Count()
		}
		return out[i].ID < out[j].ID
	})
	return out
}
