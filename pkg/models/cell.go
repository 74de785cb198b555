package models

import "strconv"

// CellID is an opaque hexagonal grid cell index.
type CellID uint64

// String returns the canonical hexadecimal token for the cell.
func (c CellID) String() string {
	return strconv.FormatUint(uint64(c), 16)
}

// GeoCell is a per-cell cluster of deliveries. It is rebuilt on every
// aggregation and never patched incrementally.
type GeoCell struct {
	// Grid cell index.
	ID CellID `json:"id"`
	// Grid resolution the cell belongs to.
	Resolution int `json:"resolution"`
	// IDs of the deliveries whose position falls in the cell, sorted.
	Members []string `json:"members"`
	// Centroid of the cell.
	Center LatLng `json:"center"`
	// Count relative to the most occupied cell of the same aggregation, in (0,1].
	Density float64 `json:"density"`
}

// Count returns the number of members in the cell.
func (c GeoCell) Count() int {
	return len(c.Members)
}

// Metrics are the per-delivery figures derived on every tick.
type Metrics struct {
	// Grid steps between the current cell and the dropoff cell.
	GridDistance int `json:"grid_distance"`
	// Local traffic pressure in [0,1].
	CongestionScore float64 `json:"congestion_score"`
	// Distance based price including the congestion surcharge.
	Price float64 `json:"price"`
	// Estimated minutes to the dropoff.
	ETAMinutes float64 `json:"eta_minutes"`
	// Resolution the figures were computed at.
	Resolution int `json:"resolution"`
}
