package geofence

import (
	"math"

	"github.com/picogrid/hexfleet/pkg/models"
)

// MetersPerDegreeLat is the length of one degree of latitude.
const MetersPerDegreeLat = 111320.0

// Distance returns the equirectangular distance in meters between a and b.
// Only valid over short ranges.
func Distance(a, b models.LatLng) float64 {
	midLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	dy := (b.Lat - a.Lat) * MetersPerDegreeLat
	dx := (b.Lng - a.Lng) * MetersPerDegreeLat * math.Cos(midLat)
	return math.Sqrt(dx*dx + dy*dy)
}

// Offset returns the point north meters north and east meters east of p,
// using the same approximation as Distance.
func Offset(p models.LatLng, north, east float64) models.LatLng {
	lat := p.Lat + north/MetersPerDegreeLat
	midLat := (p.Lat + lat) / 2 * math.Pi / 180
	return models.LatLng{
		Lat: lat,
		Lng: p.Lng + east/(MetersPerDegreeLat*math.Cos(midLat)),
	}
}
