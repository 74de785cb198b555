package render

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	geojson "github.com/paulmach/go.geojson"

	"github.com/picogrid/hexfleet/pkg/geofence"
	"github.com/picogrid/hexfleet/pkg/geoindex"
	"github.com/picogrid/hexfleet/pkg/models"
)

// Feature kinds set in the "kind" property.
const (
	KindCell     = "cell"
	KindCluster  = "cluster"
	KindVehicle  = "vehicle"
	KindGeofence = "geofence"
	KindWarning  = "warning"
)

const circleSegments = 32

func coord(p models.LatLng) []float64 {
	return []float64{p.Lng, p.Lat}
}

func ring(points []models.LatLng) [][]float64 {
	out := make([][]float64, 0, len(points))
	for _, p := range points {
		out = append(out, coord(p))
	}
	return out
}

// circle approximates a geofence with a closed polygon ring.
func circle(center models.LatLng, radius float64) [][]float64 {
	pts := make([]models.LatLng, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts = append(pts, geofence.Offset(center, radius*math.Cos(a), radius*math.Sin(a)))
	}
	pts = append(pts, pts[0])
	return ring(pts)
}

// FeatureCollection converts a frame into GeoJSON: one polygon per occupied
// cell, one marker per cell, one point per positioned delivery, a polygon
// per geofence and a warning point per transition event.
func FeatureCollection(f *Frame) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()

	for _, c := range f.Cells {
		boundary, err := geoindex.CellBoundary(c.ID)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", c.ID, err)
		}
		poly := geojson.NewPolygonFeature([][][]float64{ring(boundary)})
		poly.ID = c.ID.String()
		poly.SetProperty("kind", KindCell)
		poly.SetProperty("resolution", c.Resolution)
		poly.SetProperty("count", c.Count())
		poly.SetProperty("density", c.Density)
		fc.AddFeature(poly)

		marker := geojson.NewPointFeature(coord(f.MarkerPosition(c)))
		if c.Count() == 1 {
			marker.SetProperty("kind", KindVehicle)
			marker.SetProperty("delivery_id", c.Members[0])
		} else {
			marker.SetProperty("kind", KindCluster)
			marker.SetProperty("members", c.Members)
		}
		marker.SetProperty("cell", c.ID.String())
		marker.SetProperty("count", c.Count())
		fc.AddFeature(marker)
	}

	for _, d := range f.Deliveries {
		if d.Position == nil {
			continue
		}
		pt := geojson.NewPointFeature(coord(*d.Position))
		pt.ID = d.ID
		pt.SetProperty("kind", "delivery")
		pt.SetProperty("status", string(d.Status))
		pt.SetProperty("priority", string(d.Priority))
		pt.SetProperty("vehicle", string(d.VehicleType))
		pt.SetProperty("driver", d.DriverName)
		pt.SetProperty("progress", d.Progress)
		if d.Metrics != nil {
			pt.SetProperty("grid_distance", d.Metrics.GridDistance)
			pt.SetProperty("eta_minutes", d.Metrics.ETAMinutes)
			pt.SetProperty("price", d.Metrics.Price)
			pt.SetProperty("congestion", d.Metrics.CongestionScore)
		}
		fc.AddFeature(pt)
	}

	for _, g := range f.Geofences {
		poly := geojson.NewPolygonFeature([][][]float64{circle(g.Center, g.RadiusMeters)})
		poly.ID = g.ID
		poly.SetProperty("kind", KindGeofence)
		poly.SetProperty("name", g.Name)
		poly.SetProperty("type", string(g.Type))
		poly.SetProperty("radius_m", g.RadiusMeters)
		poly.SetProperty("active", g.Active)
		fc.AddFeature(poly)
	}

	for _, e := range f.Events {
		pt := geojson.NewPointFeature(coord(e.Position))
		pt.ID = e.ID
		pt.SetProperty("kind", KindWarning)
		pt.SetProperty("delivery_id", e.EntityID)
		pt.SetProperty("geofence", e.GeofenceName)
		pt.SetProperty("transition", string(e.Kind))
		pt.SetProperty("severity", string(e.Severity))
		fc.AddFeature(pt)
	}

	return fc, nil
}

// MarshalFrame encodes a frame as a GeoJSON document.
func MarshalFrame(f *Frame) ([]byte, error) {
	fc, err := FeatureCollection(f)
	if err != nil {
		return nil, err
	}
	return fc.MarshalJSON()
}

// GeoJSON writes every frame as one line of GeoJSON.
type GeoJSON struct {
	mu sync.Mutex
	w  io.Writer
}

// NewGeoJSON creates a renderer writing newline delimited GeoJSON to w.
func NewGeoJSON(w io.Writer) *GeoJSON {
	return &GeoJSON{w: w}
}

// Render implements Renderer.
func (g *GeoJSON) Render(_ context.Context, f *Frame) error {
	data, err := MarshalFrame(f)
	if err != nil {
		return fmt.Errorf("geojson frame %d: %w", f.Seq, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("geojson frame %d: %w", f.Seq, err)
	}
	return nil
}
