// Package mapcache holds the world geometry used to sanity check geofence
// placement. The geometry is loaded at most once per Cache and never
// invalidated.
package mapcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	geojson "github.com/paulmach/go.geojson"

	"github.com/picogrid/hexfleet/pkg/models"
)

// ErrNoGeometry is returned when the source holds no polygons.
var ErrNoGeometry = errors.New("no polygon geometry")

// Source produces the raw GeoJSON document.
type Source func() ([]byte, error)

// FileSource reads the document from path.
func FileSource(path string) Source {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}

// ReaderSource reads the document from r on first use.
func ReaderSource(r io.Reader) Source {
	return func() ([]byte, error) {
		return io.ReadAll(r)
	}
}

// Bounds is an axis aligned bounding box in degrees.
type Bounds struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Contains reports whether p lies in the box.
func (b Bounds) Contains(p models.LatLng) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

type polygon struct {
	rings  [][][]float64
	bounds Bounds
}

// Cache is the owner of the loaded geometry.
type Cache struct {
	source Source

	once     sync.Once
	polygons []polygon
	bounds   Bounds
	err      error
}

// New creates a cache that will load from src on first use.
func New(src Source) *Cache {
	return &Cache{source: src}
}

// Load parses the source. Only the first call does any work; later calls
// return the outcome of the first.
func (c *Cache) Load() error {
	c.once.Do(func() {
		c.err = c.load()
	})
	return c.err
}

func (c *Cache) load() error {
	if c.source == nil {
		return fmt.Errorf("load map geometry: %w", ErrNoGeometry)
	}
	raw, err := c.source()
	if err != nil {
		return fmt.Errorf("read map geometry: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("parse map geometry: %w", err)
	}

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			c.add(f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				c.add(poly)
			}
		}
	}
	if len(c.polygons) == 0 {
		return fmt.Errorf("load map geometry: %w", ErrNoGeometry)
	}

	c.bounds = c.polygons[0].bounds
	for _, p := range c.polygons[1:] {
		c.bounds = union(c.bounds, p.bounds)
	}
	return nil
}

func (c *Cache) add(rings [][][]float64) {
	if len(rings) == 0 || len(rings[0]) < 3 {
		return
	}
	c.polygons = append(c.polygons, polygon{rings: rings, bounds: ringBounds(rings[0])})
}

// Polygons returns the number of polygons loaded.
func (c *Cache) Polygons() (int, error) {
	if err := c.Load(); err != nil {
		return 0, err
	}
	return len(c.polygons), nil
}

// Bounds returns the box around all loaded polygons.
func (c *Cache) Bounds() (Bounds, error) {
	if err := c.Load(); err != nil {
		return Bounds{}, err
	}
	return c.bounds, nil
}

// Contains reports whether p falls on any polygon. Holes are honoured.
func (c *Cache) Contains(p models.LatLng) (bool, error) {
	if err := c.Load(); err != nil {
		return false, err
	}
	for _, poly := range c.polygons {
		if !poly.bounds.Contains(p) {
			continue
		}
		if !inRing(p, poly.rings[0]) {
			continue
		}
		inHole := false
		for _, hole := range poly.rings[1:] {
			if inRing(p, hole) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true, nil
		}
	}
	return false, nil
}

// inRing is the even-odd ray casting test. Ring positions are [lng, lat].
func inRing(p models.LatLng, ring [][]float64) bool {
	in := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lng < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			in = !in
		}
		j = i
	}
	return in
}

func ringBounds(ring [][]float64) Bounds {
	b := Bounds{MinLat: ring[0][1], MaxLat: ring[0][1], MinLng: ring[0][0], MaxLng: ring[0][0]}
	for _, pos := range ring[1:] {
		b = union(b, Bounds{MinLat: pos[1], MaxLat: pos[1], MinLng: pos[0], MaxLng: pos[0]})
	}
	return b
}

func union(a, b Bounds) Bounds {
	if b.MinLat < a.MinLat {
		a.MinLat = b.MinLat
	}
	if b.MinLng < a.MinLng {
		a.MinLng = b.MinLng
	}
	if b.MaxLat > a.MaxLat {
		a.MaxLat = b.MaxLat
	}
	if b.MaxLng > a.MaxLng {
		a.MaxLng = b.MaxLng
	}
	return a
}
