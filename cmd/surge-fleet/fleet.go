package surgefleet

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/picogrid/hexfleet/pkg/geofence"
	"github.com/picogrid/hexfleet/pkg/models"
)

var (
	drivers  = []string{"Alex Rivera", "Sarah Chen", "Marcus Bolt", "Elena Rose", "Priya Nair", "Tomás Ortega", "Jun Park", "Nadia Haddad"}
	vehicles = []models.VehicleType{models.VehicleVan, models.VehicleBike, models.VehicleTruck, models.VehicleElectric}
)

// Fleet is the generated rush hour scenario.
type Fleet struct {
	Deliveries []models.Delivery
	Geofences  []models.Geofence
}

// randomPoint returns a point uniformly distributed over the disc around
// center.
func randomPoint(rng *rand.Rand, center models.LatLng, radiusMeters float64) models.LatLng {
	r := radiusMeters * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	return geofence.Offset(center, r*math.Cos(theta), r*math.Sin(theta))
}

// GenerateFleet builds a reproducible fleet for cfg. Every delivery leaves
// from the central hub, so the hub cell starts congested. A third of the
// fleet is still pending and is dispatched while the simulation runs.
func GenerateFleet(cfg *Config, now time.Time) Fleet {
	rng := rand.New(rand.NewSource(cfg.Seed))

	hub := models.Location{ID: "HUB", Name: "Central Hub", Point: cfg.Center}
	out := Fleet{Deliveries: make([]models.Delivery, 0, cfg.NumDeliveries)}

	for i := 0; i < cfg.NumDeliveries; i++ {
		pickup := hub
		if i%4 == 3 {
			// Some routes start from a random store instead.
			pickup = models.Location{
				ID:    fmt.Sprintf("S%d", i),
				Name:  fmt.Sprintf("Store %d", i),
				Point: randomPoint(rng, cfg.Center, cfg.RadiusMeters/2),
			}
		}

		status := models.StatusOutForDelivery
		progress := rng.Float64() * 0.3
		switch i % 6 {
		case 0, 3:
			status = models.StatusPending
			progress = 0
		case 1:
			status = models.StatusPickedUp
			progress = 0
		case 5:
			status = models.StatusDelayed
		}

		priority := models.PriorityMedium
		switch r := rng.Float64(); {
		case r < 0.2:
			priority = models.PriorityHigh
		case r > 0.7:
			priority = models.PriorityLow
		}

		out.Deliveries = append(out.Deliveries, models.Delivery{
			ID:          fmt.Sprintf("SRG-%04d", i+1),
			Status:      status,
			Pickup:      pickup,
			Dropoff:     models.Location{ID: fmt.Sprintf("C%d", i), Name: fmt.Sprintf("Customer %d", i+1), Point: randomPoint(rng, cfg.Center, cfg.RadiusMeters)},
			DriverName:  drivers[rng.Intn(len(drivers))],
			VehicleType: vehicles[rng.Intn(len(vehicles))],
			Priority:    priority,
			Progress:    progress,
			StartTime:   now,
		})
	}

	out.Geofences = []models.Geofence{
		{
			ID:           "gf-central-hub",
			Name:         "Central Hub",
			Center:       cfg.Center,
			RadiusMeters: cfg.HubRadiusM,
			Type:         models.GeofenceHub,
			Active:       true,
			CreatedAt:    now,
		},
		{
			ID:           "gf-closure",
			Name:         "Road Closure",
			Center:       geofence.Offset(cfg.Center, cfg.RadiusMeters/3, cfg.RadiusMeters/3),
			RadiusMeters: cfg.RadiusMeters / 6,
			Type:         models.GeofenceRestricted,
			Active:       true,
			CreatedAt:    now,
		},
		{
			ID:           "gf-mall",
			Name:         "Mall Drop Zone",
			Center:       geofence.Offset(cfg.Center, -cfg.RadiusMeters/2, cfg.RadiusMeters/4),
			RadiusMeters: cfg.RadiusMeters / 8,
			Type:         models.GeofenceCustomerZone,
			Active:       true,
			CreatedAt:    now,
		},
	}
	return out
}
