package models

import "time"

var (
	downtownHub = Location{ID: "L1", Name: "Downtown Hub", Code: "DTH", Point: LatLng{Lat: 40.7128, Lng: -74.0060}}
	brooklynWH  = Location{ID: "L3", Name: "Brooklyn Warehouse", Code: "BWH", Point: LatLng{Lat: 40.6782, Lng: -73.9442}}
	jerseyCity  = Location{ID: "L7", Name: "Jersey City Terminal", Code: "JCT", Point: LatLng{Lat: 40.7178, Lng: -74.0431}}
)

// SeedDeliveries returns the demo metro fleet. Start and arrival times are
// offsets from now.
func SeedDeliveries(now time.Time) []Delivery {
	return []Delivery{
		{
			ID:               "DEL-9921",
			Status:           StatusOutForDelivery,
			Pickup:           downtownHub,
			Dropoff:          Location{ID: "L2", Name: "West Village Office", Code: "WVO", Point: LatLng{Lat: 40.7336, Lng: -74.0027}},
			DriverName:       "Alex Rivera",
			VehicleType:      VehicleVan,
			Priority:         PriorityHigh,
			Progress:         0.45,
			StartTime:        now.Add(-25 * time.Minute),
			EstimatedArrival: now.Add(30 * time.Minute),
		},
		{
			ID:               "DEL-8842",
			Status:           StatusPickedUp,
			Pickup:           brooklynWH,
			Dropoff:          Location{ID: "L4", Name: "Park Slope Resid.", Code: "PSR", Point: LatLng{Lat: 40.6661, Lng: -73.9813}},
			DriverName:       "Sarah Chen",
			VehicleType:      VehicleBike,
			Priority:         PriorityMedium,
			Progress:         0.2,
			StartTime:        now.Add(-10 * time.Minute),
			EstimatedArrival: now.Add(45 * time.Minute),
		},
		{
			ID:               "DEL-7731",
			Status:           StatusOutForDelivery,
			Pickup:           downtownHub,
			Dropoff:          Location{ID: "L5", Name: "Upper East Side", Code: "UES", Point: LatLng{Lat: 40.7736, Lng: -73.9566}},
			DriverName:       "Marcus Bolt",
			VehicleType:      VehicleElectric,
			Priority:         PriorityLow,
			Progress:         0.85,
			StartTime:        now.Add(-50 * time.Minute),
			EstimatedArrival: now.Add(10 * time.Minute),
		},
		{
			ID:               "DEL-4412",
			Status:           StatusDelayed,
			Pickup:           jerseyCity,
			Dropoff:          Location{ID: "L8", Name: "Hoboken Square", Code: "HBK", Point: LatLng{Lat: 40.7440, Lng: -74.0324}},
			DriverName:       "Elena Rose",
			VehicleType:      VehicleVan,
			Priority:         PriorityHigh,
			Progress:         0.1,
			StartTime:        now.Add(-40 * time.Minute),
			EstimatedArrival: now.Add(75 * time.Minute),
		},
	}
}

// SeedGeofences returns the demo zones around the metro fleet. IDs are
// stable so scenario files can reference them.
func SeedGeofences(now time.Time) []Geofence {
	return []Geofence{
		{ID: "gf-downtown-hub", Name: "Downtown Hub", Center: downtownHub.Point, RadiusMeters: 400, Type: GeofenceHub, Active: true, CreatedAt: now},
		{ID: "gf-jersey-terminal", Name: "Jersey City Terminal", Center: jerseyCity.Point, RadiusMeters: 350, Type: GeofenceHub, Active: true, CreatedAt: now},
		{ID: "gf-holland-tunnel", Name: "Holland Tunnel Approach", Center: LatLng{Lat: 40.7255, Lng: -74.0110}, RadiusMeters: 300, Type: GeofenceRestricted, Active: true, CreatedAt: now},
		{ID: "gf-west-village", Name: "West Village Customers", Center: LatLng{Lat: 40.7336, Lng: -74.0027}, RadiusMeters: 250, Type: GeofenceCustomerZone, Active: true, CreatedAt: now},
	}
}
