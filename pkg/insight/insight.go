// Package insight requests route risk assessments from a generative AI
// service. Clients never return errors: failures come back as degraded
// responses with Error and ErrorKind set.
package insight

import (
	"context"
	"fmt"

	"github.com/picogrid/hexfleet/pkg/models"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	ErrorKindAuth    ErrorKind = "AUTH"
	ErrorKindAPI     ErrorKind = "API"
	ErrorKindNetwork ErrorKind = "NETWORK"
)

// SpatialContext is optional grid information sent with a request.
type SpatialContext struct {
	Origin      string          `json:"origin,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Position    *models.LatLng  `json:"position,omitempty"`
	Cell        string          `json:"cell,omitempty"`
	Metrics     *models.Metrics `json:"metrics,omitempty"`
	Geofences   []string        `json:"geofences,omitempty"`
}

// Request identifies the delivery to assess.
type Request struct {
	EntityID     string          `json:"entity_id"`
	DriverLabel  string          `json:"driver"`
	VehicleLabel string          `json:"vehicle"`
	Spatial      *SpatialContext `json:"spatial_context,omitempty"`
}

// RequestFor builds a request from a delivery snapshot.
func RequestFor(d models.Delivery, fences []string) Request {
	req := Request{
		EntityID:     d.ID,
		DriverLabel:  d.DriverName,
		VehicleLabel: string(d.VehicleType),
		Spatial: &SpatialContext{
			Origin:      d.Pickup.Label(),
			Destination: d.Dropoff.Label(),
			Metrics:     d.Metrics,
			Geofences:   fences,
		},
	}
	if d.Position != nil {
		p := *d.Position
		req.Spatial.Position = &p
	}
	if d.CurrentCell != 0 {
		req.Spatial.Cell = d.CurrentCell.String()
	}
	return req
}

// Response is the assessment of one delivery.
type Response struct {
	RiskLevel         string   `json:"riskLevel"`
	EfficiencyInsight string   `json:"efficiencyInsight"`
	WellnessScore     float64  `json:"wellnessScore"`
	Summary           string   `json:"summary"`
	OptimalModality   string   `json:"optimalModality,omitempty"`
	DangerZones       []string `json:"dangerZones,omitempty"`
	EstimatedSavings  string   `json:"estimatedSavings,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
}

// Degraded reports whether the response carries a failure.
func (r Response) Degraded() bool {
	return r.ErrorKind != ""
}

// Client requests insights.
type Client interface {
	Request(ctx context.Context, req Request) Response
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) Response

// Request implements Client.
func (fn ClientFunc) Request(ctx context.Context, req Request) Response {
	return fn(ctx, req)
}

var degradedSummaries = map[ErrorKind]string{
	ErrorKindAuth:    "AI insights are unavailable: no API key is configured for the insight provider.",
	ErrorKindAPI:     "The insight provider returned an unusable answer. Route data is shown without AI assessment.",
	ErrorKindNetwork: "The insight provider could not be reached. Route data is shown without AI assessment.",
}

// Degrade returns the default response for a failure of the given kind.
func Degrade(kind ErrorKind, err error) Response {
	summary, ok := degradedSummaries[kind]
	if !ok {
		summary = degradedSummaries[ErrorKindAPI]
	}
	msg := string(kind)
	if err != nil {
		msg = err.Error()
	}
	return Response{
		RiskLevel:         "UNKNOWN",
		EfficiencyInsight: "No efficiency insight available.",
		WellnessScore:     0,
		Summary:           summary,
		Error:             msg,
		ErrorKind:         kind,
	}
}

func (r Response) normalize() (Response, error) {
	if r.Summary == "" {
		return r, fmt.Errorf("response has no summary")
	}
	if r.RiskLevel == "" {
		r.RiskLevel = "UNKNOWN"
	}
	if r.WellnessScore < 0 {
		r.WellnessScore = 0
	}
	if r.WellnessScore > 100 {
		r.WellnessScore = 100
	}
	return r, nil
}
