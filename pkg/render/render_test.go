package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"

	"github.com/picogrid/hexfleet/pkg/aggregate"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	a := models.LatLng{Lat: 40.7128, Lng: -74.0060}
	b := models.LatLng{Lat: 40.7736, Lng: -73.9566}
	deliveries := []models.Delivery{
		{ID: "A", Status: models.StatusOutForDelivery, Priority: models.PriorityHigh, Position: &a,
			Metrics: &models.Metrics{GridDistance: 4, Price: 5, ETAMinutes: 3}},
		{ID: "B", Status: models.StatusOutForDelivery, Priority: models.PriorityLow, Position: &a},
		{ID: "C", Status: models.StatusOutForDelivery, Priority: models.PriorityMedium, Position: &b},
		{ID: "P", Status: models.StatusPending},
	}
	agg, err := aggregate.AggregateAt(deliveries, 9)
	if err != nil {
		t.Fatal(err)
	}
	return &Frame{
		Seq:        1,
		At:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Zoom:       10,
		Resolution: 9,
		Deliveries: deliveries,
		Cells:      agg.Sorted(),
		Geofences: []models.Geofence{
			{ID: "F1", Name: "Hub", Center: a, RadiusMeters: 200, Type: models.GeofenceHub, Active: true},
		},
		Events: []models.TransitionEvent{
			{ID: "E1", EntityID: "A", GeofenceName: "Hub", Kind: models.TransitionEntered, Position: a},
		},
	}
}

func TestMarkerPosition(t *testing.T) {
	f := testFrame(t)
	for _, c := range f.Cells {
		pos := f.MarkerPosition(c)
		if c.Count() == 1 {
			d, _ := f.Delivery(c.Members[0])
			if pos != *d.Position {
				t.Errorf("singleton cell %s: expected exact position %s, got %s", c.ID, *d.Position, pos)
			}
		} else if pos != c.Center {
			t.Errorf("cluster cell %s: expected center %s, got %s", c.ID, c.Center, pos)
		}
	}
}

func TestFeatureCollection(t *testing.T) {
	f := testFrame(t)
	fc, err := FeatureCollection(f)
	if err != nil {
		t.Fatal(err)
	}

	kinds := map[string]int{}
	for _, feat := range fc.Features {
		kind, _ := feat.Properties["kind"].(string)
		kinds[kind]++
	}
	want := map[string]int{KindCell: 2, KindCluster: 1, KindVehicle: 1, "delivery": 3, KindGeofence: 1, KindWarning: 1}
	for k, n := range want {
		if kinds[k] != n {
			t.Errorf("Expected %d %q features, got %d", n, k, kinds[k])
		}
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	back, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("output is not valid GeoJSON: %v", err)
	}
	for _, feat := range back.Features {
		if feat.Geometry.IsPolygon() {
			r := feat.Geometry.Polygon[0]
			first, last := r[0], r[len(r)-1]
			if first[0] != last[0] || first[1] != last[1] {
				t.Errorf("polygon ring not closed for %v", feat.ID)
			}
		}
	}
}

func TestGeoJSONRendererWritesLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewGeoJSON(&buf)
	f := testFrame(t)
	if err := r.Render(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	if err := r.Render(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["type"] != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection, got %v", doc["type"])
	}
}

func TestConsoleRenderer(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, NoColor(true))
	if err := c.Render(context.Background(), testFrame(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, s := range []string{"tick 1", "A", "$5.00", "PENDING", "COUNT"} {
		if !strings.Contains(out, s) {
			t.Errorf("Expected output to contain %q", s)
		}
	}

	buf.Reset()
	skip := NewConsole(&buf, Every(2))
	_ = skip.Render(context.Background(), testFrame(t))
	if buf.Len() != 0 {
		t.Error("Expected odd frame to be skipped")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	m := Multi{
		RendererFunc(func(context.Context, *Frame) error { calls++; return boom }),
		nil,
		RendererFunc(func(context.Context, *Frame) error { calls++; return nil }),
	}
	err := m.Render(context.Background(), &Frame{})
	if calls != 2 {
		t.Errorf("Expected both renderers called, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected joined error, got %v", err)
	}
}

func TestStreamBroadcast(t *testing.T) {
	log := logger.NewWithConfig(logger.Config{Level: logger.ErrorLevel, Writer: &bytes.Buffer{}, NoColor: true})
	stream := NewStream(log)
	srv := httptest.NewServer(stream)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for stream.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if stream.Clients() != 1 {
		t.Fatalf("Expected 1 client, got %d", stream.Clients())
	}

	if err := stream.Render(context.Background(), testFrame(t)); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(msg)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) == 0 {
		t.Error("Expected features in streamed frame")
	}

	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
	if stream.Clients() != 0 {
		t.Errorf("Expected no clients after close, got %d", stream.Clients())
	}
}
