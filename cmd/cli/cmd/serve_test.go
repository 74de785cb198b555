package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/picogrid/hexfleet/pkg/config"
	"github.com/picogrid/hexfleet/pkg/engine"
	"github.com/picogrid/hexfleet/pkg/insight"
	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/models"
	"github.com/picogrid/hexfleet/pkg/notify"
	"github.com/picogrid/hexfleet/pkg/render"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	now := time.Now()
	eng, err := engine.New(config.DefaultEngineConfig(), models.SeedDeliveries(now), models.SeedGeofences(now), engine.Options{
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func quietLogger() logger.Logger {
	return logger.NewWithConfig(logger.Config{Writer: io.Discard, NoColor: true})
}

func testStream() *render.Stream {
	return render.NewStream(quietLogger())
}

func testEvents() *notify.EventLog {
	return notify.NewEventLog(io.Discard, 10, true)
}

func testSelector() *insight.Selector {
	return insight.NewSelector(insight.ClientFunc(func(context.Context, insight.Request) insight.Response {
		return insight.Response{RiskLevel: "LOW", Summary: "Clear route"}
	}), nil)
}

func TestServeMuxBeforeStart(t *testing.T) {
	mux := newServeMux(testStream(), func() *engine.Engine { return nil }, testEvents(), testSelector())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestServeMuxFrame(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/frame", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Expected geo+json content type, got %q", ct)
	}

	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}
	if doc.Type != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection, got %q", doc.Type)
	}
	if len(doc.Features) == 0 {
		t.Error("Expected features in the frame")
	}
}

func TestServeMuxGeofenceLifecycle(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())
	before := len(eng.Geofences())

	body := `{"name":"Depot","center":{"lat":40.71,"lng":-74.0},"radius_m":250,"type":"hub"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/geofences", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Geofence
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode geofence: %v", err)
	}
	if created.ID == "" || !created.Active || created.Type != models.GeofenceHub {
		t.Errorf("Unexpected geofence: %+v", created)
	}
	if got := len(eng.Geofences()); got != before+1 {
		t.Errorf("Expected %d geofences, got %d", before+1, got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/geofences/"+created.ID+"/toggle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var toggled models.Geofence
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("Failed to decode geofence: %v", err)
	}
	if toggled.Active {
		t.Error("Expected geofence to be inactive after toggle")
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/geofences/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/geofences/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestServeMuxRejectsInvalidGeofence(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"unknown type", `{"name":"X","center":{"lat":1,"lng":1},"radius_m":10,"type":"moat"}`},
		{"zero radius", `{"name":"X","center":{"lat":1,"lng":1},"radius_m":0,"type":"HUB"}`},
		{"blank name", `{"name":" ","center":{"lat":1,"lng":1},"radius_m":10,"type":"HUB"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/geofences", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestServeMuxEvents(t *testing.T) {
	events := testEvents()
	for _, kind := range []models.TransitionKind{models.TransitionEntered, models.TransitionExited, models.TransitionEntered} {
		events.Notify(models.TransitionEvent{EntityID: "DEL-1", GeofenceID: "gf-1", GeofenceName: "Hub", Kind: kind})
	}
	mux := newServeMux(testStream(), func() *engine.Engine { return nil }, events, testSelector())

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantLen  int
	}{
		{"default", "", http.StatusOK, 3},
		{"limited", "?n=2", http.StatusOK, 2},
		{"invalid", "?n=abc", http.StatusBadRequest, 0},
		{"negative", "?n=-1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events"+tt.query, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got []models.TransitionEvent
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to decode events: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("Expected %d events, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestServeMuxOccupants(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/geofences/gf-downtown-hub/occupants", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/geofences/missing/occupants", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestServeMuxDeliveryActions(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())

	tests := []struct {
		name       string
		path       string
		wantCode   int
		wantStatus models.Status
	}{
		{"resume delayed", "/deliveries/DEL-4412/resume", http.StatusOK, models.StatusOutForDelivery},
		{"delay active", "/deliveries/DEL-9921/delay", http.StatusOK, models.StatusDelayed},
		{"dispatch active", "/deliveries/DEL-8842/dispatch", http.StatusConflict, ""},
		{"unknown delivery", "/deliveries/DEL-0000/delay", http.StatusNotFound, ""},
		{"unknown action", "/deliveries/DEL-9921/teleport", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == "" {
				return
			}
			var d models.Delivery
			if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
				t.Fatalf("Failed to decode delivery: %v", err)
			}
			if d.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, d.Status)
			}
		})
	}
}

func TestServeMuxZoom(t *testing.T) {
	eng := testEngine(t)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), testSelector())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/zoom?level=8", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := eng.Frame().Resolution; got != 7 {
		t.Errorf("Expected resolution 7 after zoom 8, got %d", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/zoom?level=far", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestServeMuxHealth(t *testing.T) {
	eng := testEngine(t)

	tests := []struct {
		name    string
		current func() *engine.Engine
		running bool
	}{
		{"before start", func() *engine.Engine { return nil }, false},
		{"running", func() *engine.Engine { return eng }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newServeMux(testStream(), tt.current, testEvents(), testSelector())
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rec.Code)
			}
			var status struct {
				Clients int  `json:"clients"`
				Running bool `json:"running"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("Failed to decode status: %v", err)
			}
			if status.Running != tt.running {
				t.Errorf("Expected running=%v, got %v", tt.running, status.Running)
			}
			if status.Clients != 0 {
				t.Errorf("Expected 0 clients, got %d", status.Clients)
			}
		})
	}
}

func TestServeMuxSelection(t *testing.T) {
	eng := testEngine(t)
	// DEL-9921 answers only once its request is cancelled.
	selector := insight.NewSelector(insight.ClientFunc(func(ctx context.Context, req insight.Request) insight.Response {
		if req.EntityID == "DEL-9921" {
			<-ctx.Done()
			return insight.Degrade(insight.ErrorKindNetwork, ctx.Err())
		}
		return insight.Response{RiskLevel: "LOW", Summary: "Clear route"}
	}), nil)
	mux := newServeMux(testStream(), func() *engine.Engine { return eng }, testEvents(), selector)

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}
	current := func() selectionStatus {
		t.Helper()
		rec := do(http.MethodGet, "/selection")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		var status selectionStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode selection: %v", err)
		}
		return status
	}

	for _, id := range []string{"DEL-9921", "DEL-4412"} {
		if rec := do(http.MethodPost, "/deliveries/"+id+"/insight"); rec.Code != http.StatusAccepted {
			t.Fatalf("Expected status 202 selecting %s, got %d", id, rec.Code)
		}
	}
	selector.Wait()

	status := current()
	if status.EntityID != "DEL-4412" {
		t.Errorf("Expected DEL-4412 selected, got %q", status.EntityID)
	}
	if status.Pending {
		t.Error("Expected the assessment to have arrived")
	}
	if status.Insight == nil || status.Insight.RiskLevel != "LOW" {
		t.Errorf("Expected LOW risk assessment, got %+v", status.Insight)
	}
	if status.Discarded != 1 {
		t.Errorf("Expected 1 discarded response, got %d", status.Discarded)
	}

	if rec := do(http.MethodPost, "/deliveries/DEL-0000/insight"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown delivery, got %d", rec.Code)
	}

	if rec := do(http.MethodDelete, "/selection"); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	status = current()
	if status.EntityID != "" || status.Insight != nil {
		t.Errorf("Expected empty selection, got %+v", status)
	}
}
