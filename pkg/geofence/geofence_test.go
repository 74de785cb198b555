package geofence

import (
	"errors"
	"math"
	"testing"

	"github.com/picogrid/hexfleet/pkg/models"
)

var origin = models.LatLng{Lat: 0, Lng: 0}

func at(id string, p models.LatLng) models.Delivery {
	return models.Delivery{ID: id, Status: models.StatusOutForDelivery, Position: &p}
}

func fence(id string, active bool) models.Geofence {
	return models.Geofence{ID: id, Name: "Zone " + id, Center: origin, RadiusMeters: 100, Type: models.GeofenceHub, Active: active}
}

func TestDistance(t *testing.T) {
	p := Offset(origin, 300, 400)
	if d := Distance(origin, p); math.Abs(d-500) > 0.01 {
		t.Errorf("Expected 500m, got %v", d)
	}
	if d := Distance(p, p); d != 0 {
		t.Errorf("Expected 0, got %v", d)
	}
}

func TestTransitionScenario(t *testing.T) {
	det := NewDetector()
	fences := []models.Geofence{fence("F1", true)}

	m, events, err := det.Evaluate(at("E", Offset(origin, 150, 0)), fences, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 || m.Has("F1") {
		t.Fatalf("Expected outside with no events, got %v events, membership %v", len(events), m.IDs())
	}

	m, events, err = det.Evaluate(at("E", Offset(origin, 50, 0)), fences, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != models.TransitionEntered {
		t.Fatalf("Expected one ENTERED event, got %+v", events)
	}
	if events[0].EntityID != "E" || events[0].GeofenceID != "F1" || events[0].GeofenceName != "Zone F1" {
		t.Errorf("unexpected event payload %+v", events[0])
	}
	if events[0].ID == "" {
		t.Error("Expected event id")
	}

	m, events, err = det.Evaluate(at("E", Offset(origin, 50, 0)), fences, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("Expected no events without movement, got %+v", events)
	}

	m, events, err = det.Evaluate(at("E", Offset(origin, 200, 0)), fences, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != models.TransitionExited {
		t.Fatalf("Expected one EXITED event, got %+v", events)
	}
	if m.Has("F1") {
		t.Error("Expected membership cleared after exit")
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	det := NewDetector()
	fences := []models.Geofence{fence("F1", true), fence("F2", true)}
	fences[1].Center = Offset(origin, 1000, 0)
	d := at("E", Offset(origin, 10, 10))

	m, first, err := det.Evaluate(d, fences, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected 1 event on first evaluation, got %d", len(first))
	}
	_, second, err := det.Evaluate(d, fences, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("Expected 0 events on second evaluation, got %d", len(second))
	}
}

func TestEvaluateDoesNotMutatePrev(t *testing.T) {
	det := NewDetector()
	prev := Membership{"F1": {}}
	_, _, err := det.Evaluate(at("E", Offset(origin, 500, 0)), []models.Geofence{fence("F1", true)}, prev)
	if err != nil {
		t.Fatal(err)
	}
	if !prev.Has("F1") {
		t.Error("prev membership was modified")
	}
}

func TestDeactivationIsSilent(t *testing.T) {
	det := NewDetector()
	store, err := NewStore(fence("F1", true))
	if err != nil {
		t.Fatal(err)
	}
	ms := Memberships{}
	d := at("E", Offset(origin, 20, 0))

	m, events, err := det.Evaluate(d, store.List(), ms.Of("E"))
	if err != nil {
		t.Fatal(err)
	}
	ms["E"] = m
	if len(events) != 1 {
		t.Fatalf("Expected ENTERED, got %d events", len(events))
	}

	if _, err := store.Toggle("F1"); err != nil {
		t.Fatal(err)
	}
	if n := ms.Forget("F1"); n != 1 {
		t.Errorf("Expected 1 membership cleared, got %d", n)
	}

	m, events, err = det.Evaluate(d, store.List(), ms.Of("E"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events after deactivation, got %+v", events)
	}
	if m.Has("F1") {
		t.Error("Expected no membership in inactive fence")
	}
}

func TestInactiveFenceDroppedWithoutForget(t *testing.T) {
	det := NewDetector()
	d := at("E", Offset(origin, 20, 0))
	m, events, err := det.Evaluate(d, []models.Geofence{fence("F1", false)}, Membership{"F1": {}})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 || m.Has("F1") {
		t.Errorf("Expected silent drop, got events %+v membership %v", events, m.IDs())
	}
}

func TestEvaluateUnavailablePosition(t *testing.T) {
	det := NewDetector()
	_, _, err := det.Evaluate(models.Delivery{ID: "P", Status: models.StatusPending}, []models.Geofence{fence("F1", true)}, nil)
	if !errors.Is(err, models.ErrUnavailablePosition) {
		t.Errorf("Expected ErrUnavailablePosition, got %v", err)
	}
}

func TestPrime(t *testing.T) {
	det := NewDetector()
	m, err := det.Prime(at("E", origin), []models.Geofence{fence("F1", true)})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Has("F1") {
		t.Error("Expected primed membership")
	}
}

func TestStoreCRUD(t *testing.T) {
	store, err := NewStore()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		radius  float64
		wantErr bool
	}{
		{"valid", 150, false},
		{"zero radius", 0, true},
		{"negative radius", -10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create("Hub", origin, tt.radius, models.GeofenceHub)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}

	list := store.List()
	if len(list) != 1 {
		t.Fatalf("Expected only the valid fence to be stored, got %d", len(list))
	}
	id := list[0].ID
	if !list[0].Active {
		t.Error("Expected new fence to be active")
	}

	toggled, err := store.Toggle(id)
	if err != nil {
		t.Fatal(err)
	}
	if toggled.Active {
		t.Error("Expected fence inactive after toggle")
	}
	if !list[0].Active {
		t.Error("previously returned list was modified")
	}

	if _, err := store.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get(id); ok {
		t.Error("Expected fence deleted")
	}
	if _, err := store.Delete(id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsDuplicateIDs(t *testing.T) {
	if _, err := NewStore(fence("F1", true), fence("F1", false)); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
}
