package simulation

import (
	"context"
	"testing"
	"time"
)

type stubSimulation struct{ name string }

func (s *stubSimulation) Name() string                              { return s.name }
func (s *stubSimulation) Description() string                       { return "stub" }
func (s *stubSimulation) Configure(map[string]interface{}) error    { return nil }
func (s *stubSimulation) Run(ctx context.Context, rt Runtime) error { return nil }
func (s *stubSimulation) Stop() error                               { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"surge", "metro"} {
		n := name
		if err := r.Register(n, func() Simulation { return &stubSimulation{name: n} }); err != nil {
			t.Fatalf("Failed to register %s: %v", n, err)
		}
	}

	if err := r.Register("metro", func() Simulation { return nil }); err == nil {
		t.Errorf("Expected duplicate registration error")
	}
	if err := r.Register("", nil); err == nil {
		t.Errorf("Expected error for empty registration")
	}

	names := r.List()
	if len(names) != 2 || names[0] != "metro" || names[1] != "surge" {
		t.Errorf("Expected sorted names [metro surge], got %v", names)
	}

	sim, err := r.Get("surge")
	if err != nil {
		t.Fatal(err)
	}
	if sim.Name() != "surge" {
		t.Errorf("Expected surge, got %s", sim.Name())
	}
	if _, err := r.Get("missing"); err == nil {
		t.Errorf("Expected error for unknown simulation")
	}
	if !r.Has("metro") || r.Has("missing") {
		t.Errorf("Unexpected Has results")
	}
}

func TestSimulationConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  SimulationConfig
		wantErr bool
	}{
		{"valid", SimulationConfig{Name: "x", Parameters: []Parameter{{Name: "zoom", Type: "float"}}}, false},
		{"no name", SimulationConfig{}, true},
		{"bad type", SimulationConfig{Name: "x", Parameters: []Parameter{{Name: "zoom", Type: "decimal"}}}, true},
		{"duplicate", SimulationConfig{Name: "x", Parameters: []Parameter{{Name: "a", Type: "string"}, {Name: "a", Type: "string"}}}, true},
		{"unnamed", SimulationConfig{Name: "x", Parameters: []Parameter{{Type: "string"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}

	cfg := SimulationConfig{Name: "x", Parameters: []Parameter{{Name: "zoom", Type: "float", Default: 13.0}}}
	if p, ok := cfg.Parameter("zoom"); !ok || p.Default != 13.0 {
		t.Errorf("Expected zoom parameter, got %+v", p)
	}
}

func TestParams(t *testing.T) {
	p := Params{
		"count":    "12",
		"ratio":    3,
		"interval": 2.5,
		"duration": "5m",
		"flag":     "yes",
		"bad":      []string{"x"},
	}

	if n, err := p.Int("count", 0); err != nil || n != 12 {
		t.Errorf("Expected 12, got %d (%v)", n, err)
	}
	if f, err := p.Float("ratio", 0); err != nil || f != 3 {
		t.Errorf("Expected 3, got %v (%v)", f, err)
	}
	if d, err := p.Duration("interval", 0); err != nil || d != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %v (%v)", d, err)
	}
	if d, err := p.Duration("duration", 0); err != nil || d != 5*time.Minute {
		t.Errorf("Expected 5m, got %v (%v)", d, err)
	}
	if b, err := p.Bool("flag", false); err != nil || !b {
		t.Errorf("Expected true, got %v (%v)", b, err)
	}
	if n, _ := p.Int("missing", 7); n != 7 {
		t.Errorf("Expected default 7, got %d", n)
	}
	if s := p.String("missing", "x"); s != "x" {
		t.Errorf("Expected default x, got %q", s)
	}
	if _, err := p.Int("bad", 0); err == nil {
		t.Errorf("Expected error for a slice")
	}
	if _, err := p.Duration("bad", 0); err == nil {
		t.Errorf("Expected error for a slice")
	}
}
