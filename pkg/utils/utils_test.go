package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picogrid/hexfleet/pkg/simulation"
)

func TestResolveParameters(t *testing.T) {
	params := []simulation.Parameter{
		{Name: "num_deliveries", Type: "integer", Default: 12, Min: 1, Max: 500},
		{Name: "zoom", Type: "float", Default: 13.0},
		{Name: "update_interval", Type: "duration", Default: "1s"},
		{Name: "stop_when_idle", Type: "boolean", Default: true},
		{Name: "congestion", Type: "string", Default: "occupancy", Options: []string{"occupancy", "random"}},
		{Name: "scenario_file", Type: "string"},
	}
	t.Setenv("HEXFLEET_NUM_DELIVERIES", "40")
	t.Setenv("HEXFLEET_ZOOM", "10.5")

	values, err := ResolveParameters(params)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if values["num_deliveries"] != 40 {
		t.Errorf("Expected 40 from env, got %v", values["num_deliveries"])
	}
	if values["zoom"] != 10.5 {
		t.Errorf("Expected 10.5 from env, got %v", values["zoom"])
	}
	if values["update_interval"] != time.Second {
		t.Errorf("Expected default 1s parsed to a duration, got %v", values["update_interval"])
	}
	if values["stop_when_idle"] != true {
		t.Errorf("Expected true, got %v", values["stop_when_idle"])
	}
	if values["congestion"] != "occupancy" {
		t.Errorf("Expected occupancy, got %v", values["congestion"])
	}
	if _, ok := values["scenario_file"]; ok {
		t.Errorf("Expected optional parameter without default to be absent")
	}
}

func TestResolveParametersErrors(t *testing.T) {
	tests := []struct {
		name  string
		param simulation.Parameter
		env   string
	}{
		{"out of range", simulation.Parameter{Name: "count", Type: "integer", Max: 10}, "11"},
		{"not a number", simulation.Parameter{Name: "count", Type: "integer"}, "many"},
		{"bad option", simulation.Parameter{Name: "mode", Type: "string", Options: []string{"a", "b"}}, "c"},
		{"required", simulation.Parameter{Name: "must", Type: "string", Required: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv(envKey(tt.param), tt.env)
			}
			if _, err := ResolveParameters([]simulation.Parameter{tt.param}); err == nil {
				t.Errorf("Expected error")
			}
		})
	}
}

func TestPromptSkipsWhenRequested(t *testing.T) {
	t.Setenv("HEXFLEET_SKIP_PROMPTS", "true")
	t.Setenv("HEXFLEET_RADIUS_M", "250")

	values, err := PromptForParameters([]simulation.Parameter{
		{Name: "radius_m", Type: "float", Default: 100.0},
		{Name: "seed", Type: "integer", Default: 7},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if values["radius_m"] != 250.0 || values["seed"] != 7 {
		t.Errorf("Unexpected values %v", values)
	}
}

func TestDiscoverSimulationsIn(t *testing.T) {
	dir := t.TempDir()
	write := func(sub, body string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, sub, "simulation.yaml"), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("surge", "name: surge-fleet\nparameters:\n  - {name: seed, type: integer, default: 1}\n")
	write("metro", "name: metro-deliveries\n")
	write("broken", "name: broken\nparameters:\n  - {name: x, type: complex}\n")

	sims, err := DiscoverSimulationsIn(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(sims) != 2 {
		t.Fatalf("Expected 2 valid simulations, got %d", len(sims))
	}
	if sims[0].Config.Name != "metro-deliveries" || sims[1].Config.Name != "surge-fleet" {
		t.Errorf("Expected sorted names, got %s, %s", sims[0].Config.Name, sims[1].Config.Name)
	}
	if s, ok := FindSimulation(sims, "surge-fleet"); !ok || s.Path != filepath.Join(dir, "surge") {
		t.Errorf("Expected surge-fleet at its directory, got %+v", s)
	}
}
