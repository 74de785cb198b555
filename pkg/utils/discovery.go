package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/hexfleet/pkg/logger"
	"github.com/picogrid/hexfleet/pkg/simulation"
)

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds all simulations in the cmd directory of the
// project containing the working directory
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn walks dir for simulation.yaml descriptors. Invalid
// descriptors are logged and skipped. Results are sorted by name.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Name() != "simulation.yaml" {
			return nil
		}

		simInfo, err := LoadSimulationConfig(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, *simInfo)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(simulations, func(i, j int) bool {
		return simulations[i].Config.Name < simulations[j].Config.Name
	})
	return simulations, nil
}

// FindSimulation returns the discovered simulation with the given name.
func FindSimulation(sims []SimulationInfo, name string) (SimulationInfo, bool) {
	for _, s := range sims {
		if s.Config.Name == name {
			return s, true
		}
	}
	return SimulationInfo{}, false
}

// LoadSimulationConfig loads and validates a simulation descriptor
func LoadSimulationConfig(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}

	var config simulation.SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &SimulationInfo{
		Path:   filepath.Dir(path),
		Config: config,
	}, nil
}

// findProjectRoot finds the project root by looking for go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
