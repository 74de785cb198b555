package simulation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages available simulations
type Registry struct {
	mu          sync.RWMutex
	simulations map[string]func() Simulation
}

// NewRegistry creates a new simulation registry
func NewRegistry() *Registry {
	return &Registry{
		simulations: make(map[string]func() Simulation),
	}
}

// Register adds a simulation to the registry
func (r *Registry) Register(name string, factory func() Simulation) error {
	if name == "" || factory == nil {
		return fmt.Errorf("simulation name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.simulations[name]; exists {
		return fmt.Errorf("simulation %s already registered", name)
	}

	r.simulations[name] = factory
	return nil
}

// Get returns a new instance of the requested simulation
func (r *Registry) Get(name string) (Simulation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.simulations[name]
	if !exists {
		return nil, fmt.Errorf("simulation %s not found", name)
	}

	return factory(), nil
}

// Has reports whether a simulation is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.simulations[name]
	return ok
}

// List returns all registered simulation names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.simulations))
	for name := range r.simulations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global simulation registry
var DefaultRegistry = NewRegistry()
