package metrics

import (
	"math/rand"
	"sync"
)

// CongestionPolicy maps the number of deliveries sharing a cell to a
// congestion score in [0,1]. A policy must never give a lower expected score
// to a busier cell.
type CongestionPolicy interface {
	Score(occupancy int) float64
}

// OccupancyCongestion is the deterministic policy: a lone delivery scores 0
// and the score grows linearly until Saturation deliveries share a cell.
type OccupancyCongestion struct {
	Saturation int
}

// Score implements CongestionPolicy.
func (p OccupancyCongestion) Score(occupancy int) float64 {
	if occupancy <= 1 {
		return 0
	}
	sat := p.Saturation
	if sat < 2 {
		return 1
	}
	score := float64(occupancy-1) / float64(sat-1)
	if score > 1 {
		return 1
	}
	return score
}

// RandomCongestion samples a uniform score ignoring occupancy. It stands in
// for live traffic data; its expected value is the same for every cell.
type RandomCongestion struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCongestion returns a seeded random policy.
func NewRandomCongestion(seed int64) *RandomCongestion {
	return &RandomCongestion{rng: rand.New(rand.NewSource(seed))}
}

// Score implements CongestionPolicy.
func (p *RandomCongestion) Score(int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// PolicyByName returns the congestion policy configured by name.
func PolicyByName(name string, saturation int, seed int64) CongestionPolicy {
	if name == "random" {
		return NewRandomCongestion(seed)
	}
	return OccupancyCongestion{Saturation: saturation}
}
