package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Server models one processing unit: its capacity, in-flight load, and the
// pheromone trail the probabilistic router reads.
type Server struct {
	ID        int
	Capacity  float64 // processing rate; base latency is 1/Capacity
	Load      int     // requests dispatched here and not yet completed
	IsActive  bool
	Pheromone float64

	floor             float64
	perUnitQueueDelay float64
	jitterMin         float64
	jitterMax         float64
	rng               *rand.Rand

	// epoch advances each time in-flight work is discarded. A completion only
	// releases load taken in the same epoch.
	epoch int
}

// NewServer creates an active server with the given trail floor and initial
// pheromone. The initial pheromone is clamped up to the floor.
// Panics if capacity is not positive or rng is nil.
func NewServer(id int, capacity float64, cfg SimConfig, rng *rand.Rand) *Server {
	if capacity <= 0 || math.IsNaN(capacity) {
		panic(fmt.Sprintf("NewServer: capacity must be > 0, got %v", capacity))
	}
	if rng == nil {
		panic("NewServer: rng must not be nil")
	}
	return &Server{
		ID:                id,
		Capacity:          capacity,
		IsActive:          true,
		Pheromone:         math.Max(cfg.PheromoneFloor, cfg.InitialPheromone),
		floor:             cfg.PheromoneFloor,
		perUnitQueueDelay: cfg.PerUnitQueueDelay,
		jitterMin:         cfg.JitterMin,
		jitterMax:         cfg.JitterMax,
		rng:               rng,
	}
}

// EstimateResponseTime returns the simulated service latency for a request
// dispatched now: 1/capacity + load*perUnitDelay + jitter. Inactive servers
// return +Inf.
func (s *Server) EstimateResponseTime() float64 {
	if !s.IsActive {
		return math.Inf(1)
	}
	base := 1.0 / s.Capacity
	queueing := float64(s.Load) * s.perUnitQueueDelay
	jitter := s.jitterMin + s.rng.Float64()*(s.jitterMax-s.jitterMin)
	return base + queueing + jitter
}

// DecayPheromone applies one evaporation step. Inactive servers decay too.
func (s *Server) DecayPheromone(rate float64) {
	s.Pheromone = math.Max(s.floor, s.Pheromone*(1-rate))
}

// ReinforcePheromone deposits quality onto the trail. There is no upper bound.
func (s *Server) ReinforcePheromone(quality float64) {
	s.Pheromone += quality
}

// Floor returns the minimum pheromone level of this server.
func (s *Server) Floor() float64 {
	return s.floor
}

// acquire records a dispatch and returns the epoch the load belongs to.
func (s *Server) acquire() int {
	s.Load++
	return s.epoch
}

// release undoes an acquire from the given epoch. It returns false when the
// work was discarded by a reset in between, in which case load is untouched.
func (s *Server) release(epoch int) bool {
	if epoch != s.epoch {
		return false
	}
	if s.Load <= 0 {
		panic(fmt.Sprintf("server %d: release with load %d", s.ID, s.Load))
	}
	s.Load--
	return true
}

// Fail deactivates the server. Under FaultPolicyReset the in-flight load is
// discarded and the trail drops to the floor; under FaultPolicyKeepLoad both
// are left as they are.
func (s *Server) Fail(policy FaultPolicy) {
	s.IsActive = false
	if policy == FaultPolicyReset {
		s.Load = 0
		s.Pheromone = s.floor
		s.epoch++
	}
}

// Recover makes the server eligible for new work again.
func (s *Server) Recover() {
	s.IsActive = true
}

func (s *Server) String() string {
	return fmt.Sprintf("Server(id=%d, active=%t, load=%d, pheromone=%.4f)", s.ID, s.IsActive, s.Load, s.Pheromone)
}
