package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// RoutingDecision encapsulates the routing decision for a request.
type RoutingDecision struct {
	Server        *Server         // nil when no active server exists
	Reason        string          // human-readable explanation
	Probabilities map[int]float64 // server ID → selection probability (nil for deterministic policies)
}

// Dropped reports whether the decision found no server.
func (d RoutingDecision) Dropped() bool {
	return d.Server == nil
}

// SelectionPolicy picks one server from the active subset.
// active is never empty and is ordered by server ID.
type SelectionPolicy interface {
	Select(active []*Server) RoutingDecision
}

// RoundRobin cycles through the active subset. The cursor grows by one per
// call and is reduced modulo the active-subset size at call time, so a server
// leaving the subset shifts the rotation rather than leaving a dead slot.
type RoundRobin struct {
	counter int
}

// Select implements SelectionPolicy for RoundRobin.
func (rr *RoundRobin) Select(active []*Server) RoutingDecision {
	target := active[rr.counter%len(active)]
	rr.counter++
	return RoutingDecision{
		Server: target,
		Reason: fmt.Sprintf("round-robin[%d]", rr.counter-1),
	}
}

// PheromoneWeighted draws a server with probability proportional to
//
//	tau^alpha * eta^beta,  eta = 1/(load+1)
//
// where tau is the server's pheromone. beta = 0 reduces this to plain
// pheromone-proportional selection. Pheromones are scaled by the subset's
// maximum before exponentiation; the ratio between weights is unchanged and
// large trails cannot overflow to +Inf. A zero total falls back to uniform.
type PheromoneWeighted struct {
	Alpha float64
	Beta  float64
	rng   *rand.Rand
}

// Select implements SelectionPolicy for PheromoneWeighted.
func (pw *PheromoneWeighted) Select(active []*Server) RoutingDecision {
	weights := pw.Weights(active)
	total := 0.0
	for _, w := range weights {
		total += w
	}

	probs := make(map[int]float64, len(active))
	if total == 0 {
		logrus.Warnf("pheromone-weighted: zero total weight over %d servers, using uniform", len(active))
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(active))
	}
	for i, s := range active {
		probs[s.ID] = weights[i] / total
	}

	idx := rouletteWheel(weights, total, pw.rng.Float64())
	return RoutingDecision{
		Server:        active[idx],
		Reason:        fmt.Sprintf("pheromone-weighted (p=%.3f)", probs[active[idx].ID]),
		Probabilities: probs,
	}
}

// Weights returns the unnormalized selection weight of each server in active.
func (pw *PheromoneWeighted) Weights(active []*Server) []float64 {
	maxTau := 0.0
	for _, s := range active {
		maxTau = math.Max(maxTau, s.Pheromone)
	}
	weights := make([]float64, len(active))
	if maxTau == 0 {
		return weights
	}
	for i, s := range active {
		eta := 1.0 / (float64(s.Load) + 1.0)
		weights[i] = math.Pow(s.Pheromone/maxTau, pw.Alpha) * math.Pow(eta, pw.Beta)
	}
	return weights
}

// rouletteWheel returns the index whose cumulative weight first exceeds u*total.
// Rounding at the top end falls back to the last positive weight.
func rouletteWheel(weights []float64, total, u float64) int {
	target := u * total
	cumulative := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return last
}

// NewSelectionPolicy creates a selection policy by name.
// Valid names are defined in ValidSelectionPolicies (config.go).
// Panics on unrecognized names or a nil rng for "aco".
func NewSelectionPolicy(name string, alpha, beta float64, rng *rand.Rand) SelectionPolicy {
	switch name {
	case PolicyRoundRobin:
		return &RoundRobin{}
	case PolicyACO:
		if rng == nil {
			panic("NewSelectionPolicy: aco requires an rng")
		}
		return &PheromoneWeighted{Alpha: alpha, Beta: beta, rng: rng}
	default:
		panic(fmt.Sprintf("unknown selection policy %q", name))
	}
}

// Router holds the server pool by reference and routes each request through
// its selection policy. Only active servers are ever returned.
type Router struct {
	servers        []*Server // ordered by ID
	policy         SelectionPolicy
	depositEpsilon float64
}

// NewRouter creates a router over servers. The router shares the Server
// values with the caller; state changes made elsewhere are seen immediately.
func NewRouter(servers []*Server, policy SelectionPolicy, depositEpsilon float64) *Router {
	ordered := make([]*Server, len(servers))
	copy(ordered, servers)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return &Router{servers: ordered, policy: policy, depositEpsilon: depositEpsilon}
}

// Servers returns every server, active or not, ordered by ID.
func (r *Router) Servers() []*Server {
	return r.servers
}

// Policy returns the router's selection policy.
func (r *Router) Policy() SelectionPolicy {
	return r.policy
}

// ActiveServers returns the active subset ordered by ID.
func (r *Router) ActiveServers() []*Server {
	active := make([]*Server, 0, len(r.servers))
	for _, s := range r.servers {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active
}

// Route selects a server for a new request. An empty active subset yields a
// decision with a nil Server; the caller drops the request.
func (r *Router) Route() RoutingDecision {
	active := r.ActiveServers()
	if len(active) == 0 {
		return RoutingDecision{Reason: "no active server"}
	}
	return r.policy.Select(active)
}

// Reinforce deposits trail on s for one completed request.
func (r *Router) Reinforce(s *Server, responseTime float64) {
	s.ReinforcePheromone(DepositQuality(responseTime, r.depositEpsilon))
}

// DepositQuality maps a response time to a trail deposit. Strictly decreasing
// in responseTime for responseTime >= 0.
func DepositQuality(responseTime, epsilon float64) float64 {
	return 1.0 / (responseTime + epsilon)
}
