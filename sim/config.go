package sim

import (
	"fmt"
	"math"

	"github.com/inference-sim/pheromone-sim/sim/trace"
)

// FaultPolicy names what happens to a failed server's in-flight work.
type FaultPolicy string

const (
	// FaultPolicyKeepLoad leaves load and pheromone untouched; requests already
	// dispatched to the server still complete.
	FaultPolicyKeepLoad FaultPolicy = "keep-load"
	// FaultPolicyReset zeroes the server's load, drops its trail to the floor,
	// and marks its in-flight requests as lost.
	FaultPolicyReset FaultPolicy = "reset"
)

// ArrivalProcess names how interarrival gaps are drawn.
type ArrivalProcess string

const (
	// ArrivalConstant spaces arrivals exactly InterarrivalTime apart.
	ArrivalConstant ArrivalProcess = "constant"
	// ArrivalPoisson draws exponential gaps with mean InterarrivalTime.
	ArrivalPoisson ArrivalProcess = "poisson"
	// ArrivalGamma and ArrivalWeibull draw gaps with mean InterarrivalTime and
	// coefficient of variation ArrivalCV.
	ArrivalGamma   ArrivalProcess = "gamma"
	ArrivalWeibull ArrivalProcess = "weibull"
)

// Selection policy names.
const (
	PolicyACO        = "aco"
	PolicyRoundRobin = "round-robin"
)

// ValidSelectionPolicies is the set of recognized selection policy names.
var ValidSelectionPolicies = map[string]bool{PolicyACO: true, PolicyRoundRobin: true}

// ValidFaultPolicies is the set of recognized fault policies.
var ValidFaultPolicies = map[FaultPolicy]bool{FaultPolicyKeepLoad: true, FaultPolicyReset: true}

// ValidArrivalProcesses is the set of recognized arrival processes.
var ValidArrivalProcesses = map[ArrivalProcess]bool{
	ArrivalConstant: true,
	ArrivalPoisson:  true,
	ArrivalGamma:    true,
	ArrivalWeibull:  true,
}

// FaultConfig schedules a one-shot failure and an optional recovery.
type FaultConfig struct {
	Time         float64     // simulated time the server fails
	ServerID     int         // target server
	Policy       FaultPolicy // what happens to in-flight work
	RecoveryTime *float64    // nil = the server never recovers
}

// SimConfig is the immutable configuration of one experiment run.
// Build it with DefaultSimConfig and override fields before NewSimulation;
// the simulation keeps its own copy.
type SimConfig struct {
	Seed   int64
	Policy string // PolicyACO or PolicyRoundRobin

	ServerCount int
	Capacities  []float64 // per-server capacity; empty = DefaultCapacity for all

	Horizon          float64
	InterarrivalTime float64
	ArrivalProcess   ArrivalProcess
	ArrivalCV        float64 // gamma and weibull only

	EvaporationRate   float64
	EvaporationPeriod float64
	PheromoneFloor    float64
	InitialPheromone  float64
	DepositEpsilon    float64 // quality = 1/(responseTime + DepositEpsilon)

	Alpha float64 // trail influence
	Beta  float64 // load-heuristic influence; 0 = pheromone-proportional

	PerUnitQueueDelay float64
	JitterMin         float64
	JitterMax         float64

	MonitorPeriod float64

	Fault *FaultConfig // nil = no fault injected

	TraceLevel string // "" / "none" or "decisions"
}

// DefaultCapacity is used for every server when Capacities is empty.
const DefaultCapacity = 1.0

// DefaultSimConfig returns the reference scenario: three equal servers, one
// arrival every 0.5, horizon 500, server 0 failing at t=200.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:              42,
		Policy:            PolicyACO,
		ServerCount:       3,
		Horizon:           500,
		InterarrivalTime:  0.5,
		ArrivalProcess:    ArrivalConstant,
		ArrivalCV:         1.0,
		EvaporationRate:   0.5,
		EvaporationPeriod: 1.0,
		PheromoneFloor:    0.1,
		InitialPheromone:  1.0,
		DepositEpsilon:    0.001,
		Alpha:             1.0,
		Beta:              2.0,
		PerUnitQueueDelay: 0.1,
		JitterMin:         0.01,
		JitterMax:         0.05,
		MonitorPeriod:     1.0,
		Fault: &FaultConfig{
			Time:     200,
			ServerID: 0,
			Policy:   FaultPolicyKeepLoad,
		},
	}
}

// CapacityOf returns the configured capacity of server id.
func (c SimConfig) CapacityOf(id int) float64 {
	if len(c.Capacities) == 0 {
		return DefaultCapacity
	}
	return c.Capacities[id]
}

// Validate rejects configurations that cannot produce a meaningful run.
// Nothing is clamped here.
func (c SimConfig) Validate() error {
	if !ValidSelectionPolicies[c.Policy] {
		return fmt.Errorf("unknown selection policy %q", c.Policy)
	}
	if c.ServerCount < 1 {
		return fmt.Errorf("server count must be >= 1, got %d", c.ServerCount)
	}
	if len(c.Capacities) != 0 && len(c.Capacities) != c.ServerCount {
		return fmt.Errorf("got %d capacities for %d servers", len(c.Capacities), c.ServerCount)
	}
	for i, capacity := range c.Capacities {
		if !(capacity > 0) || math.IsInf(capacity, 0) {
			return fmt.Errorf("capacity of server %d must be a positive finite number, got %v", i, capacity)
		}
	}
	if !positive(c.Horizon) {
		return fmt.Errorf("horizon must be > 0, got %v", c.Horizon)
	}
	if !positive(c.InterarrivalTime) {
		return fmt.Errorf("interarrival time must be > 0, got %v", c.InterarrivalTime)
	}
	if !ValidArrivalProcesses[c.ArrivalProcess] {
		return fmt.Errorf("unknown arrival process %q", c.ArrivalProcess)
	}
	if (c.ArrivalProcess == ArrivalGamma || c.ArrivalProcess == ArrivalWeibull) && !positive(c.ArrivalCV) {
		return fmt.Errorf("arrival CV must be > 0 for %s arrivals, got %v", c.ArrivalProcess, c.ArrivalCV)
	}
	if !(c.EvaporationRate >= 0 && c.EvaporationRate <= 1) {
		return fmt.Errorf("evaporation rate must be in [0, 1], got %v", c.EvaporationRate)
	}
	if !positive(c.EvaporationPeriod) {
		return fmt.Errorf("evaporation period must be > 0, got %v", c.EvaporationPeriod)
	}
	if !positive(c.PheromoneFloor) {
		return fmt.Errorf("pheromone floor must be > 0, got %v", c.PheromoneFloor)
	}
	if !nonNegative(c.InitialPheromone) {
		return fmt.Errorf("initial pheromone must be >= 0, got %v", c.InitialPheromone)
	}
	if !positive(c.DepositEpsilon) {
		return fmt.Errorf("deposit epsilon must be > 0, got %v", c.DepositEpsilon)
	}
	if !nonNegative(c.Alpha) || !nonNegative(c.Beta) {
		return fmt.Errorf("alpha and beta must be finite values >= 0, got alpha=%v beta=%v", c.Alpha, c.Beta)
	}
	if !nonNegative(c.PerUnitQueueDelay) {
		return fmt.Errorf("per-unit queue delay must be a finite value >= 0, got %v", c.PerUnitQueueDelay)
	}
	if !positive(c.JitterMin) || !positive(c.JitterMax) || c.JitterMax < c.JitterMin {
		return fmt.Errorf("jitter range must satisfy 0 < min <= max, got [%v, %v]", c.JitterMin, c.JitterMax)
	}
	if !positive(c.MonitorPeriod) {
		return fmt.Errorf("monitor period must be > 0, got %v", c.MonitorPeriod)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", c.TraceLevel)
	}
	if c.Fault != nil {
		if err := c.Fault.validate(c.ServerCount, c.Horizon); err != nil {
			return fmt.Errorf("fault: %w", err)
		}
	}
	return nil
}

func (f *FaultConfig) validate(serverCount int, horizon float64) error {
	if !(f.Time >= 0 && f.Time <= horizon) {
		return fmt.Errorf("time %v outside [0, %v]", f.Time, horizon)
	}
	if f.ServerID < 0 || f.ServerID >= serverCount {
		return fmt.Errorf("server id %d out of range [0, %d)", f.ServerID, serverCount)
	}
	if !ValidFaultPolicies[f.Policy] {
		return fmt.Errorf("unknown fault policy %q", f.Policy)
	}
	if f.RecoveryTime != nil {
		if r := *f.RecoveryTime; !(r > f.Time && r <= horizon) {
			return fmt.Errorf("recovery time %v must be in (%v, %v]", r, f.Time, horizon)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// clone returns a deep copy so a running simulation cannot observe later
// edits to the caller's slices or fault settings.
func (c SimConfig) clone() SimConfig {
	out := c
	if c.Capacities != nil {
		out.Capacities = append([]float64(nil), c.Capacities...)
	}
	if c.Fault != nil {
		fault := *c.Fault
		if c.Fault.RecoveryTime != nil {
			recovery := *c.Fault.RecoveryTime
			fault.RecoveryTime = &recovery
		}
		out.Fault = &fault
	}
	return out
}
