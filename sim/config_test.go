package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimConfig_Validates(t *testing.T) {
	cfg := DefaultSimConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.ServerCount)
	assert.Equal(t, 500.0, cfg.Horizon)
	assert.Equal(t, 0.5, cfg.InterarrivalTime)
	require.NotNil(t, cfg.Fault)
	assert.Equal(t, 200.0, cfg.Fault.Time)
	assert.Equal(t, FaultPolicyKeepLoad, cfg.Fault.Policy)
}

func TestSimConfig_Validate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimConfig)
		errMsg string
	}{
		{"unknown policy", func(c *SimConfig) { c.Policy = "least-loaded" }, "selection policy"},
		{"no servers", func(c *SimConfig) { c.ServerCount = 0 }, "server count"},
		{"capacity count mismatch", func(c *SimConfig) { c.Capacities = []float64{1, 1} }, "capacities"},
		{"zero capacity", func(c *SimConfig) { c.Capacities = []float64{1, 0, 1} }, "capacity of server 1"},
		{"negative capacity", func(c *SimConfig) { c.Capacities = []float64{1, 1, -2} }, "capacity of server 2"},
		{"zero horizon", func(c *SimConfig) { c.Horizon = 0 }, "horizon"},
		{"infinite horizon", func(c *SimConfig) { c.Horizon = math.Inf(1) }, "horizon"},
		{"zero interarrival", func(c *SimConfig) { c.InterarrivalTime = 0 }, "interarrival"},
		{"unknown arrival", func(c *SimConfig) { c.ArrivalProcess = "bursty" }, "arrival process"},
		{"gamma without cv", func(c *SimConfig) { c.ArrivalProcess = ArrivalGamma; c.ArrivalCV = 0 }, "arrival CV"},
		{"negative evaporation", func(c *SimConfig) { c.EvaporationRate = -0.1 }, "evaporation rate"},
		{"evaporation above one", func(c *SimConfig) { c.EvaporationRate = 1.5 }, "evaporation rate"},
		{"NaN evaporation", func(c *SimConfig) { c.EvaporationRate = math.NaN() }, "evaporation rate"},
		{"zero evaporation period", func(c *SimConfig) { c.EvaporationPeriod = 0 }, "evaporation period"},
		{"zero floor", func(c *SimConfig) { c.PheromoneFloor = 0 }, "floor"},
		{"negative initial pheromone", func(c *SimConfig) { c.InitialPheromone = -1 }, "initial pheromone"},
		{"zero epsilon", func(c *SimConfig) { c.DepositEpsilon = 0 }, "epsilon"},
		{"negative alpha", func(c *SimConfig) { c.Alpha = -1 }, "alpha"},
		{"negative beta", func(c *SimConfig) { c.Beta = -1 }, "beta"},
		{"negative queue delay", func(c *SimConfig) { c.PerUnitQueueDelay = -0.1 }, "queue delay"},
		{"zero jitter", func(c *SimConfig) { c.JitterMin = 0 }, "jitter"},
		{"inverted jitter", func(c *SimConfig) { c.JitterMax = 0.001 }, "jitter"},
		{"infinite alpha", func(c *SimConfig) { c.Alpha = math.Inf(1) }, "alpha"},
		{"infinite beta", func(c *SimConfig) { c.Beta = math.Inf(1) }, "beta"},
		{"infinite queue delay", func(c *SimConfig) { c.PerUnitQueueDelay = math.Inf(1) }, "queue delay"},
		{"infinite jitter max", func(c *SimConfig) { c.JitterMax = math.Inf(1) }, "jitter"},
		{"infinite jitter min", func(c *SimConfig) { c.JitterMin = math.Inf(1); c.JitterMax = math.Inf(1) }, "jitter"},
		{"zero monitor period", func(c *SimConfig) { c.MonitorPeriod = 0 }, "monitor period"},
		{"unknown trace level", func(c *SimConfig) { c.TraceLevel = "verbose" }, "trace level"},
		{"fault after horizon", func(c *SimConfig) { c.Fault.Time = 600 }, "fault: time"},
		{"negative fault time", func(c *SimConfig) { c.Fault.Time = -1 }, "fault: time"},
		{"fault server out of range", func(c *SimConfig) { c.Fault.ServerID = 3 }, "server id"},
		{"unknown fault policy", func(c *SimConfig) { c.Fault.Policy = "drain" }, "fault policy"},
		{"recovery before fault", func(c *SimConfig) { c.Fault.RecoveryTime = float64Ptr(100) }, "recovery time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSimConfig_Validate_NoFaultIsValid(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Fault = nil

	assert.NoError(t, cfg.Validate())
}

func TestSimConfig_CapacityOf(t *testing.T) {
	cfg := DefaultSimConfig()
	assert.Equal(t, DefaultCapacity, cfg.CapacityOf(2))

	cfg.Capacities = []float64{1, 2, 4}
	assert.Equal(t, 4.0, cfg.CapacityOf(2))
}

func TestSimConfig_Clone_IsDeep(t *testing.T) {
	// GIVEN a config with capacities and a recovery time
	cfg := DefaultSimConfig()
	cfg.Capacities = []float64{1, 2, 3}
	cfg.Fault.RecoveryTime = float64Ptr(300)

	// WHEN cloned and the original is mutated
	clone := cfg.clone()
	cfg.Capacities[0] = 99
	cfg.Fault.ServerID = 2
	*cfg.Fault.RecoveryTime = 400

	// THEN the clone is unaffected
	assert.Equal(t, 1.0, clone.Capacities[0])
	assert.Equal(t, 0, clone.Fault.ServerID)
	assert.Equal(t, 300.0, *clone.Fault.RecoveryTime)
}
