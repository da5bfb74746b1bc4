package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ExperimentBundle holds experiment configuration loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and leave the base config alone.
// String fields use empty string for "not set".
type ExperimentBundle struct {
	Seed     *int64         `yaml:"seed"`
	Policy   string         `yaml:"policy"`
	Servers  ServersConfig  `yaml:"servers"`
	Workload WorkloadConfig `yaml:"workload"`
	Colony   ColonyConfig   `yaml:"colony"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Fault    *FaultBundle   `yaml:"fault"`
	Trace    string         `yaml:"trace"`
}

// ServersConfig describes the server pool.
type ServersConfig struct {
	Count             *int      `yaml:"count"`
	Capacities        []float64 `yaml:"capacities"`
	PerUnitQueueDelay *float64  `yaml:"per_unit_queue_delay"`
	JitterMin         *float64  `yaml:"jitter_min"`
	JitterMax         *float64  `yaml:"jitter_max"`
}

// WorkloadConfig describes request arrivals and the run length.
type WorkloadConfig struct {
	Horizon          *float64 `yaml:"horizon"`
	InterarrivalTime *float64 `yaml:"interarrival_time"`
	ArrivalProcess   string   `yaml:"arrival_process"`
	ArrivalCV        *float64 `yaml:"arrival_cv"`
}

// ColonyConfig holds the pheromone dynamics and selection exponents.
type ColonyConfig struct {
	EvaporationRate   *float64 `yaml:"evaporation_rate"`
	EvaporationPeriod *float64 `yaml:"evaporation_period"`
	PheromoneFloor    *float64 `yaml:"pheromone_floor"`
	InitialPheromone  *float64 `yaml:"initial_pheromone"`
	DepositEpsilon    *float64 `yaml:"deposit_epsilon"`
	Alpha             *float64 `yaml:"alpha"`
	Beta              *float64 `yaml:"beta"`
}

// MonitorConfig holds the sampling period of the pheromone monitor.
type MonitorConfig struct {
	Period *float64 `yaml:"period"`
}

// FaultBundle configures fault injection. Disabled: true removes any fault
// from the base config.
type FaultBundle struct {
	Disabled     bool     `yaml:"disabled"`
	Time         *float64 `yaml:"time"`
	ServerID     *int     `yaml:"server_id"`
	Policy       string   `yaml:"policy"`
	RecoveryTime *float64 `yaml:"recovery_time"`
}

// LoadExperimentBundle reads and parses a YAML experiment file.
// Unknown keys are rejected so typos cannot silently fall back to defaults.
func LoadExperimentBundle(path string) (*ExperimentBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment config: %w", err)
	}
	var bundle ExperimentBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing experiment config: %w", err)
	}
	return &bundle, nil
}

// Validate checks policy names in the bundle. Numeric ranges are checked by
// SimConfig.Validate once the bundle is applied.
func (b *ExperimentBundle) Validate() error {
	if b.Policy != "" && !ValidSelectionPolicies[b.Policy] {
		return fmt.Errorf("unknown selection policy %q", b.Policy)
	}
	if b.Workload.ArrivalProcess != "" && !ValidArrivalProcesses[ArrivalProcess(b.Workload.ArrivalProcess)] {
		return fmt.Errorf("unknown arrival process %q", b.Workload.ArrivalProcess)
	}
	if b.Fault != nil && b.Fault.Policy != "" && !ValidFaultPolicies[FaultPolicy(b.Fault.Policy)] {
		return fmt.Errorf("unknown fault policy %q", b.Fault.Policy)
	}
	return nil
}

// Apply returns base with every field set in the bundle overridden.
func (b *ExperimentBundle) Apply(base SimConfig) SimConfig {
	cfg := base.clone()
	setInt64(&cfg.Seed, b.Seed)
	if b.Policy != "" {
		cfg.Policy = b.Policy
	}
	if b.Trace != "" {
		cfg.TraceLevel = b.Trace
	}

	setInt(&cfg.ServerCount, b.Servers.Count)
	if len(b.Servers.Capacities) > 0 {
		cfg.Capacities = append([]float64(nil), b.Servers.Capacities...)
	}
	setFloat(&cfg.PerUnitQueueDelay, b.Servers.PerUnitQueueDelay)
	setFloat(&cfg.JitterMin, b.Servers.JitterMin)
	setFloat(&cfg.JitterMax, b.Servers.JitterMax)

	setFloat(&cfg.Horizon, b.Workload.Horizon)
	setFloat(&cfg.InterarrivalTime, b.Workload.InterarrivalTime)
	if b.Workload.ArrivalProcess != "" {
		cfg.ArrivalProcess = ArrivalProcess(b.Workload.ArrivalProcess)
	}
	setFloat(&cfg.ArrivalCV, b.Workload.ArrivalCV)

	setFloat(&cfg.EvaporationRate, b.Colony.EvaporationRate)
	setFloat(&cfg.EvaporationPeriod, b.Colony.EvaporationPeriod)
	setFloat(&cfg.PheromoneFloor, b.Colony.PheromoneFloor)
	setFloat(&cfg.InitialPheromone, b.Colony.InitialPheromone)
	setFloat(&cfg.DepositEpsilon, b.Colony.DepositEpsilon)
	setFloat(&cfg.Alpha, b.Colony.Alpha)
	setFloat(&cfg.Beta, b.Colony.Beta)

	setFloat(&cfg.MonitorPeriod, b.Monitor.Period)

	if b.Fault != nil {
		cfg.Fault = b.Fault.apply(cfg.Fault)
	}
	return cfg
}

func (f *FaultBundle) apply(base *FaultConfig) *FaultConfig {
	if f.Disabled {
		return nil
	}
	fault := FaultConfig{Policy: FaultPolicyKeepLoad}
	if base != nil {
		fault = *base
	}
	setFloat(&fault.Time, f.Time)
	setInt(&fault.ServerID, f.ServerID)
	if f.Policy != "" {
		fault.Policy = FaultPolicy(f.Policy)
	}
	if f.RecoveryTime != nil {
		recovery := *f.RecoveryTime
		fault.RecoveryTime = &recovery
	}
	return &fault
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
