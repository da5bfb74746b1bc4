package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/pheromone-sim/sim"
)

var (
	// Run configuration
	seed           int64     // Seed for every random stream of the run
	policy         string    // Selection policy for `run`
	serverCount    int       // Number of servers in the pool
	capacities     []float64 // Per-server capacity; empty = 1.0 for all
	horizon        float64   // Simulated end time
	interarrival   float64   // Mean gap between request arrivals
	arrivalProcess string    // constant, poisson, gamma or weibull
	arrivalCV      float64   // Coefficient of variation for gamma/weibull arrivals
	traceLevel     string    // Routing decision trace level
	configPath     string    // YAML experiment file
	resultsPath    string    // YAML results export path
	logLevel       string    // Log verbosity level

	// Colony dynamics
	evaporationRate   float64 // Fraction of trail removed per evaporation step
	evaporationPeriod float64 // Time between evaporation steps
	pheromoneFloor    float64 // Minimum trail level
	initialPheromone  float64 // Trail level of every server at t=0
	alpha             float64 // Trail exponent
	beta              float64 // Load-heuristic exponent
	monitorPeriod     float64 // Time between monitor samples

	// Fault injection
	faultTime    float64 // Simulated time of the failure
	faultServer  int     // Server that fails
	faultPolicy  string  // keep-load or reset
	recoveryTime float64 // Time the failed server comes back; only used when set
	noFault      bool    // Disable fault injection entirely
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pheromone-sim",
	Short: "Discrete-event simulator comparing round-robin and ant-colony load balancing",
}

// runCmd executes a single simulation with the selected policy
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := buildSimConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		startTime := time.Now()
		result := sim.NewSimulation(cfg).Run()
		sim.Summarize(result).Print(os.Stdout)
		logrus.Infof("Simulation complete in %v (run %s).", time.Since(startTime), result.RunID)

		if resultsPath != "" {
			if err := writeResults(resultsPath, result); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
	},
}

// compareCmd runs both policies against the same configuration and seed
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run round-robin and ACO on the same configuration and print both",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := buildSimConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		results := runComparison(cfg)
		for i, result := range results {
			if i > 0 {
				fmt.Println()
			}
			sim.Summarize(result).Print(os.Stdout)
		}

		if resultsPath != "" {
			if err := writeResults(resultsPath, results...); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
	},
}

// runComparison runs round-robin first, then ACO. Each run gets its own
// random streams from the shared seed, so the arrival sequence is identical.
func runComparison(cfg sim.SimConfig) []*sim.Result {
	var results []*sim.Result
	for _, name := range []string{sim.PolicyRoundRobin, sim.PolicyACO} {
		c := cfg
		c.Policy = name
		results = append(results, sim.NewSimulation(c).Run())
	}
	return results
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildSimConfig layers defaults, the optional --config file, and explicitly
// set flags, in that order, then validates the result.
func buildSimConfig(cmd *cobra.Command) (sim.SimConfig, error) {
	cfg := sim.DefaultSimConfig()
	if configPath != "" {
		bundle, err := sim.LoadExperimentBundle(configPath)
		if err != nil {
			return cfg, err
		}
		if err := bundle.Validate(); err != nil {
			return cfg, fmt.Errorf("experiment config %s: %w", configPath, err)
		}
		cfg = bundle.Apply(cfg)
		logrus.Infof("Loaded experiment config from %s", configPath)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Lookup("policy") != nil && flags.Changed("policy") {
		cfg.Policy = policy
	}
	if flags.Changed("servers") {
		cfg.ServerCount = serverCount
	}
	if flags.Changed("capacities") {
		cfg.Capacities = append([]float64(nil), capacities...)
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("interarrival") {
		cfg.InterarrivalTime = interarrival
	}
	if flags.Changed("arrival-process") {
		cfg.ArrivalProcess = sim.ArrivalProcess(arrivalProcess)
	}
	if flags.Changed("arrival-cv") {
		cfg.ArrivalCV = arrivalCV
	}
	if flags.Changed("evaporation-rate") {
		cfg.EvaporationRate = evaporationRate
	}
	if flags.Changed("evaporation-period") {
		cfg.EvaporationPeriod = evaporationPeriod
	}
	if flags.Changed("pheromone-floor") {
		cfg.PheromoneFloor = pheromoneFloor
	}
	if flags.Changed("initial-pheromone") {
		cfg.InitialPheromone = initialPheromone
	}
	if flags.Changed("alpha") {
		cfg.Alpha = alpha
	}
	if flags.Changed("beta") {
		cfg.Beta = beta
	}
	if flags.Changed("monitor-period") {
		cfg.MonitorPeriod = monitorPeriod
	}
	if flags.Changed("trace") {
		cfg.TraceLevel = traceLevel
	}
	applyFaultFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		if cfg.Fault != nil && cfg.Fault.Time > cfg.Horizon {
			return cfg, fmt.Errorf("invalid configuration: %w (set --fault-time within the horizon or pass --no-fault)", err)
		}
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFaultFlags overrides the fault settings. --no-fault wins over every
// other fault flag; setting any fault flag re-enables a fault that the
// experiment file disabled.
func applyFaultFlags(cmd *cobra.Command, cfg *sim.SimConfig) {
	flags := cmd.Flags()
	if noFault {
		cfg.Fault = nil
		return
	}
	if !flags.Changed("fault-time") && !flags.Changed("fault-server") &&
		!flags.Changed("fault-policy") && !flags.Changed("recovery-time") {
		return
	}
	fault := *sim.DefaultSimConfig().Fault
	if cfg.Fault != nil {
		fault = *cfg.Fault
	}
	if flags.Changed("fault-time") {
		fault.Time = faultTime
	}
	if flags.Changed("fault-server") {
		fault.ServerID = faultServer
	}
	if flags.Changed("fault-policy") {
		fault.Policy = sim.FaultPolicy(faultPolicy)
	}
	if flags.Changed("recovery-time") {
		recovery := recoveryTime
		fault.RecoveryTime = &recovery
	}
	cfg.Fault = &fault
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerSimFlags binds the shared simulation flags to cmd. Defaults mirror
// sim.DefaultSimConfig so --help shows the values a bare run uses.
func registerSimFlags(cmd *cobra.Command) {
	d := sim.DefaultSimConfig()

	cmd.Flags().Int64Var(&seed, "seed", d.Seed, "Seed for arrivals, routing and service jitter")
	cmd.Flags().IntVar(&serverCount, "servers", d.ServerCount, "Number of servers")
	cmd.Flags().Float64SliceVar(&capacities, "capacities", nil, "Comma-separated per-server capacities (default 1.0 each)")
	cmd.Flags().Float64Var(&horizon, "horizon", d.Horizon, "Simulated end time; must be >= --fault-time unless --no-fault is set")
	cmd.Flags().Float64Var(&interarrival, "interarrival", d.InterarrivalTime, "Mean time between request arrivals")
	cmd.Flags().StringVar(&arrivalProcess, "arrival-process", string(d.ArrivalProcess), "Arrival process (constant, poisson, gamma, weibull)")
	cmd.Flags().Float64Var(&arrivalCV, "arrival-cv", d.ArrivalCV, "Coefficient of variation of gamma/weibull interarrival gaps")
	cmd.Flags().StringVar(&traceLevel, "trace", "", "Routing trace level (none, decisions)")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML experiment file; explicit flags override it")
	cmd.Flags().StringVar(&resultsPath, "results", "", "Write request records and pheromone series to this YAML file")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Colony dynamics
	cmd.Flags().Float64Var(&evaporationRate, "evaporation-rate", d.EvaporationRate, "Fraction of pheromone removed per evaporation step")
	cmd.Flags().Float64Var(&evaporationPeriod, "evaporation-period", d.EvaporationPeriod, "Time between evaporation steps")
	cmd.Flags().Float64Var(&pheromoneFloor, "pheromone-floor", d.PheromoneFloor, "Minimum pheromone level")
	cmd.Flags().Float64Var(&initialPheromone, "initial-pheromone", d.InitialPheromone, "Pheromone level of every server at t=0")
	cmd.Flags().Float64Var(&alpha, "alpha", d.Alpha, "Pheromone exponent in the selection weight")
	cmd.Flags().Float64Var(&beta, "beta", d.Beta, "Load-heuristic exponent in the selection weight (0 = pheromone-proportional)")
	cmd.Flags().Float64Var(&monitorPeriod, "monitor-period", d.MonitorPeriod, "Time between pheromone/load samples")

	// Fault injection
	cmd.Flags().Float64Var(&faultTime, "fault-time", d.Fault.Time, "Simulated time the fault fires")
	cmd.Flags().IntVar(&faultServer, "fault-server", d.Fault.ServerID, "ID of the server that fails")
	cmd.Flags().StringVar(&faultPolicy, "fault-policy", string(d.Fault.Policy), "What happens to in-flight work (keep-load, reset)")
	cmd.Flags().Float64Var(&recoveryTime, "recovery-time", 0, "Time the failed server recovers (default: never)")
	cmd.Flags().BoolVar(&noFault, "no-fault", false, "Disable fault injection")
}

// init sets up CLI flags and subcommands
func init() {
	registerSimFlags(runCmd)
	runCmd.Flags().StringVar(&policy, "policy", sim.PolicyACO, "Selection policy (aco, round-robin)")

	registerSimFlags(compareCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(compareCmd)
}
