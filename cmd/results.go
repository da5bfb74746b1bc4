package cmd

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/pheromone-sim/sim"
	"github.com/inference-sim/pheromone-sim/sim/trace"
)

// ResultsFile is the document written by --results.
type ResultsFile struct {
	Runs []RunRecord `yaml:"runs"`
}

// RunRecord is one simulation run in the export.
type RunRecord struct {
	RunID    string          `yaml:"run_id"`
	Policy   string          `yaml:"policy"`
	Seed     int64           `yaml:"seed"`
	EndTime  float64         `yaml:"end_time"`
	Metrics  MetricsRecord   `yaml:"metrics"`
	Requests []RequestRecord `yaml:"requests"`
	Servers  []ServerRecord  `yaml:"servers"`
	Trace    *TraceRecord    `yaml:"trace,omitempty"`
}

// MetricsRecord mirrors sim.Metrics with stable YAML keys.
type MetricsRecord struct {
	Completed          int             `yaml:"completed"`
	Dropped            int             `yaml:"dropped"`
	Lost               int             `yaml:"lost"`
	InFlight           int             `yaml:"in_flight"`
	MeanResponseTime   float64         `yaml:"mean_response_time"`
	StdDevResponseTime float64         `yaml:"stddev_response_time"`
	P50ResponseTime    float64         `yaml:"p50_response_time"`
	P90ResponseTime    float64         `yaml:"p90_response_time"`
	P99ResponseTime    float64         `yaml:"p99_response_time"`
	MaxResponseTime    float64         `yaml:"max_response_time"`
	Throughput         float64         `yaml:"throughput"`
	PreFaultShare      map[int]float64 `yaml:"pre_fault_share"`
	PostFaultShare     map[int]float64 `yaml:"post_fault_share"`
	MinPheromone       float64         `yaml:"min_pheromone"`
}

// RequestRecord is one request, terminal or still in flight at the horizon.
type RequestRecord struct {
	ID             int      `yaml:"id"`
	ArrivalTime    float64  `yaml:"arrival_time"`
	Server         int      `yaml:"server"` // -1 when dropped
	State          string   `yaml:"state"`
	CompletionTime *float64 `yaml:"completion_time,omitempty"`
	ResponseTime   *float64 `yaml:"response_time,omitempty"`
}

// ServerRecord holds one server's monitor samples.
type ServerRecord struct {
	ID        int          `yaml:"id"`
	Pheromone [][2]float64 `yaml:"pheromone,flow"` // [time, level]
	Load      []LoadRecord `yaml:"load"`
}

// LoadRecord is one load sample.
type LoadRecord struct {
	Time float64 `yaml:"time"`
	Load int     `yaml:"load"`
}

// TraceRecord summarizes the routing trace of a run.
type TraceRecord struct {
	Decisions             int         `yaml:"decisions"`
	Dispatched            int         `yaml:"dispatched"`
	Dropped               int         `yaml:"dropped"`
	MeanChosenProbability float64     `yaml:"mean_chosen_probability"`
	TargetDistribution    map[int]int `yaml:"target_distribution"`
}

// buildRunRecord converts a sim.Result into its export form. Requests are
// listed by ID with in-flight ones included.
func buildRunRecord(result *sim.Result) RunRecord {
	m := sim.Summarize(result)
	rec := RunRecord{
		RunID:   result.RunID,
		Policy:  result.Policy,
		Seed:    result.Config.Seed,
		EndTime: result.EndTime,
		Metrics: MetricsRecord{
			Completed:          m.Completed,
			Dropped:            m.Dropped,
			Lost:               m.Lost,
			InFlight:           m.InFlight,
			MeanResponseTime:   m.MeanResponseTime,
			StdDevResponseTime: m.StdDevResponseTime,
			P50ResponseTime:    m.P50ResponseTime,
			P90ResponseTime:    m.P90ResponseTime,
			P99ResponseTime:    m.P99ResponseTime,
			MaxResponseTime:    m.MaxResponseTime,
			Throughput:         m.Throughput,
			PreFaultShare:      m.PreFaultShare,
			PostFaultShare:     m.PostFaultShare,
			MinPheromone:       m.MinPheromone,
		},
	}

	requests := make([]sim.Request, 0, len(result.Requests)+len(result.InFlight))
	requests = append(requests, result.Requests...)
	requests = append(requests, result.InFlight...)
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	rec.Requests = make([]RequestRecord, 0, len(requests))
	for _, req := range requests {
		r := RequestRecord{
			ID:          req.ID,
			ArrivalTime: req.ArrivalTime,
			Server:      req.AssignedServer,
			State:       string(req.State),
		}
		if rt, ok := req.ResponseTime(); ok {
			completion := req.CompletionTime
			r.CompletionTime = &completion
			r.ResponseTime = &rt
		}
		rec.Requests = append(rec.Requests, r)
	}

	for _, series := range result.Series {
		sr := ServerRecord{ID: series.ServerID}
		for _, s := range series.Pheromone {
			sr.Pheromone = append(sr.Pheromone, [2]float64{s.Time, s.Level})
		}
		for _, s := range series.Load {
			sr.Load = append(sr.Load, LoadRecord{Time: s.Time, Load: s.Load})
		}
		rec.Servers = append(rec.Servers, sr)
	}

	if result.Trace != nil {
		ts := trace.Summarize(result.Trace)
		rec.Trace = &TraceRecord{
			Decisions:             ts.TotalDecisions,
			Dispatched:            ts.DispatchedCount,
			Dropped:               ts.DroppedCount,
			MeanChosenProbability: ts.MeanChosenProbability,
			TargetDistribution:    ts.TargetDistribution,
		}
	}
	return rec
}

// writeResults exports one or more runs to path as YAML.
func writeResults(path string, results ...*sim.Result) error {
	var file ResultsFile
	for _, result := range results {
		file.Runs = append(file.Runs, buildRunRecord(result))
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}
	return nil
}
