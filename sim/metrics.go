// Summarizes a run's request records for end-of-run reporting.

package sim

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// responseTimeScale converts simulated time units to histogram integer units.
const responseTimeScale = 1e6

// Metrics aggregates the request records of one run.
type Metrics struct {
	Policy    string
	Completed int
	Dropped   int
	Lost      int
	InFlight  int

	MeanResponseTime   float64
	StdDevResponseTime float64
	P50ResponseTime    float64
	P90ResponseTime    float64
	P99ResponseTime    float64
	MaxResponseTime    float64
	Throughput         float64 // completions per unit time

	// Fraction of dispatched requests routed to each server, split at the
	// fault time by arrival. Without a fault everything is in PreFaultShare.
	PreFaultShare  map[int]float64
	PostFaultShare map[int]float64

	MinPheromone float64 // lowest trail level seen by the monitor
}

// Summarize computes Metrics from a Result.
func Summarize(r *Result) *Metrics {
	m := &Metrics{
		Policy:       r.Policy,
		InFlight:     len(r.InFlight),
		MinPheromone: math.Inf(1),
	}

	hist := hdrhistogram.New(1, int64(1e6*responseTimeScale), 3)
	var responseTimes []float64
	for i := range r.Requests {
		req := &r.Requests[i]
		switch req.State {
		case StateCompleted:
			m.Completed++
			rt, _ := req.ResponseTime()
			responseTimes = append(responseTimes, rt)
			if err := hist.RecordValue(int64(math.Ceil(rt * responseTimeScale))); err != nil {
				logrus.Warnf("request %d: response time %v outside histogram range: %v", req.ID, rt, err)
			}
		case StateDropped:
			m.Dropped++
		case StateLost:
			m.Lost++
		}
	}

	if len(responseTimes) > 0 {
		m.MeanResponseTime, m.StdDevResponseTime = stat.MeanStdDev(responseTimes, nil)
		m.P50ResponseTime = float64(hist.ValueAtQuantile(50)) / responseTimeScale
		m.P90ResponseTime = float64(hist.ValueAtQuantile(90)) / responseTimeScale
		m.P99ResponseTime = float64(hist.ValueAtQuantile(99)) / responseTimeScale
		m.MaxResponseTime = floats.Max(responseTimes)
	}
	if r.EndTime > 0 {
		m.Throughput = float64(m.Completed) / r.EndTime
	}

	split := math.Inf(1)
	if r.Config.Fault != nil {
		split = r.Config.Fault.Time
	}
	m.PreFaultShare = make(map[int]float64, len(r.Series))
	m.PostFaultShare = make(map[int]float64, len(r.Series))
	all := dispatchedRequests(r)
	for _, series := range r.Series {
		m.PreFaultShare[series.ServerID] = SelectionShare(all, series.ServerID, 0, split)
		m.PostFaultShare[series.ServerID] = SelectionShare(all, series.ServerID, split, math.Inf(1))
		for _, sample := range series.Pheromone {
			m.MinPheromone = math.Min(m.MinPheromone, sample.Level)
		}
	}
	if math.IsInf(m.MinPheromone, 1) {
		m.MinPheromone = 0
	}
	return m
}

// dispatchedRequests returns every request that was assigned a server,
// terminal or still in flight.
func dispatchedRequests(r *Result) []Request {
	out := make([]Request, 0, len(r.Requests)+len(r.InFlight))
	for _, req := range r.Requests {
		if req.AssignedServer != NoServer {
			out = append(out, req)
		}
	}
	return append(out, r.InFlight...)
}

// SelectionShare returns the fraction of requests arriving in [from, to) that
// were assigned to serverID. Requests without a server are ignored. Returns 0
// when the window holds no dispatched request.
func SelectionShare(requests []Request, serverID int, from, to float64) float64 {
	var hits []float64
	for _, req := range requests {
		if req.AssignedServer == NoServer || req.ArrivalTime < from || req.ArrivalTime >= to {
			continue
		}
		if req.AssignedServer == serverID {
			hits = append(hits, 1)
		} else {
			hits = append(hits, 0)
		}
	}
	if len(hits) == 0 {
		return 0
	}
	return stat.Mean(hits, nil)
}

// Print writes the metrics in a fixed human-readable layout.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintf(w, "=== Simulation Metrics (%s) ===\n", m.Policy)
	fmt.Fprintf(w, "Completed Requests   : %d\n", m.Completed)
	fmt.Fprintf(w, "Dropped Requests     : %d\n", m.Dropped)
	fmt.Fprintf(w, "Lost Requests        : %d\n", m.Lost)
	fmt.Fprintf(w, "In-flight at Horizon : %d\n", m.InFlight)
	if m.Completed > 0 {
		fmt.Fprintf(w, "Mean Response Time   : %.4f (stddev %.4f)\n", m.MeanResponseTime, m.StdDevResponseTime)
		fmt.Fprintf(w, "P50 / P90 / P99      : %.4f / %.4f / %.4f\n", m.P50ResponseTime, m.P90ResponseTime, m.P99ResponseTime)
		fmt.Fprintf(w, "Max Response Time    : %.4f\n", m.MaxResponseTime)
		fmt.Fprintf(w, "Throughput           : %.4f req/unit\n", m.Throughput)
	}
	ids := make([]int, 0, len(m.PreFaultShare))
	for id := range m.PreFaultShare {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "Server %-3d share     : %.3f before fault, %.3f after\n", id, m.PreFaultShare[id], m.PostFaultShare[id])
	}
	fmt.Fprintf(w, "Min Pheromone        : %.4f\n", m.MinPheromone)
}
