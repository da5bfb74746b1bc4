package sim

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/pheromone-sim/sim/trace"
)

// PheromoneSample is one monitoring observation of a server's trail.
type PheromoneSample struct {
	Time  float64
	Level float64
}

// LoadSample is one monitoring observation of a server's in-flight load.
type LoadSample struct {
	Time float64
	Load int
}

// ServerSeries holds the monitoring samples of one server.
type ServerSeries struct {
	ServerID  int
	Pheromone []PheromoneSample
	Load      []LoadSample
}

// Result is the output of one run. Requests holds every request that reached
// a terminal state (completed, dropped, lost) in the order it got there;
// InFlight holds the ones still dispatched when the horizon was reached.
type Result struct {
	RunID    string // unique per run; not part of the deterministic output
	Policy   string
	Config   SimConfig
	Requests []Request
	InFlight []Request
	Series   []ServerSeries // ordered by server ID
	Trace    *trace.SimulationTrace
	EndTime  float64
}

// Simulation wires servers, a router and an engine into one experiment run.
// The four root activities are registered in a fixed order, which is also
// their tie-break order at equal timestamps: request generation, evaporation,
// monitoring, fault injection.
type Simulation struct {
	config  SimConfig
	engine  *Engine
	streams *RunStreams
	arrival *rand.Rand
	sampler ArrivalSampler
	servers []*Server
	router  *Router
	trace   *trace.SimulationTrace

	nextRequestID int
	inFlight      map[int]map[int]*Request // server ID → request ID → request
	finished      []Request
	series        []ServerSeries
	hasRun        bool
}

// NewSimulation builds a run from cfg. The config is copied; later changes to
// the caller's value have no effect. Panics if cfg does not validate.
func NewSimulation(cfg SimConfig) *Simulation {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("NewSimulation: invalid config: %v", err))
	}
	cfg = cfg.clone()

	streams := NewRunStreams(cfg.Seed)
	servers := make([]*Server, cfg.ServerCount)
	inFlight := make(map[int]map[int]*Request, cfg.ServerCount)
	series := make([]ServerSeries, cfg.ServerCount)
	for id := range servers {
		servers[id] = NewServer(id, cfg.CapacityOf(id), cfg, streams.ServerJitter(id))
		inFlight[id] = make(map[int]*Request)
		series[id] = ServerSeries{ServerID: id}
	}

	var policyRNG *rand.Rand
	if cfg.Policy == PolicyACO {
		policyRNG = streams.Router()
	}
	policy := NewSelectionPolicy(cfg.Policy, cfg.Alpha, cfg.Beta, policyRNG)

	var st *trace.SimulationTrace
	if trace.TraceLevel(cfg.TraceLevel) == trace.TraceLevelDecisions {
		st = trace.NewSimulationTrace(trace.TraceLevelDecisions)
	}

	return &Simulation{
		config:   cfg,
		engine:   NewEngine(),
		streams:  streams,
		arrival:  streams.Arrivals(),
		sampler:  NewArrivalSampler(cfg.ArrivalProcess, cfg.InterarrivalTime, cfg.ArrivalCV),
		servers:  servers,
		router:   NewRouter(servers, policy, cfg.DepositEpsilon),
		trace:    st,
		inFlight: inFlight,
		series:   series,
	}
}

// Servers returns the server pool, ordered by ID.
func (s *Simulation) Servers() []*Server {
	return s.servers
}

// Router returns the run's router.
func (s *Simulation) Router() *Router {
	return s.router
}

// Engine returns the run's engine.
func (s *Simulation) Engine() *Engine {
	return s.engine
}

// Run registers the activities, advances the engine to the horizon and
// returns the collected records. Panics if called more than once.
func (s *Simulation) Run() *Result {
	if s.hasRun {
		panic("Simulation.Run() called more than once")
	}
	s.hasRun = true

	logrus.Infof("Starting %s simulation: %d servers, horizon=%v, interarrival=%v (%s), seed=%d",
		s.config.Policy, s.config.ServerCount, s.config.Horizon, s.config.InterarrivalTime,
		s.config.ArrivalProcess, s.config.Seed)

	s.engine.Register("request-generator", s.generateRequests)
	s.engine.Register("evaporation", s.evaporate)
	s.engine.Register("monitor", s.monitor)
	if s.config.Fault != nil {
		s.engine.Register("fault-injection", s.injectFault)
	}

	s.engine.Run(s.config.Horizon)

	result := &Result{
		RunID:    uuid.New().String(),
		Policy:   s.config.Policy,
		Config:   s.config,
		Requests: s.finished,
		InFlight: s.collectInFlight(),
		Series:   s.series,
		Trace:    s.trace,
		EndTime:  s.engine.Now(),
	}
	logrus.Infof("Finished %s simulation at t=%v: %d terminal requests, %d in flight, %d events",
		s.config.Policy, result.EndTime, len(result.Requests), len(result.InFlight), s.engine.EventsExecuted())
	return result
}

// generateRequests creates one request per interarrival gap and hands each to
// its own lifecycle process.
func (s *Simulation) generateRequests(p *Process) {
	p.Wait(s.sampler.NextGap(s.arrival), func(p *Process) {
		req := NewRequest(s.nextRequestID, p.Now())
		s.nextRequestID++
		p.Spawn(fmt.Sprintf("request_%d", req.ID), func(rp *Process) {
			s.dispatch(rp, req)
		})
		s.generateRequests(p)
	})
}

// dispatch moves a request from Created to Dispatched (or Dropped) and waits
// out its service time.
func (s *Simulation) dispatch(p *Process, req *Request) {
	decision := s.router.Route()
	s.recordRouting(req, decision, p.Now())

	if decision.Dropped() {
		req.Drop()
		s.finish(req)
		logrus.Debugf("t=%.4f request %d dropped: %s", p.Now(), req.ID, decision.Reason)
		return
	}

	server := decision.Server
	epoch := server.acquire()
	req.Dispatch(server.ID)
	s.inFlight[server.ID][req.ID] = req

	duration := server.EstimateResponseTime()
	logrus.Debugf("t=%.4f request %d -> server %d (%s), service %.4f",
		p.Now(), req.ID, server.ID, decision.Reason, duration)

	p.Wait(duration, func(p *Process) {
		s.complete(p, req, server, epoch)
	})
}

// complete releases the server, stamps the request and reinforces the trail.
// Work discarded by a reset fault in the meantime was already recorded as lost.
func (s *Simulation) complete(p *Process, req *Request, server *Server, epoch int) {
	if !server.release(epoch) {
		return
	}
	delete(s.inFlight[server.ID], req.ID)
	req.Complete(p.Now())

	if s.config.Policy == PolicyACO {
		rt, _ := req.ResponseTime()
		s.router.Reinforce(server, rt)
	}
	s.finish(req)
	logrus.Debugf("t=%.4f request %d completed on server %d", p.Now(), req.ID, server.ID)
}

// evaporate decays every server's trail once per period.
func (s *Simulation) evaporate(p *Process) {
	p.Wait(s.config.EvaporationPeriod, func(p *Process) {
		for _, server := range s.servers {
			server.DecayPheromone(s.config.EvaporationRate)
		}
		s.evaporate(p)
	})
}

// monitor samples every server's trail and load, starting at t=0.
func (s *Simulation) monitor(p *Process) {
	now := p.Now()
	for i, server := range s.servers {
		s.series[i].Pheromone = append(s.series[i].Pheromone, PheromoneSample{Time: now, Level: server.Pheromone})
		s.series[i].Load = append(s.series[i].Load, LoadSample{Time: now, Load: server.Load})
	}
	p.Wait(s.config.MonitorPeriod, s.monitor)
}

// injectFault deactivates the configured server and, if requested, brings it
// back later.
func (s *Simulation) injectFault(p *Process) {
	fault := s.config.Fault
	p.WaitUntil(fault.Time, func(p *Process) {
		server := s.servers[fault.ServerID]
		if fault.Policy == FaultPolicyReset {
			s.loseInFlight(server)
		}
		server.Fail(fault.Policy)
		s.recordTopology(p.Now(), server, string(fault.Policy))
		logrus.Infof("t=%v server %d failed (policy %s)", p.Now(), server.ID, fault.Policy)

		if fault.RecoveryTime == nil {
			return
		}
		p.WaitUntil(*fault.RecoveryTime, func(p *Process) {
			server.Recover()
			s.recordTopology(p.Now(), server, "")
			logrus.Infof("t=%v server %d recovered", p.Now(), server.ID)
		})
	})
}

// loseInFlight marks every request in flight on server as lost, in ID order.
func (s *Simulation) loseInFlight(server *Server) {
	lost := sortedRequests(s.inFlight[server.ID])
	for _, req := range lost {
		req.Lose()
		s.finish(req)
	}
	s.inFlight[server.ID] = make(map[int]*Request)
	if len(lost) > 0 {
		logrus.Warnf("server %d reset: %d in-flight requests lost", server.ID, len(lost))
	}
}

func (s *Simulation) finish(req *Request) {
	s.finished = append(s.finished, *req)
}

func (s *Simulation) collectInFlight() []Request {
	var out []Request
	for _, server := range s.servers {
		for _, req := range sortedRequests(s.inFlight[server.ID]) {
			out = append(out, *req)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulation) recordRouting(req *Request, decision RoutingDecision, now float64) {
	if s.trace == nil {
		return
	}
	chosen := trace.NoServer
	if !decision.Dropped() {
		chosen = decision.Server.ID
	}
	s.trace.RecordRouting(trace.RoutingRecord{
		RequestID:     req.ID,
		Clock:         now,
		ChosenServer:  chosen,
		Reason:        decision.Reason,
		Probabilities: decision.Probabilities,
	})
}

func (s *Simulation) recordTopology(now float64, server *Server, policy string) {
	if s.trace == nil {
		return
	}
	s.trace.RecordTopology(trace.TopologyRecord{
		Clock:    now,
		ServerID: server.ID,
		Active:   server.IsActive,
		Policy:   policy,
	})
}

func sortedRequests(m map[int]*Request) []*Request {
	out := make([]*Request, 0, len(m))
	for _, req := range m {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
