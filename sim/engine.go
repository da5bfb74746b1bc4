package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Engine is a single-threaded discrete-event scheduler over a simulated clock.
//
// Activities are modeled as Processes: sequential logic that suspends itself by
// asking to resume after a duration (Wait) or at an absolute time (WaitUntil)
// with a continuation. The engine never preempts a running continuation, so
// shared state mutated between two suspension points of one process is never
// observed half-updated by another.
//
// Ordering: entries resume in non-decreasing time. Entries at the same time
// resume in the registration order of their root activity (rank), then in the
// order they were scheduled.
type Engine struct {
	clock    float64
	queue    EventQueue
	nextSeq  int64
	nextRank int
	executed int64
}

// NewEngine creates an Engine with the clock at zero and no activities.
func NewEngine() *Engine {
	return &Engine{queue: make(EventQueue, 0)}
}

// Now returns the current simulated time.
func (e *Engine) Now() float64 {
	return e.clock
}

// Pending returns the number of scheduled resumptions not yet executed.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// EventsExecuted returns how many continuations have run so far.
func (e *Engine) EventsExecuted() int64 {
	return e.executed
}

// Register adds a root activity. Its body runs at the current clock; the
// registration order fixes its tie-break rank for its whole lifetime and for
// every process it spawns.
func (e *Engine) Register(name string, body func(*Process)) *Process {
	p := &Process{name: name, rank: e.nextRank, engine: e}
	e.nextRank++
	p.WaitUntil(e.clock, body)
	return p
}

// Run executes pending continuations in order until none would resume at or
// before until. Continuations resuming exactly at until are executed. On
// return the clock reads until (or later, if it was already past it).
// Calling Run with until before the current clock panics.
func (e *Engine) Run(until float64) {
	if math.IsNaN(until) || until < e.clock {
		panic(fmt.Sprintf("Engine.Run: until=%v is before current clock %v", until, e.clock))
	}
	for {
		next := e.queue.peek()
		if next == nil || next.time > until {
			break
		}
		e.queue.popNext()
		e.clock = next.time
		next.process.pending = false
		e.executed++
		logrus.Tracef("<< resume %s at t=%.4f", next.process.name, e.clock)
		next.next(next.process)
	}
	if e.clock < until {
		e.clock = until
	}
}

func (e *Engine) schedule(p *Process, at float64, next func(*Process)) {
	if math.IsNaN(at) || at < e.clock {
		panic(fmt.Sprintf("process %q scheduled resumption at t=%v before current clock %v", p.name, at, e.clock))
	}
	if p.pending {
		panic(fmt.Sprintf("process %q is already suspended", p.name))
	}
	p.pending = true
	e.queue.schedule(&eventEntry{
		time:    at,
		rank:    p.rank,
		seqID:   e.nextSeq,
		process: p,
		next:    next,
	})
	e.nextSeq++
}

// Process is one resumable activity. It holds at most one pending resumption.
type Process struct {
	name    string
	rank    int
	engine  *Engine
	pending bool
}

// Name returns the process name given at Register or Spawn.
func (p *Process) Name() string {
	return p.name
}

// Now returns the engine's current simulated time.
func (p *Process) Now() float64 {
	return p.engine.clock
}

// Wait suspends the process and resumes it with next after d time units.
// A negative or NaN duration panics.
func (p *Process) Wait(d float64, next func(*Process)) {
	if math.IsNaN(d) || d < 0 {
		panic(fmt.Sprintf("process %q: invalid wait duration %v", p.name, d))
	}
	p.engine.schedule(p, p.engine.clock+d, next)
}

// WaitUntil suspends the process and resumes it with next at absolute time t.
// A time before the current clock panics.
func (p *Process) WaitUntil(t float64, next func(*Process)) {
	p.engine.schedule(p, t, next)
}

// Spawn starts a child process at the current clock. The child inherits the
// parent's rank and runs after every continuation already scheduled for now
// at that rank.
func (p *Process) Spawn(name string, body func(*Process)) *Process {
	child := &Process{name: name, rank: p.rank, engine: p.engine}
	child.WaitUntil(p.engine.clock, body)
	return child
}
