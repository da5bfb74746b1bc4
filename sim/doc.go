// Package sim provides the discrete-event core for comparing round-robin and
// pheromone-weighted (ant colony) request routing over a pool of servers.
//
// # Reading Guide
//
// Start with these files:
//   - engine.go: the scheduler. Processes suspend with Wait/WaitUntil and a
//     continuation; the engine resumes them in (time, rank, sequence) order.
//   - routing.go: the Router and its two SelectionPolicy implementations.
//   - simulation.go: the four activities (request generation, evaporation,
//     monitoring, fault injection) and the request lifecycle.
//
// # Determinism
//
// Every random draw goes through the RunStreams derived from SimConfig.Seed:
// arrivals, routing and each server's jitter have separate streams. Two runs
// with the same SimConfig produce identical Request records and pheromone
// series.
//
// # Concurrency
//
// Everything runs on the caller's goroutine. Server and Router state is
// mutated without locks; only one continuation runs at a time.
package sim
