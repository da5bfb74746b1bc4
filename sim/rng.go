package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// Stream names. Each names one independent source of randomness in a run.
const (
	streamArrivals = "arrivals"
	streamRouter   = "router"
)

// jitterStream names the response-time jitter stream of one server. Keying by
// server ID means growing the pool never changes the jitter an existing
// server sees.
func jitterStream(serverID int) string {
	return fmt.Sprintf("jitter/server-%d", serverID)
}

// RunStreams hands out the random streams of one simulation run, all derived
// from SimConfig.Seed:
//   - arrivals: the seed itself, so every policy run with the same seed sees
//     the same arrival sequence
//   - router and per-server jitter: seed XOR fnv1a64(stream name)
//
// Drawing more values from one stream (e.g. extra routing draws under ACO)
// never shifts another, which is what lets `compare` pit round-robin and ACO
// against identical traffic.
//
// Not safe for concurrent use; the engine is single-threaded.
type RunStreams struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewRunStreams creates the streams for a run seeded with seed.
func NewRunStreams(seed int64) *RunStreams {
	return &RunStreams{seed: seed, streams: make(map[string]*rand.Rand)}
}

// Seed returns the run seed.
func (r *RunStreams) Seed() int64 {
	return r.seed
}

// Arrivals returns the stream used for interarrival gaps.
func (r *RunStreams) Arrivals() *rand.Rand {
	return r.stream(streamArrivals)
}

// Router returns the stream used for probabilistic server selection.
func (r *RunStreams) Router() *rand.Rand {
	return r.stream(streamRouter)
}

// ServerJitter returns the jitter stream of server id.
func (r *RunStreams) ServerJitter(id int) *rand.Rand {
	return r.stream(jitterStream(id))
}

// stream returns the cached stream for name, creating it on first use.
func (r *RunStreams) stream(name string) *rand.Rand {
	if rng, ok := r.streams[name]; ok {
		return rng
	}
	seed := r.seed
	if name != streamArrivals {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	r.streams[name] = rng
	return rng
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
