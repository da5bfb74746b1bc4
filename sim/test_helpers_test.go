package sim

import "math/rand"

// newTestServers creates n active servers with default settings and
// independent, fixed-seed jitter streams.
func newTestServers(n int) []*Server {
	cfg := DefaultSimConfig()
	servers := make([]*Server, n)
	for i := range servers {
		servers[i] = NewServer(i, 1.0, cfg, rand.New(rand.NewSource(int64(i+1))))
	}
	return servers
}

// routeN routes n times and returns the chosen server IDs (NoServer for drops).
func routeN(r *Router, n int) []int {
	ids := make([]int, n)
	for i := range ids {
		d := r.Route()
		if d.Dropped() {
			ids[i] = NoServer
			continue
		}
		ids[i] = d.Server.ID
	}
	return ids
}

// testConfig returns the reference scenario with the given policy.
func testConfig(policy string) SimConfig {
	cfg := DefaultSimConfig()
	cfg.Policy = policy
	return cfg
}

func float64Ptr(v float64) *float64 { return &v }
