// Package trace provides decision-trace recording for routing analysis.
// It has no dependency on sim/ and stores pure data types.
package trace

// NoServer is the ChosenServer value of a decision that dropped its request.
const NoServer = -1

// RoutingRecord captures a single routing decision.
type RoutingRecord struct {
	RequestID     int
	Clock         float64
	ChosenServer  int // NoServer when the request was dropped
	Reason        string
	Probabilities map[int]float64 // server ID → selection probability (nil for round-robin)
}

// Dropped reports whether the decision found no server.
func (r RoutingRecord) Dropped() bool {
	return r.ChosenServer == NoServer
}

// TopologyRecord captures a server changing its active state.
type TopologyRecord struct {
	Clock    float64
	ServerID int
	Active   bool
	Policy   string // fault policy applied on deactivation; empty on recovery
}
