// Defines the Request record that tracks one request through dispatch and completion.

package sim

import "fmt"

// RequestState represents the lifecycle state of a request.
type RequestState string

const (
	StateCreated    RequestState = "created"
	StateDispatched RequestState = "dispatched"
	StateCompleted  RequestState = "completed"
	StateDropped    RequestState = "dropped" // no active server at arrival
	StateLost       RequestState = "lost"    // in-flight work discarded by a reset fault
)

// NoServer marks a request that was never assigned a server.
const NoServer = -1

// Request is the record of one request. AssignedServer is set once at dispatch
// and CompletionTime once at completion. CompletionTime is only meaningful in
// StateCompleted.
type Request struct {
	ID             int
	ArrivalTime    float64
	AssignedServer int     // NoServer until dispatched
	CompletionTime float64 // zero until completed
	State          RequestState
}

// NewRequest creates a request in StateCreated with no server and no completion.
func NewRequest(id int, arrivalTime float64) *Request {
	return &Request{
		ID:             id,
		ArrivalTime:    arrivalTime,
		AssignedServer: NoServer,
		State:          StateCreated,
	}
}

// Dispatch assigns the request to a server. Panics unless the request is Created.
func (r *Request) Dispatch(serverID int) {
	r.mustBe(StateCreated, "dispatch")
	r.AssignedServer = serverID
	r.State = StateDispatched
}

// Drop marks a request that found no active server.
func (r *Request) Drop() {
	r.mustBe(StateCreated, "drop")
	r.State = StateDropped
}

// Complete stamps the completion time. Panics if now precedes arrival.
func (r *Request) Complete(now float64) {
	r.mustBe(StateDispatched, "complete")
	if now < r.ArrivalTime {
		panic(fmt.Sprintf("request %d: completion %v before arrival %v", r.ID, now, r.ArrivalTime))
	}
	r.CompletionTime = now
	r.State = StateCompleted
}

// Lose marks a dispatched request whose server discarded it.
func (r *Request) Lose() {
	r.mustBe(StateDispatched, "lose")
	r.State = StateLost
}

// HasCompleted reports whether a completion time is set.
func (r *Request) HasCompleted() bool {
	return r.State == StateCompleted
}

// ResponseTime returns completion minus arrival, and false if not completed.
func (r *Request) ResponseTime() (float64, bool) {
	if !r.HasCompleted() {
		return 0, false
	}
	return r.CompletionTime - r.ArrivalTime, true
}

func (r *Request) mustBe(want RequestState, op string) {
	if r.State != want {
		panic(fmt.Sprintf("request %d: cannot %s from state %q", r.ID, op, r.State))
	}
}

// This method returns a human-readable string representation of a Request.
func (r Request) String() string {
	return fmt.Sprintf("Request: (ID: %d, State: %s, Server: %d, ArrivalTime: %.4f)", r.ID, r.State, r.AssignedServer, r.ArrivalTime)
}
