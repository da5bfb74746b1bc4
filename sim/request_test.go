package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestState_Constants_HaveExpectedStringValues(t *testing.T) {
	assert.Equal(t, RequestState("created"), StateCreated)
	assert.Equal(t, RequestState("dispatched"), StateDispatched)
	assert.Equal(t, RequestState("completed"), StateCompleted)
	assert.Equal(t, RequestState("dropped"), StateDropped)
	assert.Equal(t, RequestState("lost"), StateLost)
}

func TestNewRequest_DefaultState_IsCreated(t *testing.T) {
	req := NewRequest(7, 3.5)

	assert.Equal(t, 7, req.ID)
	assert.Equal(t, 3.5, req.ArrivalTime)
	assert.Equal(t, StateCreated, req.State)
	assert.Equal(t, NoServer, req.AssignedServer)
	assert.False(t, req.HasCompleted())
}

func TestRequest_DispatchThenComplete(t *testing.T) {
	// GIVEN a request arriving at t=2
	req := NewRequest(1, 2)

	// WHEN dispatched to server 4 and completed at t=3.25
	req.Dispatch(4)
	req.Complete(3.25)

	// THEN server, completion and response time are recorded
	assert.Equal(t, 4, req.AssignedServer)
	assert.Equal(t, StateCompleted, req.State)
	rt, ok := req.ResponseTime()
	assert.True(t, ok)
	assert.InDelta(t, 1.25, rt, 1e-12)
}

func TestRequest_Drop_HasNoServerOrResponseTime(t *testing.T) {
	req := NewRequest(1, 2)

	req.Drop()

	assert.Equal(t, StateDropped, req.State)
	assert.Equal(t, NoServer, req.AssignedServer)
	_, ok := req.ResponseTime()
	assert.False(t, ok)
}

func TestRequest_Lose_KeepsServer(t *testing.T) {
	req := NewRequest(1, 2)
	req.Dispatch(0)

	req.Lose()

	assert.Equal(t, StateLost, req.State)
	assert.Equal(t, 0, req.AssignedServer)
	assert.False(t, req.HasCompleted())
}

func TestRequest_InvalidTransitions_Panic(t *testing.T) {
	t.Run("complete before dispatch", func(t *testing.T) {
		assert.Panics(t, func() { NewRequest(1, 0).Complete(1) })
	})
	t.Run("dispatch twice", func(t *testing.T) {
		req := NewRequest(1, 0)
		req.Dispatch(0)
		assert.Panics(t, func() { req.Dispatch(1) })
	})
	t.Run("drop after dispatch", func(t *testing.T) {
		req := NewRequest(1, 0)
		req.Dispatch(0)
		assert.Panics(t, func() { req.Drop() })
	})
	t.Run("completion before arrival", func(t *testing.T) {
		req := NewRequest(1, 5)
		req.Dispatch(0)
		assert.Panics(t, func() { req.Complete(4) })
	})
	t.Run("complete after lost", func(t *testing.T) {
		req := NewRequest(1, 0)
		req.Dispatch(0)
		req.Lose()
		assert.Panics(t, func() { req.Complete(2) })
	})
}

func TestRequest_String_IncludesState(t *testing.T) {
	req := NewRequest(3, 0)

	assert.Contains(t, req.String(), "created")
}
