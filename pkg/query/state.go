package query

import "time"

// Status is the tag of a [State].
type Status int

const (
	// StatusIdle means a cycle has been requested but has not started yet.
	StatusIdle Status = iota
	// StatusLoading means an attempt is in flight or a retry is pending.
	StatusLoading
	// StatusSuccess means the last cycle delivered a response.
	StatusSuccess
	// StatusError means the last cycle settled with an error.
	StatusError
)

var statusNames = [...]string{
	StatusIdle:    "idle",
	StatusLoading: "loading",
	StatusSuccess: "success",
	StatusError:   "error",
}

// String returns the lower-case status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Response is a successfully decoded payload.
type Response[T any] struct {
	Data T

	// Cached is true when Data came from a fresh cache entry.
	Cached bool

	// FetchedAt is the write time of the entry the data came from.
	FetchedAt time.Time
}

// State is an observable snapshot of a coordinator.
//
// Response and Err are mutually exclusive. They keep the outcome of the last
// settled cycle while a new cycle is Idle or Loading, and are both nil only
// before the first cycle settles.
type State[T any] struct {
	Status   Status
	Response *Response[T]
	Err      *Error
}

// IsLoading reports whether a cycle is requested or running.
func (s State[T]) IsLoading() bool {
	return s.Status == StatusIdle || s.Status == StatusLoading
}

// Idle reports whether a cycle has been requested but not started.
func (s State[T]) Idle() bool {
	return s.Status == StatusIdle
}

// Settled reports whether no cycle is requested or running.
func (s State[T]) Settled() bool {
	return s.Status == StatusSuccess || s.Status == StatusError
}

// Transition is one edge of the coordinator state machine.
type Transition struct {
	From    Status
	To      Status
	Trigger string
}

// Transitions lists every state change a coordinator can make.
var Transitions = []Transition{
	{StatusIdle, StatusLoading, "cycle start"},
	{StatusLoading, StatusSuccess, "fresh cache hit / decoded response"},
	{StatusLoading, StatusError, "retries exhausted / abort"},
	{StatusLoading, StatusIdle, "refetch / locator change"},
	{StatusSuccess, StatusIdle, "refetch / locator change"},
	{StatusError, StatusIdle, "refetch / locator change"},
}

// CanTransition reports whether from -> to is an edge in [Transitions].
func CanTransition(from, to Status) bool {
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
