// Package job defines the asynchronous job domain: the job envelope that
// travels through the queue, the status record kept in the result store,
// and the schedule entries evaluated by the scheduler.
package job

import "time"

// State is the lifecycle state of a job. Observed state sequences are
// always a subsequence of PENDING → STARTED → {SUCCESS | FAILURE}.
type State string

const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"

	// StateUnknown is reported for ids that never existed or whose result
	// record already expired. It is an answer, not an error.
	StateUnknown State = "UNKNOWN"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

// rank orders states along the lifecycle so that status writes can be
// checked for monotonicity. Higher rank never regresses to lower.
func (s State) rank() int {
	switch s {
	case StatePending:
		return 1
	case StateStarted:
		return 2
	case StateSuccess, StateFailure:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step. Terminal states accept no successor.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Envelope is the serialized message published to a queue lane.
type Envelope struct {
	ID         string            `json:"id"`
	Task       string            `json:"task"`
	Args       map[string]string `json:"args,omitempty"`
	Lane       string            `json:"lane"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// Status is the polling record kept in the result store under the job id.
// It is written by the enqueuer (PENDING) and the worker (all later
// states) and reaped when the store's TTL elapses.
type Status struct {
	ID         string    `json:"id"`
	Task       string    `json:"task"`
	Lane       string    `json:"lane"`
	State      State     `json:"state"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// UnknownDetail is the hint attached to UNKNOWN polls: the record may
// simply have expired after the outcome was already delivered by email.
const UnknownDetail = "check email"

// TimeoutErrorPrefix marks errors recorded when a job exceeds its hard
// time limit, so pollers can classify the failure.
const TimeoutErrorPrefix = "timeout: "

// ScheduleEntry is one static recurring-job definition. Entries are
// loaded at startup and never mutated at runtime.
type ScheduleEntry struct {
	Task string `yaml:"task" json:"task"`
	Cron string `yaml:"cron" json:"cron"`
	Lane string `yaml:"lane" json:"lane"`
}
