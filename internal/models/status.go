package models

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusStopped   Status = "stopped"

	// StatusNotFound is reported by transports for unknown task ids. It is never stored on a task.
	StatusNotFound Status = "not_found"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusError},
	StatusRunning: {StatusCompleted, StatusStopped, StatusError},
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusStopped:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
