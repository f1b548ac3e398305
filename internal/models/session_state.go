package models

import "fmt"

type SessionStatus string

const (
	SessionScheduled   SessionStatus = "scheduled"
	SessionInProgress  SessionStatus = "in_progress"
	SessionCompleted   SessionStatus = "completed"
	SessionInvalidated SessionStatus = "invalidated"
)

// allowedTransitions is the complete session state machine. Terminal states have no entry.
var allowedTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionInProgress},
	SessionInProgress: {SessionCompleted, SessionInvalidated},
}

// IsTerminal reports whether no transition leaves the status.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionInvalidated
}

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionInvalidated:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IllegalTransitionError is returned when a state change is not part of the state machine.
type IllegalTransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal session transition %s -> %s", e.From, e.To)
}

// TransitionTo moves the session to next or fails without modifying it.
func (s *InterviewSession) TransitionTo(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return &IllegalTransitionError{From: s.Status, To: next}
	}
	s.Status = next
	return nil
}
