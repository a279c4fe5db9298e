package domain

import "fmt"

// Action is something a kitchen terminal asks to do with an order.
type Action string

const (
	ActionBump         Action = "bump"
	ActionFastComplete Action = "fast_complete"
)

var bumpNext = map[Status]Status{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusReady,
	StatusReady:      StatusCompleted,
}

// Advance decides the status that follows current under action. It performs
// no I/O; the caller writes the result conditionally against current.
//
// A READY order is never fast-completed: it has to be bumped so that pickup is
// always explicit.
func Advance(current Status, action Action) (Status, error) {
	if !current.Valid() {
		return "", &TransitionError{From: current, Action: action, Reason: "unknown status"}
	}
	switch action {
	case ActionBump:
		next, ok := bumpNext[current]
		if !ok {
			return "", &TransitionError{From: current, Action: action, Reason: "order is already completed"}
		}
		return next, nil
	case ActionFastComplete:
		switch current {
		case StatusPending, StatusInProgress:
			return StatusCompleted, nil
		case StatusReady:
			return "", &TransitionError{From: current, Action: action, Reason: "ready orders must be bumped to completed"}
		default:
			return "", &TransitionError{From: current, Action: action, Reason: "order is already completed"}
		}
	default:
		return "", &TransitionError{From: current, Action: action, Reason: "unknown action"}
	}
}

// TransitionError is a rejected transition. It matches ErrInvalidTransition.
type TransitionError struct {
	From   Status
	Action Action
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in status %s: %s", e.Action, e.From, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrValidation
}
