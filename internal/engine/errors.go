package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/txflow/internal/ir"
)

// ErrConfirmationRequired is returned by ActionDescriptor.Invoke when the
// transition needs an explicit confirmation step first. The descriptor has
// already asked the performer to show the confirmation.
var ErrConfirmationRequired = errors.New("transition requires confirmation")

// ErrTransitionInFlight is returned by a Performer that refuses a transition
// because another one is pending. No request is sent.
var ErrTransitionInFlight = errors.New("a transition is already in flight")

// UnknownProcessError reports a transaction whose process is not in the
// registry. It is not retryable; callers render a generic "process not
// recognized" banner and disable every action.
type UnknownProcessError struct {
	ProcessName  string
	ProcessAlias string
}

func (e *UnknownProcessError) Error() string {
	if e.ProcessAlias != "" {
		return fmt.Sprintf("%s: transaction process %q (alias %q) not recognized",
			ErrCodeUnknownProcess, e.ProcessName, e.ProcessAlias)
	}
	return fmt.Sprintf("%s: transaction process %q not recognized", ErrCodeUnknownProcess, e.ProcessName)
}

// ErrorCode categorizes engine and backend errors.
type ErrorCode string

const (
	// ErrCodeUnknownProcess indicates the process name is not registered.
	ErrCodeUnknownProcess ErrorCode = "UNKNOWN_PROCESS"

	// ErrCodeTransitionRejected indicates the backend refused a transition.
	ErrCodeTransitionRejected ErrorCode = "TRANSITION_REJECTED"
)

// RejectionReason says why a transition was refused.
type RejectionReason string

const (
	// RejectStaleState means the transition does not leave the current state.
	RejectStaleState RejectionReason = "stale_state"

	// RejectForbidden means the actor may not perform the transition.
	RejectForbidden RejectionReason = "forbidden"

	// RejectUnknownTransition means the process does not declare it.
	RejectUnknownTransition RejectionReason = "unknown_transition"

	// RejectServer covers transport or server failures.
	RejectServer RejectionReason = "server"
)

// TransitionRejectedError reports a transition the backend refused.
// It is surfaced next to the action button that triggered it and is
// retryable by invoking the same action again.
type TransitionRejectedError struct {
	TransactionID string
	Transition    ir.TransitionID
	Reason        RejectionReason
	Message       string
	Err           error
}

func (e *TransitionRejectedError) Error() string {
	msg := fmt.Sprintf("%s: %s rejected (%s)", ErrCodeTransitionRejected, e.Transition, e.Reason)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransitionRejectedError) Unwrap() error { return e.Err }

// IsUnknownProcess returns true if err is, or wraps, an UnknownProcessError.
func IsUnknownProcess(err error) bool {
	var upe *UnknownProcessError
	return errors.As(err, &upe)
}

// IsTransitionRejected returns true if err is, or wraps, a TransitionRejectedError.
func IsTransitionRejected(err error) bool {
	var tre *TransitionRejectedError
	return errors.As(err, &tre)
}

// NewTransitionRejected creates a TransitionRejectedError.
func NewTransitionRejected(txID string, name ir.TransitionID, reason RejectionReason, message string) *TransitionRejectedError {
	return &TransitionRejectedError{
		TransactionID: txID,
		Transition:    name,
		Reason:        reason,
		Message:       message,
	}
}
