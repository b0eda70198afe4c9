package session

import (
	"errors"
	"fmt"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
)

var (
	// ErrTransitionInFlight is returned when a transition is attempted while
	// another is pending. No request is sent.
	ErrTransitionInFlight = engine.ErrTransitionInFlight

	// ErrMessageInFlight is the message channel's equivalent.
	ErrMessageInFlight = errors.New("a message is already being sent")

	// ErrAlreadySubmitted is returned for a second review or dispute
	// submission from the same session.
	ErrAlreadySubmitted = errors.New("already submitted")
)

// MessageSendError reports a failed message send. It only affects the
// message form.
type MessageSendError struct {
	TransactionID string
	Err           error
}

func (e *MessageSendError) Error() string {
	return fmt.Sprintf("send message on %s: %v", e.TransactionID, e.Err)
}

func (e *MessageSendError) Unwrap() error { return e.Err }

// ReviewSubmitError reports a failed review submission. It only affects
// the review form.
type ReviewSubmitError struct {
	TransactionID string
	Transition    ir.TransitionID
	Err           error
}

func (e *ReviewSubmitError) Error() string {
	if e.Transition == "" {
		return fmt.Sprintf("submit review on %s: %v", e.TransactionID, e.Err)
	}
	return fmt.Sprintf("submit review on %s (%s): %v", e.TransactionID, e.Transition, e.Err)
}

func (e *ReviewSubmitError) Unwrap() error { return e.Err }

// IsMessageSend returns true if err is, or wraps, a MessageSendError.
func IsMessageSend(err error) bool {
	var mse *MessageSendError
	return errors.As(err, &mse)
}

// IsReviewSubmit returns true if err is, or wraps, a ReviewSubmitError.
func IsReviewSubmit(err error) bool {
	var rse *ReviewSubmitError
	return errors.As(err, &rse)
}
