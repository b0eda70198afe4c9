package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// Performer carries out the side effects behind action buttons.
type Performer interface {
	// PerformTransition asks the backend to apply a transition.
	PerformTransition(ctx context.Context, txID string, name ir.TransitionID, params map[string]any) error

	// RequestConfirmation shows the confirmation step for a gated transition.
	RequestConfirmation(name ir.TransitionID)
}

// LocalState is the page-local interaction state that is never persisted.
type LocalState struct {
	// TransitionInProgress is the single transition currently in flight.
	TransitionInProgress ir.TransitionID `json:"transition_in_progress,omitempty" yaml:"transition_in_progress,omitempty"`

	// TransitionError is the failure of the last transition attempt and
	// FailedTransition the transition it belongs to. The in-flight flag is
	// cleared on failure, so the error is matched through FailedTransition.
	TransitionError  error           `json:"-" yaml:"-"`
	FailedTransition ir.TransitionID `json:"failed_transition,omitempty" yaml:"failed_transition,omitempty"`

	// AwaitingConfirmation marks gated transitions whose confirmation is open.
	AwaitingConfirmation map[ir.TransitionID]bool `json:"awaiting_confirmation,omitempty" yaml:"awaiting_confirmation,omitempty"`

	ReviewSubmitted  bool `json:"review_submitted,omitempty" yaml:"review_submitted,omitempty"`
	DisputeSubmitted bool `json:"dispute_submitted,omitempty" yaml:"dispute_submitted,omitempty"`
}

// ActionDescriptor describes one invocable action button. It is rebuilt on
// every derivation and never stored.
type ActionDescriptor struct {
	Transition           ir.TransitionID `json:"transition"`
	LabelKey             string          `json:"label_key"`
	InProgress           bool            `json:"in_progress"`
	Error                error           `json:"-"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	ConfirmationCopyKey  string          `json:"confirmation_copy_key,omitempty"`
	AwaitingConfirmation bool            `json:"awaiting_confirmation,omitempty"`

	// Disabled is set while a sibling action of the same page is in flight.
	Disabled bool `json:"disabled,omitempty"`

	txID      string
	performer Performer
}

// ErrorMessage returns the error text, or "" when there is none.
func (a *ActionDescriptor) ErrorMessage() string {
	if a.Error == nil {
		return ""
	}
	return a.Error.Error()
}

// Invoke runs the action.
//
// While any transition on the page is in flight Invoke is a no-op and
// returns nil: a second attempt is dropped, not queued. That includes a
// pending transition behind neither button, such as a dispute, which the
// performer reports as ErrTransitionInFlight. A confirmation-gated action
// whose confirmation is not open asks the performer to open it and returns
// ErrConfirmationRequired. Otherwise the performer applies the transition.
//
// Descriptors resolved without a performer are display-only and Invoke on
// them does nothing.
func (a *ActionDescriptor) Invoke(ctx context.Context, params map[string]any) error {
	if a.InProgress || a.Disabled || a.performer == nil {
		return nil
	}
	if a.RequiresConfirmation && !a.AwaitingConfirmation {
		a.performer.RequestConfirmation(a.Transition)
		return ErrConfirmationRequired
	}
	err := a.performer.PerformTransition(ctx, a.txID, a.Transition, params)
	if errors.Is(err, ErrTransitionInFlight) {
		return nil
	}
	return err
}

// Actions holds the zero, one or two buttons for a (state, role).
type Actions struct {
	Primary   *ActionDescriptor `json:"primary,omitempty"`
	Secondary *ActionDescriptor `json:"secondary,omitempty"`
}

// ResolveActions builds the action buttons for role from def's UI table.
//
// A transition in flight that matches neither button is ignored, so a
// stale in-flight flag cannot block the page. When tx carries a
// server-supplied NextTransitions list, buttons outside it are dropped.
func ResolveActions(def *process.Definition, tx *ir.Transaction, role ir.Role, local LocalState, p Performer) Actions {
	if def == nil || tx == nil {
		return Actions{}
	}

	row, ok := def.Row(StateOf(def, tx), role)
	if !ok {
		return Actions{}
	}

	actions := Actions{
		Primary:   describe(def, tx, role, row.Primary, local, p),
		Secondary: describe(def, tx, role, row.Secondary, local, p),
	}

	busy := (actions.Primary != nil && actions.Primary.InProgress) ||
		(actions.Secondary != nil && actions.Secondary.InProgress)
	if busy {
		for _, a := range []*ActionDescriptor{actions.Primary, actions.Secondary} {
			if a != nil && !a.InProgress {
				a.Disabled = true
			}
		}
	}

	return actions
}

func describe(def *process.Definition, tx *ir.Transaction, role ir.Role, action *ir.UIAction, local LocalState, p Performer) *ActionDescriptor {
	if action == nil {
		return nil
	}
	if tx.NextTransitions != nil && !slices.Contains(tx.NextTransitions, action.Transition) {
		return nil
	}

	d := &ActionDescriptor{
		Transition:           action.Transition,
		LabelKey:             action.Label,
		InProgress:           local.TransitionInProgress == action.Transition,
		RequiresConfirmation: action.Confirm,
		AwaitingConfirmation: local.AwaitingConfirmation[action.Transition],
		txID:                 tx.ID,
		performer:            p,
	}
	if d.LabelKey == "" {
		d.LabelKey = MessageKey(def, role, action.Transition, "actionButton")
	}
	if d.RequiresConfirmation {
		d.ConfirmationCopyKey = MessageKey(def, role, action.Transition, "confirmation")
	}
	if d.InProgress || local.FailedTransition == action.Transition {
		d.Error = local.TransitionError
	}
	return d
}

// MessageKey builds a translation key such as
// "TransactionPage.default-booking.provider.accept.actionButton".
func MessageKey(def *process.Definition, role ir.Role, name ir.TransitionID, suffix string) string {
	return fmt.Sprintf("TransactionPage.%s.%s.%s.%s", def.Name(), role, name.Short(), suffix)
}
