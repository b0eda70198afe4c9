package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/feed"
	"github.com/roach88/txflow/internal/orderintent"
	"github.com/roach88/txflow/internal/process"
	"github.com/roach88/txflow/internal/session"
	"github.com/roach88/txflow/internal/store"
	"github.com/roach88/txflow/internal/testutil"
)

// errNoAction is returned when a step invokes a button the page does not show.
var errNoAction = errors.New("no such action on the page")

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and id generators.
type Harness struct {
	reg    *process.Registry
	logger *slog.Logger
}

// Run executes a scenario against reg and returns the result.
//
// A scenario without steps is derived directly from its fixture. A
// scenario with steps runs in a fresh in-memory database: the fixture is
// saved, a session is opened on a local backend and each step is applied
// through it, so steps exercise the same validation a real backend does.
func Run(reg *process.Registry, scenario *Scenario) (*Result, error) {
	if reg == nil {
		return nil, errors.New("harness: registry is required")
	}
	if scenario == nil {
		return nil, errors.New("harness: scenario is required")
	}

	h := &Harness{
		reg:    reg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	ctx := context.Background()
	result := NewResult()

	if scenario.Listing != nil {
		processName := ""
		if scenario.Transaction != nil {
			processName = scenario.Transaction.ProcessName
		}
		intent, err := orderintent.Classify(scenario.Listing, processName, reg)
		result.Intent = &intent
		result.Err = err
	}

	if scenario.Transaction != nil {
		if len(scenario.Steps) > 0 {
			if err := h.executeSteps(ctx, scenario, result); err != nil {
				return nil, fmt.Errorf("failed to execute steps: %w", err)
			}
		} else {
			h.derive(scenario, result)
		}
	}

	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// derive builds the page straight from the fixture.
func (h *Harness) derive(s *Scenario, result *Result) {
	local := engine.LocalState{}
	if s.Local != nil {
		local = *s.Local
	}

	sd, err := engine.Derive(h.reg, s.Transaction, s.Role, local, nil)
	if err != nil {
		sd = engine.Unsupported(s.Transaction)
		result.Err = errors.Join(result.Err, err)
	}
	result.State = &sd
	result.Feed = feed.ComposeFor(h.reg, s.Transaction, s.Messages, feed.Options{
		HideBeforeOldestMessage: s.HideBeforeOldestMessage,
	})
}

// executeSteps seeds an in-memory store with the fixture and drives a
// session through the steps.
func (h *Harness) executeSteps(ctx context.Context, s *Scenario, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SaveTransaction(ctx, s.Transaction); err != nil {
		return err
	}
	for _, m := range s.Messages {
		if err := st.AppendMessage(ctx, s.Transaction.ID, m); err != nil {
			return err
		}
	}

	// Steps happen one minute apart, after everything in the fixture.
	clock := testutil.NewDeterministicClockAt(latest(s).Add(time.Minute), time.Minute)
	backend := store.NewBackend(st, h.reg,
		store.WithClock(clock),
		store.WithIDs(engine.NewSequenceGenerator("id")),
		store.WithLogger(h.logger),
	)
	sess, err := session.Open(ctx, backend, h.reg, s.Transaction.ID, s.Role,
		session.WithClock(clock),
		session.WithRequestIDs(testutil.NewFixedIDGenerator("")),
		session.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}

	for i, step := range s.Steps {
		code := ErrorCode(h.runStep(ctx, sess, step))
		result.Steps = append(result.Steps, code)
		if code != step.ExpectError {
			result.AddError(fmt.Sprintf("steps[%d]: expected error %q, got %q", i, step.ExpectError, code))
		}
		h.logger.Info("step completed", "step", i, "error", code)
	}

	sd, err := sess.StateData()
	if err != nil {
		result.Err = errors.Join(result.Err, err)
	}
	result.State = &sd
	result.Feed = feed.ComposeFor(h.reg, sess.Transaction(), sess.Messages(), feed.Options{
		HideBeforeOldestMessage: s.HideBeforeOldestMessage || sess.HasMoreMessages(),
	})
	return nil
}

func (h *Harness) runStep(ctx context.Context, sess *session.Session, step Step) error {
	switch {
	case step.Perform != "":
		return sess.PerformTransition(ctx, sess.Transaction().ID, step.Perform, nil)

	case step.Invoke != "":
		sd, err := sess.StateData()
		if err != nil {
			return err
		}
		action := sd.PrimaryAction
		if step.Invoke == InvokeSecondary {
			action = sd.SecondaryAction
		}
		if action == nil {
			return errNoAction
		}
		return action.Invoke(ctx, nil)

	case step.Review != nil:
		return sess.SubmitReview(ctx, session.ReviewInput{
			Rating:  step.Review.Rating,
			Content: step.Review.Content,
		})

	case step.Dispute != nil:
		return sess.SubmitDispute(ctx, *step.Dispute)

	default:
		_, err := sess.SendMessage(ctx, step.Message)
		return err
	}
}

// latest returns the newest timestamp in the fixture.
func latest(s *Scenario) time.Time {
	var t time.Time
	for _, tr := range s.Transaction.Transitions {
		if tr.At.After(t) {
			t = tr.At
		}
	}
	for _, m := range s.Messages {
		if m.CreatedAt.After(t) {
			t = m.CreatedAt
		}
	}
	if t.IsZero() {
		return testutil.Epoch
	}
	return t
}

// ErrorCode maps an error to the short code used by scenario
// expectations. Returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var (
		rejected *engine.TransitionRejectedError
		unknown  *engine.UnknownProcessError
		fields   validation.Errors
		field    validation.Error
	)
	switch {
	case errors.Is(err, engine.ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, session.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, session.ErrTransitionInFlight):
		return "transition_in_flight"
	case errors.Is(err, session.ErrMessageInFlight):
		return "message_in_flight"
	case errors.Is(err, errNoAction):
		return "no_action"
	case errors.As(err, &unknown):
		return "unknown_process"
	case errors.As(err, &rejected):
		return string(rejected.Reason)
	case orderintent.IsInvalidPriceVariants(err):
		return "invalid_price_variants"
	case errors.As(err, &fields), errors.As(err, &field):
		return "invalid_input"
	}
	return err.Error()
}
