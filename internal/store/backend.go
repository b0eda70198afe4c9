package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
	"github.com/roach88/txflow/internal/session"
)

// DefaultPerPage is the message page size served by Backend.
const DefaultPerPage = 20

// Backend is a local development backend over a Store. It validates
// transitions against the registry the way a marketplace server would.
//
// Thread-safety: mutations are serialized by an internal mutex so that a
// transition is validated against the log it is appended to.
type Backend struct {
	store   *Store
	reg     *process.Registry
	clock   engine.Clock
	ids     engine.IDGenerator
	perPage int
	logger  *slog.Logger

	mu sync.Mutex
}

var _ session.Client = (*Backend)(nil)

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock sets the clock stamping appended transitions and messages.
func WithClock(c engine.Clock) BackendOption {
	return func(b *Backend) {
		b.clock = c
	}
}

// WithIDs sets the generator for message and review ids.
func WithIDs(g engine.IDGenerator) BackendOption {
	return func(b *Backend) {
		b.ids = g
	}
}

// WithPerPage sets the message page size.
func WithPerPage(n int) BackendOption {
	return func(b *Backend) {
		b.perPage = n
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = l
	}
}

// NewBackend creates a Backend over s using reg for validation.
func NewBackend(s *Store, reg *process.Registry, opts ...BackendOption) *Backend {
	b := &Backend{
		store:   s,
		reg:     reg,
		clock:   engine.SystemClock{},
		ids:     engine.UUIDv7Generator{},
		perPage: DefaultPerPage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FetchTransaction returns the stored entity with NextTransitions set to
// the transitions leaving its current state.
func (b *Backend) FetchTransaction(ctx context.Context, txID string) (*ir.Transaction, error) {
	tx, err := b.store.ReadTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if def, err := engine.Resolve(b.reg, tx); err == nil {
		tx.NextTransitions = def.OutgoingTransitions(engine.StateOf(def, tx))
	}
	return tx, nil
}

// PerformTransition validates and appends a transition, then returns the
// refreshed entity. Refusals are *engine.TransitionRejectedError.
func (b *Backend) PerformTransition(ctx context.Context, txID string, name ir.TransitionID, actor ir.Actor, params map[string]any) (*ir.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.validate(ctx, txID, name, actor)
	if err != nil {
		return nil, err
	}

	t := ir.Transition{Name: name, By: actor, At: b.stamp(tx)}
	seq, err := b.store.AppendTransition(ctx, txID, t)
	if err != nil {
		return nil, err
	}
	b.logger.Info("transition appended",
		"transaction_id", txID, "transition", string(name), "actor", string(actor),
		"seq", seq, "params", len(params))

	return b.FetchTransaction(ctx, txID)
}

// SubmitReview validates the review transition, then appends it together
// with the review.
func (b *Backend) SubmitReview(ctx context.Context, txID string, name ir.TransitionID, actor ir.Actor, review session.ReviewInput) (*ir.Transaction, error) {
	if err := review.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.validate(ctx, txID, name, actor)
	if err != nil {
		return nil, err
	}
	def, _ := engine.Resolve(b.reg, tx)
	role, _, ok := def.ReviewRole(name)
	if !ok {
		return nil, engine.NewTransitionRejected(txID, name, engine.RejectForbidden, "not a review transition")
	}

	now := b.stamp(tx)
	r := ir.Review{
		ID:        b.ids.Generate(),
		AuthorID:  tx.PartyID(role),
		Rating:    review.Rating,
		Content:   review.Content,
		CreatedAt: now,
	}
	t := ir.Transition{Name: name, By: actor, At: now}
	if err := b.store.AppendReviewTransition(ctx, txID, t, r); err != nil {
		if errors.Is(err, ErrReviewExists) {
			return nil, engine.NewTransitionRejected(txID, name, engine.RejectStaleState, "review already submitted")
		}
		return nil, err
	}
	b.logger.Info("review submitted", "transaction_id", txID, "transition", string(name), "review_id", r.ID)

	return b.FetchTransaction(ctx, txID)
}

// SendMessage stores a message from senderID, who must be a party.
func (b *Backend) SendMessage(ctx context.Context, txID, senderID, content string) (ir.Message, error) {
	if err := session.ValidateMessage(content); err != nil {
		return ir.Message{}, err
	}
	tx, err := b.store.ReadTransaction(ctx, txID)
	if err != nil {
		return ir.Message{}, err
	}
	if senderID == "" || (senderID != tx.Customer.ID && senderID != tx.Provider.ID) {
		return ir.Message{}, fmt.Errorf("sender %q is not a party to %s", senderID, txID)
	}

	m := ir.Message{
		ID:        b.ids.Generate(),
		SenderID:  senderID,
		Content:   content,
		CreatedAt: b.clock.Now(),
	}
	if err := b.store.AppendMessage(ctx, txID, m); err != nil {
		return ir.Message{}, err
	}
	b.logger.Debug("message stored", "transaction_id", txID, "message_id", m.ID)
	return m, nil
}

// FetchOlderMessages returns page of txID's messages.
func (b *Backend) FetchOlderMessages(ctx context.Context, txID string, page int) (session.MessagePage, error) {
	msgs, hasMore, err := b.store.ReadMessages(ctx, txID, page, b.perPage)
	if err != nil {
		return session.MessagePage{}, err
	}
	return session.MessagePage{Messages: msgs, HasMore: hasMore}, nil
}

// stamp reads the clock, never going back before the latest logged entry
// so appended transitions always sort last.
func (b *Backend) stamp(tx *ir.Transaction) time.Time {
	now := b.clock.Now()
	for _, t := range tx.Transitions {
		if t.At.After(now) {
			now = t.At
		}
	}
	return now
}

// validate checks that name is declared, leaves the current state and may
// be performed by actor. Callers hold b.mu.
func (b *Backend) validate(ctx context.Context, txID string, name ir.TransitionID, actor ir.Actor) (*ir.Transaction, error) {
	tx, err := b.store.ReadTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	def, err := engine.Resolve(b.reg, tx)
	if err != nil {
		return nil, err
	}

	state := engine.StateOf(def, tx)
	switch {
	case !def.HasTransition(name):
		return nil, engine.NewTransitionRejected(txID, name, engine.RejectUnknownTransition,
			fmt.Sprintf("%s does not declare it", def.Name()))
	case !def.Leaves(name, state):
		return nil, engine.NewTransitionRejected(txID, name, engine.RejectStaleState,
			fmt.Sprintf("transaction is in %s", state))
	case !def.CanPerform(name, actor):
		return nil, engine.NewTransitionRejected(txID, name, engine.RejectForbidden,
			fmt.Sprintf("%s may not perform it", actor))
	}
	return tx, nil
}
