// Package session holds the mutable state around one transaction page:
// the fetched entity, loaded messages, and the single-flight channels for
// transitions and messages.
//
// Derivation itself stays in engine and feed; a Session only decides when
// to call the backend and what to remember between derivations.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/feed"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// Session is the view of one transaction for one role.
// All methods are safe for concurrent use.
type Session struct {
	client Client
	reg    *process.Registry
	role   ir.Role
	clock  engine.Clock
	reqIDs engine.IDGenerator
	logger *slog.Logger

	mu       sync.Mutex
	tx       *ir.Transaction
	messages []ir.Message
	page     int // last message page fetched; 0 before the first fetch
	hasMore  bool
	local    engine.LocalState

	messageInFlight bool
	messageErr      error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithClock sets the clock used for sent messages the backend returns
// without a timestamp.
func WithClock(c engine.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithRequestIDs sets the generator for per-request log correlation ids.
func WithRequestIDs(g engine.IDGenerator) Option {
	return func(s *Session) {
		s.reqIDs = g
	}
}

// New creates a session around an already fetched transaction.
func New(client Client, reg *process.Registry, role ir.Role, tx *ir.Transaction, opts ...Option) (*Session, error) {
	if client == nil {
		return nil, errors.New("session: nil client")
	}
	if tx == nil {
		return nil, errors.New("session: nil transaction")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("session: invalid role %q", role)
	}

	s := &Session{
		client: client,
		reg:    reg,
		role:   role,
		clock:  engine.SystemClock{},
		reqIDs: engine.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tx:     tx,
		local:  engine.LocalState{AwaitingConfirmation: make(map[ir.TransitionID]bool)},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("transaction_id", tx.ID, "role", string(role))
	return s, nil
}

// Open fetches the transaction and its newest page of messages.
func Open(ctx context.Context, client Client, reg *process.Registry, txID string, role ir.Role, opts ...Option) (*Session, error) {
	if client == nil {
		return nil, errors.New("session: nil client")
	}
	tx, err := client.FetchTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", txID, err)
	}
	s, err := New(client, reg, role, tx, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.LoadOlderMessages(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Role returns the viewing role.
func (s *Session) Role() ir.Role { return s.role }

// Transaction returns the current entity. Callers must not modify it.
func (s *Session) Transaction() *ir.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx
}

// Messages returns the loaded messages, oldest first.
func (s *Session) Messages() []ir.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// HasMoreMessages reports whether older messages remain unfetched.
func (s *Session) HasMoreMessages() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Local returns a copy of the page-local interaction state.
func (s *Session) Local() engine.LocalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localLocked()
}

func (s *Session) localLocked() engine.LocalState {
	local := s.local
	local.AwaitingConfirmation = maps.Clone(s.local.AwaitingConfirmation)
	return local
}

// MessageError returns the last message send failure, if any.
func (s *Session) MessageError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageErr
}

// StateData derives the page state. Action descriptors invoke back into
// this session. For an unknown process it returns the banner state along
// with the *engine.UnknownProcessError.
func (s *Session) StateData() (engine.StateData, error) {
	s.mu.Lock()
	tx, local := s.tx, s.localLocked()
	s.mu.Unlock()

	sd, err := engine.Derive(s.reg, tx, s.role, local, s)
	if engine.IsUnknownProcess(err) {
		return engine.Unsupported(tx), err
	}
	return sd, err
}

// Feed composes the activity feed. Leading transitions are hidden while
// older messages remain unfetched.
func (s *Session) Feed() []feed.Item {
	s.mu.Lock()
	tx, messages, hasMore := s.tx, slices.Clone(s.messages), s.hasMore
	s.mu.Unlock()

	return feed.ComposeFor(s.reg, tx, messages, feed.Options{HideBeforeOldestMessage: hasMore})
}

// RequestConfirmation opens the confirmation step for a gated transition.
func (s *Session) RequestConfirmation(name ir.TransitionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.AwaitingConfirmation[name] = true
}

// CancelConfirmation closes the confirmation step without performing.
func (s *Session) CancelConfirmation(name ir.TransitionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.local.AwaitingConfirmation, name)
}

// PerformTransition applies a transition through the backend.
//
// Only one transition may be in flight; a concurrent call returns
// ErrTransitionInFlight without contacting the backend. On success the
// transaction is replaced by the backend's entity. On failure the error is
// kept as a *engine.TransitionRejectedError against name so the matching
// button can show it.
func (s *Session) PerformTransition(ctx context.Context, txID string, name ir.TransitionID, params map[string]any) error {
	_, err := s.perform(ctx, txID, name, func(ctx context.Context) (*ir.Transaction, error) {
		return s.client.PerformTransition(ctx, txID, name, ir.Actor(s.role), params)
	})
	return err
}

// SubmitDispute performs the role's dispute transition once.
func (s *Session) SubmitDispute(ctx context.Context, reason string) error {
	s.mu.Lock()
	if s.local.DisputeSubmitted {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	tx := s.tx
	s.mu.Unlock()

	def, err := engine.Resolve(s.reg, tx)
	if err != nil {
		return err
	}
	rd := engine.ResolveReviewDispute(def, tx, s.role)
	if !rd.ShowDispute {
		name, _ := def.DisputeTransition(s.role)
		return engine.NewTransitionRejected(tx.ID, name, engine.RejectStaleState, "dispute is not available")
	}

	params := map[string]any{}
	if reason != "" {
		params["disputeReason"] = reason
	}
	if err := s.PerformTransition(ctx, tx.ID, rd.DisputeTransition, params); err != nil {
		return err
	}

	s.mu.Lock()
	s.local.DisputeSubmitted = true
	s.mu.Unlock()
	return nil
}

// SubmitReview validates input and performs the role's open review
// transition once. Failures are returned as *ReviewSubmitError.
func (s *Session) SubmitReview(ctx context.Context, input ReviewInput) error {
	s.mu.Lock()
	if s.local.ReviewSubmitted {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	tx := s.tx
	s.mu.Unlock()

	if err := input.Validate(); err != nil {
		return &ReviewSubmitError{TransactionID: tx.ID, Err: err}
	}

	def, err := engine.Resolve(s.reg, tx)
	if err != nil {
		return &ReviewSubmitError{TransactionID: tx.ID, Err: err}
	}
	rd := engine.ResolveReviewDispute(def, tx, s.role)
	if rd.ReviewSlot == "" {
		return ErrAlreadySubmitted
	}

	_, err = s.perform(ctx, tx.ID, rd.ReviewTransition, func(ctx context.Context) (*ir.Transaction, error) {
		return s.client.SubmitReview(ctx, tx.ID, rd.ReviewTransition, ir.Actor(s.role), input)
	})
	if err != nil {
		if errors.Is(err, ErrTransitionInFlight) {
			return err
		}
		return &ReviewSubmitError{TransactionID: tx.ID, Transition: rd.ReviewTransition, Err: err}
	}

	s.mu.Lock()
	s.local.ReviewSubmitted = true
	s.mu.Unlock()
	return nil
}

// perform runs call on the transition channel.
func (s *Session) perform(ctx context.Context, txID string, name ir.TransitionID, call func(context.Context) (*ir.Transaction, error)) (*ir.Transaction, error) {
	s.mu.Lock()
	if s.local.TransitionInProgress != "" {
		s.mu.Unlock()
		return nil, ErrTransitionInFlight
	}
	if txID != s.tx.ID {
		s.mu.Unlock()
		return nil, fmt.Errorf("session is for transaction %s, not %s", s.tx.ID, txID)
	}
	s.local.TransitionInProgress = name
	s.local.TransitionError = nil
	s.local.FailedTransition = ""
	s.mu.Unlock()

	logger := s.logger.With("request_id", s.reqIDs.Generate(), "transition", string(name))
	logger.Debug("performing transition")

	updated, err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local.TransitionInProgress = ""
	delete(s.local.AwaitingConfirmation, name)

	if err == nil && updated == nil {
		err = errors.New("backend returned no transaction")
	}
	if err != nil {
		var rejected *engine.TransitionRejectedError
		if !errors.As(err, &rejected) {
			rejected = &engine.TransitionRejectedError{
				TransactionID: txID,
				Transition:    name,
				Reason:        engine.RejectServer,
				Err:           err,
			}
			err = rejected
		}
		s.local.TransitionError = err
		s.local.FailedTransition = name
		logger.Warn("transition failed", "reason", string(rejected.Reason), "error", err)
		return nil, err
	}

	s.tx = updated
	logger.Info("transition performed", "transitions", len(updated.Transitions))
	return updated, nil
}

// SendMessage sends content as the viewing party and appends the stored
// message, server timestamp included, to the loaded messages. The message
// channel is independent of transitions; a second send while one is
// pending returns ErrMessageInFlight without reaching the client.
func (s *Session) SendMessage(ctx context.Context, content string) (string, error) {
	s.mu.Lock()
	if s.messageInFlight {
		s.mu.Unlock()
		return "", ErrMessageInFlight
	}
	txID, senderID := s.tx.ID, s.tx.PartyID(s.role)
	s.mu.Unlock()

	if err := ValidateMessage(content); err != nil {
		return "", &MessageSendError{TransactionID: txID, Err: err}
	}

	s.mu.Lock()
	if s.messageInFlight {
		s.mu.Unlock()
		return "", ErrMessageInFlight
	}
	s.messageInFlight = true
	s.messageErr = nil
	s.mu.Unlock()

	logger := s.logger.With("request_id", s.reqIDs.Generate())
	logger.Debug("sending message", "bytes", len(content))

	sent, err := s.client.SendMessage(ctx, txID, senderID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageInFlight = false
	if err != nil {
		s.messageErr = &MessageSendError{TransactionID: txID, Err: err}
		logger.Warn("message send failed", "error", err)
		return "", s.messageErr
	}

	if sent.SenderID == "" {
		sent.SenderID = senderID
	}
	if sent.Content == "" {
		sent.Content = content
	}
	if sent.CreatedAt.IsZero() {
		sent.CreatedAt = s.clock.Now()
	}
	s.messages = append(s.messages, sent)
	logger.Info("message sent", "message_id", sent.ID)
	return sent.ID, nil
}

// LoadOlderMessages fetches the next older page and prepends it. It does
// nothing once the oldest page has been loaded.
func (s *Session) LoadOlderMessages(ctx context.Context) error {
	s.mu.Lock()
	if s.page > 0 && !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	txID, next := s.tx.ID, s.page+1
	s.mu.Unlock()

	page, err := s.client.FetchOlderMessages(ctx, txID, next)
	if err != nil {
		return fmt.Errorf("fetch messages page %d: %w", next, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page+1 != next {
		// Another call loaded this page first.
		return nil
	}

	seen := make(map[string]bool, len(s.messages))
	for _, m := range s.messages {
		seen[m.ID] = true
	}
	older := make([]ir.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		if !seen[m.ID] {
			older = append(older, m)
		}
	}
	s.messages = append(older, s.messages...)
	s.page = next
	s.hasMore = page.HasMore
	s.logger.Debug("loaded messages", "page", next, "count", len(older), "has_more", page.HasMore)
	return nil
}
