package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/txflow/internal/ir"
)

// ReadTransaction loads a transaction with its full log and reviews.
// Returns ErrNotFound if the id is unknown.
//
// Transitions are ordered by seq; reviews by created_at, id.
func (s *Store) ReadTransaction(ctx context.Context, id string) (*ir.Transaction, error) {
	var (
		tx                          ir.Transaction
		listing, customer, provider string
		lineItems, protected        string
		booking                     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, process_name, process_alias, listing, customer, provider, booking, line_items, protected_data
		FROM transactions
		WHERE id = ?
	`, id).Scan(
		&tx.ID,
		&tx.ProcessName,
		&tx.ProcessAlias,
		&listing,
		&customer,
		&provider,
		&booking,
		&lineItems,
		&protected,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}

	if err := unmarshalColumn("listing", listing, &tx.Listing); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if err := unmarshalColumn("customer", customer, &tx.Customer); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if err := unmarshalColumn("provider", provider, &tx.Provider); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if err := unmarshalColumn("line items", lineItems, &tx.LineItems); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if err := unmarshalColumn("protected data", protected, &tx.ProtectedData); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if booking.Valid {
		tx.Booking = &ir.Booking{}
		if err := unmarshalColumn("booking", booking.String, tx.Booking); err != nil {
			return nil, fmt.Errorf("read transaction: %w", err)
		}
	}
	if len(tx.LineItems) == 0 {
		tx.LineItems = nil
	}
	if len(tx.ProtectedData) == 0 {
		tx.ProtectedData = nil
	}

	if tx.Transitions, err = s.readTransitions(ctx, id); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	if tx.Reviews, err = s.readReviews(ctx, id); err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	return &tx, nil
}

func (s *Store) readTransitions(ctx context.Context, txID string) ([]ir.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, actor, created_at
		FROM transitions
		WHERE transaction_id = ?
		ORDER BY seq ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []ir.Transition{}
	for rows.Next() {
		var (
			t    ir.Transition
			name string
			by   string
			at   int64
		)
		if err := rows.Scan(&name, &by, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Name = ir.TransitionID(name)
		t.By = ir.Actor(by)
		t.At = fromMillis(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) readReviews(ctx context.Context, txID string) ([]ir.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, rating, content, deleted, created_at
		FROM reviews
		WHERE transaction_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []ir.Review
	for rows.Next() {
		var (
			r  ir.Review
			at int64
		)
		if err := rows.Scan(&r.ID, &r.AuthorID, &r.Rating, &r.Content, &r.Deleted, &at); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.CreatedAt = fromMillis(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadMessages returns one page of messages, oldest first within the
// page. Page 1 holds the newest perPage messages, page 2 the ones before
// them, and so on. hasMore reports whether older pages exist.
func (s *Store) ReadMessages(ctx context.Context, txID string, page, perPage int) (msgs []ir.Message, hasMore bool, err error) {
	if page < 1 || perPage < 1 {
		return nil, false, fmt.Errorf("read messages: invalid page %d/%d", page, perPage)
	}

	// Fetch one extra row to learn whether an older page exists.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, content, created_at
		FROM messages
		WHERE transaction_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, txID, perPage+1, (page-1)*perPage)
	if err != nil {
		return nil, false, fmt.Errorf("read messages: %w", err)
	}
	defer rows.Close()

	msgs = []ir.Message{}
	for rows.Next() {
		var (
			m  ir.Message
			at int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Content, &at); err != nil {
			return nil, false, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromMillis(at)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("read messages: %w", err)
	}

	if len(msgs) > perPage {
		hasMore = true
		msgs = msgs[:perPage]
	}
	slices.Reverse(msgs)
	return msgs, hasMore, nil
}

// ListTransactionIDs returns every stored transaction id, sorted.
func (s *Store) ListTransactionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM transactions ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
