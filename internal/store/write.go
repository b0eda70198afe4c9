package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/txflow/internal/ir"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveTransaction inserts a transaction with its log and reviews in one
// database transaction. Returns ErrTransactionExists if the id is taken.
//
// Messages are not part of the entity; use AppendMessage.
func (s *Store) SaveTransaction(ctx context.Context, tx *ir.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("save transaction: missing id")
	}

	listing, err := marshalColumn("listing", tx.Listing, "{}")
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	customer, err := marshalColumn("customer", tx.Customer, "{}")
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	provider, err := marshalColumn("provider", tx.Provider, "{}")
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	lineItems, err := marshalColumn("line items", tx.LineItems, "[]")
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	protected, err := marshalColumn("protected data", tx.ProtectedData, "{}")
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	var booking sql.NullString
	if tx.Booking != nil {
		b, err := marshalColumn("booking", tx.Booking, "")
		if err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		booking = sql.NullString{String: b, Valid: b != ""}
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save transaction: begin tx: %w", err)
	}
	defer dbtx.Rollback() // No-op if committed

	result, err := dbtx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, process_name, process_alias, listing, customer, provider, booking, line_items, protected_data, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		tx.ID,
		tx.ProcessName,
		tx.ProcessAlias,
		listing,
		customer,
		provider,
		booking,
		lineItems,
		protected,
		ir.EngineVersion,
		ir.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("save transaction %s: %w", tx.ID, ErrTransactionExists)
	}

	for _, t := range tx.Transitions {
		if _, err := appendTransition(ctx, dbtx, tx.ID, t); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
	}
	for _, r := range tx.Reviews {
		if err := insertReview(ctx, dbtx, tx.ID, r); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("save transaction: commit: %w", err)
	}
	return nil
}

// AppendTransition adds t to the end of a transaction's log and returns
// its seq. The first entry has seq 1.
func (s *Store) AppendTransition(ctx context.Context, txID string, t ir.Transition) (int64, error) {
	seq, err := appendTransition(ctx, s.db, txID, t)
	if err != nil {
		return 0, fmt.Errorf("append transition: %w", err)
	}
	return seq, nil
}

// AppendReviewTransition appends a review transition and writes its review
// atomically. Returns ErrReviewExists if the author already reviewed.
func (s *Store) AppendReviewTransition(ctx context.Context, txID string, t ir.Transition, r ir.Review) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append review transition: begin tx: %w", err)
	}
	defer dbtx.Rollback() // No-op if committed

	if _, err := appendTransition(ctx, dbtx, txID, t); err != nil {
		return fmt.Errorf("append review transition: %w", err)
	}
	if err := insertReview(ctx, dbtx, txID, r); err != nil {
		return fmt.Errorf("append review transition: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("append review transition: commit: %w", err)
	}
	return nil
}

// WriteReview stores a review. Returns ErrReviewExists if the author
// already reviewed this transaction.
func (s *Store) WriteReview(ctx context.Context, txID string, r ir.Review) error {
	if err := insertReview(ctx, s.db, txID, r); err != nil {
		return fmt.Errorf("write review: %w", err)
	}
	return nil
}

// MarkReviewDeleted flags a review as removed. The row is kept so feeds
// can show a placeholder.
func (s *Store) MarkReviewDeleted(ctx context.Context, reviewID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE reviews SET deleted = 1 WHERE id = ?`, reviewID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete review %s: %w", reviewID, ErrNotFound)
	}
	return nil
}

// AppendMessage stores a message.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - resending the same id is ignored.
func (s *Store) AppendMessage(ctx context.Context, txID string, m ir.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
		(id, transaction_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		txID,
		m.SenderID,
		m.Content,
		toMillis(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// appendTransition computes the next seq and inserts t. Callers that need
// read-validate-append atomicity serialize through Backend.
func appendTransition(ctx context.Context, db execer, txID string, t ir.Transition) (int64, error) {
	var seq int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM transitions WHERE transaction_id = ?`, txID,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO transitions
		(transaction_id, seq, name, actor, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		txID,
		seq,
		string(t.Name),
		string(t.By),
		toMillis(t.At),
	)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func insertReview(ctx context.Context, db execer, txID string, r ir.Review) error {
	result, err := db.ExecContext(ctx, `
		INSERT INTO reviews
		(id, transaction_id, author_id, rating, content, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id, author_id) DO NOTHING
	`,
		r.ID,
		txID,
		r.AuthorID,
		r.Rating,
		r.Content,
		r.Deleted,
		toMillis(r.CreatedAt),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("author %s: %w", r.AuthorID, ErrReviewExists)
	}
	return nil
}
