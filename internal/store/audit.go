package store

import (
	"context"
	"fmt"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// AuditIssue is one problem found while strictly replaying a stored log.
type AuditIssue struct {
	Seq        int             `json:"seq"` // 1-based position in the log
	Transition ir.TransitionID `json:"transition"`
	Message    string          `json:"message"`
}

// AuditReport is the strict replay of one stored transaction.
//
// Derivation skips unknown names and trusts the latest entry; an audit
// instead walks the log from the initial state and reports every entry
// that could not have been taken.
type AuditReport struct {
	TransactionID string       `json:"transaction_id"`
	ProcessName   string       `json:"process_name"`
	State         ir.StateID   `json:"state,omitempty"`
	Transitions   int          `json:"transitions"`
	Issues        []AuditIssue `json:"issues,omitempty"`
	Unsupported   bool         `json:"unsupported,omitempty"`
}

// OK reports whether the log replayed cleanly.
func (r AuditReport) OK() bool { return !r.Unsupported && len(r.Issues) == 0 }

// AuditTransaction strictly replays one transaction against reg.
func (s *Store) AuditTransaction(ctx context.Context, reg *process.Registry, id string) (AuditReport, error) {
	tx, err := s.ReadTransaction(ctx, id)
	if err != nil {
		return AuditReport{TransactionID: id}, fmt.Errorf("audit: %w", err)
	}
	return Audit(reg, tx), nil
}

// Audit strictly replays tx against reg.
func Audit(reg *process.Registry, tx *ir.Transaction) AuditReport {
	report := AuditReport{
		TransactionID: tx.ID,
		ProcessName:   tx.ProcessName,
		Transitions:   len(tx.Transitions),
	}

	def, err := engine.Resolve(reg, tx)
	if err != nil {
		report.Unsupported = true
		return report
	}

	state := def.InitialState()
	var last ir.Transition
	for i, t := range tx.Transitions {
		issue := func(format string, args ...any) {
			report.Issues = append(report.Issues, AuditIssue{
				Seq:        i + 1,
				Transition: t.Name,
				Message:    fmt.Sprintf(format, args...),
			})
		}

		if !def.HasTransition(t.Name) {
			issue("transition is not declared by %s", def.Name())
			continue
		}
		if i > 0 && t.At.Before(last.At) {
			issue("timestamp %s is before the previous entry", t.At.Format("2006-01-02T15:04:05.000Z07:00"))
		}
		if !def.Leaves(t.Name, state) {
			issue("cannot be taken from %s", state)
		}
		if !def.CanPerform(t.Name, t.By) {
			issue("actor %q may not perform it", t.By)
		}
		state, _ = def.StateAfter(t.Name)
		last = t
	}
	report.State = state
	return report
}

// AuditAll audits every stored transaction and returns the reports with
// problems, ordered by transaction id.
func (s *Store) AuditAll(ctx context.Context, reg *process.Registry) ([]AuditReport, error) {
	ids, err := s.ListTransactionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	broken := []AuditReport{}
	for _, id := range ids {
		report, err := s.AuditTransaction(ctx, reg, id)
		if err != nil {
			return nil, err
		}
		if !report.OK() {
			broken = append(broken, report)
		}
	}
	return broken, nil
}
