package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database      string
	TransactionID string
}

// TraceEntry is one transition of the replayed log.
type TraceEntry struct {
	Seq        int             `json:"seq"`
	Transition ir.TransitionID `json:"transition"`
	By         ir.Actor        `json:"by"`
	At         time.Time       `json:"at"`
	From       ir.StateID      `json:"from"`
	To         ir.StateID      `json:"to"`
	Relevant   bool            `json:"relevant,omitempty"`
	Refund     bool            `json:"refund,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Privileged bool            `json:"privileged,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	TransactionID string       `json:"transaction_id"`
	ProcessName   string       `json:"process_name"`
	ProcessAlias  string       `json:"process_alias"`
	Timeline      []TraceEntry `json:"timeline"`
	Skipped       int          `json:"skipped"` // log entries the process does not declare
	State         ir.StateID   `json:"state"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show how a transaction reached its state",
		Long: `Replay a transaction's transition log the way derivation does and
show the state before and after each entry.

Entries are ordered by time, ties kept in log order. Entries the process
does not declare are skipped and counted. Markers show which transitions
appear in the activity feed, reversed or completed the transaction, or
require a trusted backend.

Examples:
  txflow trace --db ./txflow.db --tx tx-1
  txflow trace --db ./txflow.db --tx tx-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "transaction id (required)")
	_ = cmd.MarkFlagRequired("tx")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	env, err := opts.openLocal(opts.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	tx, err := env.store.ReadTransaction(ctx, opts.TransactionID)
	if err != nil {
		return failRead(formatter, opts.TransactionID, err)
	}

	def, err := engine.Resolve(env.reg, tx)
	if err != nil {
		_ = formatter.Error(string(engine.ErrCodeUnknownProcess), err.Error(), nil)
		return WrapExitError(ExitFailure, "unknown process", err)
	}

	log := engine.OrderedLog(def, tx)
	result := TraceResult{
		TransactionID: tx.ID,
		ProcessName:   def.Name(),
		ProcessAlias:  def.Alias(),
		Timeline:      make([]TraceEntry, 0, len(log)),
		Skipped:       len(tx.Transitions) - len(log),
		State:         def.InitialState(),
	}
	for i, t := range log {
		to, _ := def.StateAfter(t.Name)
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:        i + 1,
			Transition: t.Name,
			By:         t.By,
			At:         t.At,
			From:       result.State,
			To:         to,
			Relevant:   def.IsRelevantPastTransition(t.Name),
			Refund:     def.IsRefundTransition(t.Name),
			Success:    def.IsTerminalSuccess(t.Name),
			Privileged: def.IsPrivileged(t.Name),
		})
		result.State = to
	}

	return formatter.Render(result, func(w io.Writer) {
		outputTraceText(w, result)
	})
}

func outputTraceText(w io.Writer, r TraceResult) {
	fmt.Fprintf(w, "Trace for %s (%s)\n", r.TransactionID, r.ProcessAlias)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "  (no transitions)")
	}
	for _, e := range r.Timeline {
		var marks []string
		for _, m := range []struct {
			name string
			on   bool
		}{
			{"feed", e.Relevant},
			{"refund", e.Refund},
			{"success", e.Success},
			{"privileged", e.Privileged},
		} {
			if m.on {
				marks = append(marks, m.name)
			}
		}
		suffix := ""
		if len(marks) > 0 {
			suffix = " [" + strings.Join(marks, ", ") + "]"
		}
		fmt.Fprintf(w, "[%d] %s by %s at %s%s\n", e.Seq, e.Transition, e.By, e.At.Format(time.RFC3339), suffix)
		fmt.Fprintf(w, "    %s → %s\n", e.From, e.To)
	}
	fmt.Fprintln(w)
	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped undeclared entries: %d\n", r.Skipped)
	}
	fmt.Fprintf(w, "Current state: %s\n", r.State)
}
