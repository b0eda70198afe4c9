package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Database      string
	TransactionID string // optional - specific transaction only
}

// AuditResult holds the overall audit result.
type AuditResult struct {
	Checked  int                 `json:"checked"`
	Broken   []store.AuditReport `json:"broken"`
	AllClean bool                `json:"all_clean"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Strictly replay stored transition logs",
		Long: `Strictly replay stored transition logs from each process's initial state.

Derivation is lenient: it skips undeclared transitions and trusts the
latest entry. The audit reports every entry that could not have been
taken: undeclared names, entries that do not leave the state reached so
far, actors that may not perform them and timestamps that go backwards.
Transactions under an unregistered process are reported as unsupported.

Exit codes:
  0 - Every log replays cleanly
  1 - At least one log has issues
  2 - Command error (database not found, etc.)

Examples:
  txflow audit --db ./txflow.db
  txflow audit --db ./txflow.db --tx tx-1
  txflow audit --db ./txflow.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "audit only this transaction")

	return cmd
}

func runAudit(opts *AuditOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	env, err := opts.openLocal(opts.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	result := AuditResult{Broken: []store.AuditReport{}}
	if opts.TransactionID != "" {
		report, err := env.store.AuditTransaction(ctx, env.reg, opts.TransactionID)
		if err != nil {
			return failRead(formatter, opts.TransactionID, err)
		}
		result.Checked = 1
		if !report.OK() {
			result.Broken = append(result.Broken, report)
		}
	} else {
		ids, err := env.store.ListTransactionIDs(ctx)
		if err != nil {
			return fail(formatter, ErrCodeDatabase, "listing transactions", err)
		}
		result.Checked = len(ids)
		if result.Broken, err = env.store.AuditAll(ctx, env.reg); err != nil {
			return fail(formatter, ErrCodeDatabase, "auditing transactions", err)
		}
	}
	result.AllClean = len(result.Broken) == 0

	text := func(w io.Writer) { outputAuditText(w, result) }
	if result.AllClean {
		return formatter.Render(result, text)
	}
	msg := fmt.Sprintf("%d of %d transaction(s) failed the audit", len(result.Broken), result.Checked)
	_ = formatter.Failure(ErrCodeAuditFailed, msg, result, text)
	return NewExitError(ExitFailure, msg)
}

func outputAuditText(w io.Writer, r AuditResult) {
	for _, report := range r.Broken {
		fmt.Fprintf(w, "✗ %s (%s)\n", report.TransactionID, report.ProcessName)
		if report.Unsupported {
			fmt.Fprintln(w, "  process not registered")
			continue
		}
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  [%d] %s: %s\n", issue.Seq, issue.Transition, issue.Message)
		}
	}
	if r.AllClean {
		fmt.Fprintf(w, "✓ %d transaction(s) replay cleanly\n", r.Checked)
		return
	}
	fmt.Fprintf(w, "\n%d of %d transaction(s) failed the audit\n", len(r.Broken), r.Checked)
}
