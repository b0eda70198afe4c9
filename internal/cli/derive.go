package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
)

// DeriveOptions holds flags for the derive command.
type DeriveOptions struct {
	*RootOptions
	Database      string
	TransactionID string
	Role          string
}

// DeriveResult is the page state of one transaction for one role.
type DeriveResult struct {
	TransactionID string           `json:"transaction_id"`
	Role          ir.Role          `json:"role"`
	State         engine.StateData `json:"state"`
	Error         string           `json:"error,omitempty"`
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeriveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the transaction page for a role",
		Long: `Derive the transaction page a party sees: the current state, the
primary and secondary action buttons and which page sections are shown.

A transaction whose process is not registered derives the unsupported
banner state; the command still succeeds.

Examples:
  txflow derive --db ./txflow.db --tx tx-1 --role provider
  txflow derive --db ./txflow.db --tx tx-1 --role customer --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDerive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "transaction id (required)")
	_ = cmd.MarkFlagRequired("tx")
	cmd.Flags().StringVar(&opts.Role, "role", "", "customer or provider (required)")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runDerive(opts *DeriveOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	role, err := parseRole(opts.Role)
	if err != nil {
		return failLoad(formatter, err)
	}

	env, err := opts.openLocal(opts.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	tx, err := env.backend.FetchTransaction(ctx, opts.TransactionID)
	if err != nil {
		return failRead(formatter, opts.TransactionID, err)
	}

	result := DeriveResult{TransactionID: tx.ID, Role: role}
	sd, err := engine.Derive(env.reg, tx, role, engine.LocalState{}, nil)
	if err != nil {
		opts.logger().Warn("derivation failed", "transaction_id", tx.ID, "error", err)
		sd = engine.Unsupported(tx)
		result.Error = err.Error()
	}
	result.State = sd

	return formatter.Render(result, func(w io.Writer) {
		writeStateText(w, result)
	})
}

func writeStateText(w io.Writer, r DeriveResult) {
	sd := r.State
	fmt.Fprintf(w, "Transaction %s (%s) as %s\n", r.TransactionID, sd.ProcessName, r.Role)
	if sd.Unsupported {
		fmt.Fprintf(w, "  process not recognized: %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "  state:     %s\n", sd.ProcessState)
	if sd.LastTransition != "" {
		fmt.Fprintf(w, "  last:      %s at %s\n", sd.LastTransition, sd.LastTransitionedAt.Format("2006-01-02 15:04:05Z07:00"))
	}
	fmt.Fprintf(w, "  primary:   %s\n", actionText(sd.PrimaryAction))
	fmt.Fprintf(w, "  secondary: %s\n", actionText(sd.SecondaryAction))
	if sd.ShowReviewPrompt != "" {
		fmt.Fprintf(w, "  review:    %s\n", sd.ShowReviewPrompt)
	}

	var flags []string
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"order_panel", sd.ShowOrderPanel},
		{"breakdown", sd.ShowBreakdown},
		{"dispute", sd.ShowDispute},
		{"headings", sd.ShowDetailHeadings},
		{"needs_attention", sd.NeedsAttention},
		{"refunded", sd.Refunded},
		{"completed", sd.Completed},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		flags = []string{"(none)"}
	}
	fmt.Fprintf(w, "  flags:     %s\n", strings.Join(flags, ", "))
}

func actionText(a *engine.ActionDescriptor) string {
	if a == nil {
		return "(none)"
	}
	s := string(a.Transition)
	if a.LabelKey != "" {
		s += " [" + a.LabelKey + "]"
	}
	if a.RequiresConfirmation {
		s += " (confirm)"
	}
	return s
}
