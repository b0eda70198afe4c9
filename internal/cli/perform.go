package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
)

// PerformOptions holds flags for the perform command.
type PerformOptions struct {
	*RootOptions
	Database      string
	TransactionID string
	Actor         string
	Transition    string
}

// PerformResult reports an applied transition.
type PerformResult struct {
	TransactionID string          `json:"transaction_id"`
	Transition    ir.TransitionID `json:"transition"`
	Actor         ir.Actor        `json:"actor"`
	State         ir.StateID      `json:"state"`
}

// NewPerformCommand creates the perform command.
func NewPerformCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PerformOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "perform",
		Short: "Apply a transition to a stored transaction",
		Long: `Apply a transition through the local backend.

The backend accepts the transition only when the process declares it, it
leaves the current state and the actor may perform it. A refused
transition exits with code 1 and names the reason.

Exit codes:
  0 - Transition applied
  1 - Transition rejected (stale_state, forbidden, unknown_transition)
  2 - Command error (database or transaction not found, bad flags)

Examples:
  txflow perform --db ./txflow.db --tx tx-1 --as provider --transition transition/accept
  txflow perform --db ./txflow.db --tx tx-1 --as system --transition transition/complete`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPerform(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "transaction id (required)")
	_ = cmd.MarkFlagRequired("tx")
	cmd.Flags().StringVar(&opts.Actor, "as", "", "customer, provider, operator or system (required)")
	_ = cmd.MarkFlagRequired("as")
	cmd.Flags().StringVar(&opts.Transition, "transition", "", "transition name, e.g. transition/accept (required)")
	_ = cmd.MarkFlagRequired("transition")

	return cmd
}

func runPerform(opts *PerformOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	actor, err := parseActor(opts.Actor)
	if err != nil {
		return failLoad(formatter, err)
	}

	env, err := opts.openLocal(opts.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	name := ir.TransitionID(opts.Transition)
	tx, err := env.backend.PerformTransition(ctx, opts.TransactionID, name, actor, nil)
	if err != nil {
		return performError(formatter, opts.TransactionID, err)
	}

	state, _ := engine.CurrentState(env.reg, tx)
	result := PerformResult{TransactionID: tx.ID, Transition: name, Actor: actor, State: state}
	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s performed %s on %s\n", actor, name, tx.ID)
		fmt.Fprintf(w, "  state: %s\n", state)
	})
}

// performError reports a failed mutation. Rejections and unknown
// processes exit 1; everything else is a command error.
func performError(f *OutputFormatter, txID string, err error) error {
	var rejected *engine.TransitionRejectedError
	switch {
	case errors.As(err, &rejected):
		_ = f.Failure(ErrCodeRejected, err.Error(), map[string]string{"reason": string(rejected.Reason)}, func(w io.Writer) {
			fmt.Fprintf(w, "✗ %s rejected: %s\n", rejected.Transition, rejected.Reason)
			if rejected.Message != "" {
				fmt.Fprintf(w, "  %s\n", rejected.Message)
			}
		})
		return WrapExitError(ExitFailure, "transition rejected", err)
	case engine.IsUnknownProcess(err):
		_ = f.Error(string(engine.ErrCodeUnknownProcess), err.Error(), nil)
		return WrapExitError(ExitFailure, "unknown process", err)
	}
	return failRead(f, txID, err)
}
