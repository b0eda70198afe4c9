package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/engine"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// ImportResult reports what was stored.
type ImportResult struct {
	TransactionID string `json:"transaction_id"`
	ProcessName   string `json:"process_name"`
	Transitions   int    `json:"transitions"`
	Messages      int    `json:"messages"`
	Reviews       int    `json:"reviews"`
	Supported     bool   `json:"supported"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <fixture.yaml>",
		Short: "Import a transaction fixture into the database",
		Long: `Import a YAML transaction fixture into the database.

The fixture holds a "transaction" (the same shape scenarios use) and an
optional list of "messages". The database is created when missing.
Importing the same transaction id twice fails.

Example:
  txflow import --db ./txflow.db testdata/fixtures/booking.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)
	logger := opts.logger()

	fixture, err := LoadFixture(path)
	if err != nil {
		code, msg := loadErrorCode(err)
		return fail(formatter, code, msg, nil)
	}

	reg, err := opts.registry()
	if err != nil {
		return fail(formatter, ErrCodeRegistry, "loading processes", err)
	}

	st, err := openStore(opts.Database)
	if err != nil {
		code, msg := loadErrorCode(err)
		return fail(formatter, code, msg, nil)
	}
	defer st.Close()

	tx := &fixture.Transaction
	if err := st.SaveTransaction(ctx, tx); err != nil {
		return fail(formatter, ErrCodeDatabase, "saving transaction", err)
	}
	for _, m := range fixture.Messages {
		if err := st.AppendMessage(ctx, tx.ID, m); err != nil {
			return fail(formatter, ErrCodeDatabase, "saving message", err)
		}
	}
	logger.Info("transaction imported",
		"transaction_id", tx.ID, "transitions", len(tx.Transitions), "messages", len(fixture.Messages))

	_, resolveErr := engine.Resolve(reg, tx)
	if resolveErr != nil {
		logger.Warn("imported transaction uses an unknown process", "transaction_id", tx.ID, "process", tx.ProcessName)
	}

	result := ImportResult{
		TransactionID: tx.ID,
		ProcessName:   tx.ProcessName,
		Transitions:   len(tx.Transitions),
		Messages:      len(fixture.Messages),
		Reviews:       len(tx.Reviews),
		Supported:     resolveErr == nil,
	}
	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Imported %s (%s): %d transition(s), %d message(s), %d review(s)\n",
			result.TransactionID, result.ProcessName, result.Transitions, result.Messages, result.Reviews)
		if !result.Supported {
			fmt.Fprintf(w, "  warning: process %q is not registered\n", result.ProcessName)
		}
	})
}

// commandContext returns cmd's context, or Background when it has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
