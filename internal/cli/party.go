package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/session"
)

// PartyOptions holds the flags shared by commands that act as one party
// through a session.
type PartyOptions struct {
	*RootOptions
	Database      string
	TransactionID string
	Role          string
}

func (o *PartyOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&o.TransactionID, "tx", "", "transaction id (required)")
	_ = cmd.MarkFlagRequired("tx")
	cmd.Flags().StringVar(&o.Role, "role", "", "customer or provider (required)")
	_ = cmd.MarkFlagRequired("role")
}

// PartyResult reports the page after a party action.
type PartyResult struct {
	TransactionID string     `json:"transaction_id"`
	Role          ir.Role    `json:"role"`
	State         ir.StateID `json:"state"`
	MessageID     string     `json:"message_id,omitempty"`
}

// withSession opens a session for the party and runs fn with it.
func (o *PartyOptions) withSession(cmd *cobra.Command, fn func(*session.Session) (PartyResult, error)) error {
	formatter := o.formatter(cmd)
	ctx := commandContext(cmd)

	role, err := parseRole(o.Role)
	if err != nil {
		return failLoad(formatter, err)
	}
	env, err := o.openLocal(o.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	sess, err := session.Open(ctx, env.backend, env.reg, o.TransactionID, role,
		session.WithLogger(o.logger()),
	)
	if err != nil {
		return failRead(formatter, o.TransactionID, err)
	}

	result, err := fn(sess)
	if err != nil {
		return partyError(formatter, o.TransactionID, err)
	}
	result.TransactionID = o.TransactionID
	result.Role = role
	result.State, _ = engine.CurrentState(env.reg, sess.Transaction())

	return formatter.Render(result, func(w io.Writer) {
		if result.MessageID != "" {
			fmt.Fprintf(w, "✓ Message %s sent\n", result.MessageID)
		} else {
			fmt.Fprintf(w, "✓ Done\n")
		}
		fmt.Fprintf(w, "  state: %s\n", result.State)
	})
}

// partyError maps session errors to exit codes. Anything the user could
// fix by changing the request exits 1.
func partyError(f *OutputFormatter, txID string, err error) error {
	if engine.IsTransitionRejected(err) || engine.IsUnknownProcess(err) {
		return performError(f, txID, err)
	}
	switch {
	case errors.Is(err, session.ErrAlreadySubmitted),
		session.IsReviewSubmit(err),
		session.IsMessageSend(err):
		_ = f.Error(ErrCodeRejected, err.Error(), nil)
		return WrapExitError(ExitFailure, "request refused", err)
	}
	return failRead(f, txID, err)
}

// NewReviewCommand creates the review command.
func NewReviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PartyOptions{RootOptions: rootOpts}
	var rating int
	var content string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Leave a review as one party",
		Long: `Leave a review of the other party.

The review transition is picked from the log: the first review
transition when the other party has not reviewed yet, the second
otherwise. Ratings run from 1 to 5.

Example:
  txflow review --db ./txflow.db --tx tx-1 --role customer --rating 5 --content "Great stay"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(s *session.Session) (PartyResult, error) {
				return PartyResult{}, s.SubmitReview(commandContext(cmd), session.ReviewInput{Rating: rating, Content: content})
			})
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5 (required)")
	_ = cmd.MarkFlagRequired("rating")
	cmd.Flags().StringVar(&content, "content", "", "review text (required)")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

// NewMessageCommand creates the message command.
func NewMessageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PartyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "message <content>",
		Short:         "Send a message as one party",
		Args:          cobra.ExactArgs(1),
		Example:       `  txflow message --db ./txflow.db --tx tx-1 --role provider "See you at nine"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(s *session.Session) (PartyResult, error) {
				id, err := s.SendMessage(commandContext(cmd), args[0])
				return PartyResult{MessageID: id}, err
			})
		},
	}

	opts.bind(cmd)
	return cmd
}

// NewDisputeCommand creates the dispute command.
func NewDisputeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PartyOptions{RootOptions: rootOpts}
	var reason string

	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "Open a dispute as one party",
		Long: `Open a dispute on a purchase.

Only the role the process allows may dispute, and only while the
transaction is in a state whose page shows the dispute link.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(s *session.Session) (PartyResult, error) {
				return PartyResult{}, s.SubmitDispute(commandContext(cmd), reason)
			})
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&reason, "reason", "", "dispute reason")
	return cmd
}
