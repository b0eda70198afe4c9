package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/feed"
	"github.com/roach88/txflow/internal/harness"
	"github.com/roach88/txflow/internal/ir"
)

// FeedOptions holds flags for the feed command.
type FeedOptions struct {
	*RootOptions
	Database      string
	TransactionID string
	Latest        int
	Hide          bool
}

// FeedResult is the activity feed of one transaction.
type FeedResult struct {
	TransactionID   string      `json:"transaction_id"`
	Items           []feed.Item `json:"items"`
	HasMoreMessages bool        `json:"has_more_messages"`
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show a transaction's activity feed",
		Long: `Show the activity feed: messages and relevant transitions merged in
time order, with refund and success markers and attached reviews.

With --latest N only the newest N messages are loaded, as a paged client
would. Leading transitions before the oldest loaded message are then
hidden, since older messages may belong before them.

Examples:
  txflow feed --db ./txflow.db --tx tx-1
  txflow feed --db ./txflow.db --tx tx-1 --latest 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDB(), "path to SQLite database (default $TXFLOW_DB)")
	cmd.Flags().StringVar(&opts.TransactionID, "tx", "", "transaction id (required)")
	_ = cmd.MarkFlagRequired("tx")
	cmd.Flags().IntVar(&opts.Latest, "latest", 0, "load only the newest N messages (0 loads all)")
	cmd.Flags().BoolVar(&opts.Hide, "hide-before-oldest-message", false, "drop transitions before the oldest loaded message")

	return cmd
}

// allMessagesPage is the page size used when loading a full history.
const allMessagesPage = 100

func runFeed(opts *FeedOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	if opts.Latest < 0 {
		return fail(formatter, ErrCodeInvalidArgs, "--latest must not be negative", nil)
	}

	env, err := opts.openLocal(opts.Database)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer env.Close()

	tx, err := env.store.ReadTransaction(ctx, opts.TransactionID)
	if err != nil {
		return failRead(formatter, opts.TransactionID, err)
	}

	var (
		messages []ir.Message
		hasMore  bool
	)
	if opts.Latest > 0 {
		messages, hasMore, err = env.store.ReadMessages(ctx, tx.ID, 1, opts.Latest)
	} else {
		messages, err = readAllMessages(ctx, env, tx.ID)
	}
	if err != nil {
		return fail(formatter, ErrCodeDatabase, "reading messages", err)
	}

	items := feed.ComposeFor(env.reg, tx, messages, feed.Options{
		HideBeforeOldestMessage: opts.Hide || hasMore,
	})
	result := FeedResult{TransactionID: tx.ID, Items: items, HasMoreMessages: hasMore}

	return formatter.Render(result, func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintf(w, "No activity for %s\n", tx.ID)
			return
		}
		if hasMore {
			fmt.Fprintln(w, "(older messages not loaded)")
		}
		for _, item := range items {
			fmt.Fprintf(w, "%s  %s\n", item.At.Format("2006-01-02 15:04:05Z07:00"), harness.FeedEntry(item))
		}
	})
}

// readAllMessages pages through the whole message history, oldest first.
func readAllMessages(ctx context.Context, env *localEnv, txID string) ([]ir.Message, error) {
	var pages [][]ir.Message
	for page := 1; ; page++ {
		msgs, more, err := env.store.ReadMessages(ctx, txID, page, allMessagesPage)
		if err != nil {
			return nil, err
		}
		pages = append(pages, msgs)
		if !more {
			break
		}
	}
	all := []ir.Message{}
	for i := len(pages) - 1; i >= 0; i-- {
		all = append(all, pages[i]...)
	}
	return all, nil
}
