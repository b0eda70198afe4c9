package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txflow/internal/orderintent"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	Process string
}

// ClassifyResult is the order intent of one listing.
type ClassifyResult struct {
	ListingID string             `json:"listing_id"`
	Process   string             `json:"process"`
	Intent    orderintent.Intent `json:"intent"`
	Problems  []string           `json:"problems,omitempty"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify <listing.json>",
		Short: "Classify which order form a listing supports",
		Long: `Classify the order form for a listing: booking by time, by dates or by
fixed duration, purchase, inquiry, or unknown. The listing JSON is
validated against the listing schema first.

The process comes from --process, falling back to the listing's
transactionProcessAlias. A form that is classified but may not be
offered (closed listing, no stock, invalid price variants) lists why.

Example:
  txflow classify --process default-booking listing.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Process, "process", "", "process name (defaults to the listing's process alias)")

	return cmd
}

func runClassify(opts *ClassifyOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(formatter, ErrCodeNotFound, "reading listing", err)
	}
	listing, err := orderintent.ParseListing(data)
	if err != nil {
		return fail(formatter, ErrCodeLoadFailed, "parsing listing", err)
	}

	reg, err := opts.registry()
	if err != nil {
		return fail(formatter, ErrCodeRegistry, "loading processes", err)
	}

	processName := opts.Process
	if processName == "" {
		processName = orderintent.ProcessNameFromAlias(listing.TransactionProcessAlias)
	}

	intent, err := orderintent.Classify(listing, processName, reg)
	result := ClassifyResult{ListingID: listing.ID, Process: processName, Intent: intent}
	var ipv *orderintent.InvalidPriceVariantsError
	if errors.As(err, &ipv) {
		result.Problems = ipv.Problems
	} else if err != nil {
		return fail(formatter, ErrCodeGeneric, "classifying listing", err)
	}

	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Listing %s under %s\n", result.ListingID, quoteOrUnset(result.Process))
		fmt.Fprintf(w, "  flow:      %s\n", intent.Flow)
		fmt.Fprintf(w, "  offerable: %t\n", intent.Offerable)
		if len(intent.Blocked) > 0 {
			reasons := make([]string, len(intent.Blocked))
			for i, b := range intent.Blocked {
				reasons[i] = string(b)
			}
			fmt.Fprintf(w, "  blocked:   %s\n", strings.Join(reasons, ", "))
		}
		for _, p := range result.Problems {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	})
}

func quoteOrUnset(s string) string {
	if s == "" {
		return "(no process)"
	}
	return s
}
