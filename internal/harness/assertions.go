package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/feed"
)

// AssertionError is returned when an expectation fails.
// It includes the derived page to help debug the failure.
type AssertionError struct {
	Field    string // Expectation field, e.g. "primary"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Feed     []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Feed) > 0 {
		fmt.Fprintf(&buf, "\nFeed:\n")
		for i, entry := range e.Feed {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, entry)
		}
	}
	return buf.String()
}

// FeedEntry renders a feed item as "<kind> <id>" followed by its markers,
// e.g. "transition transition/decline [refund]" or "message msg-1".
func FeedEntry(item feed.Item) string {
	var b strings.Builder
	b.WriteString(string(item.Kind))
	b.WriteByte(' ')
	switch item.Kind {
	case feed.KindMessage:
		b.WriteString(item.Message.ID)
	case feed.KindTransition:
		b.WriteString(string(item.Transition.Name))
	}
	if item.Refund {
		b.WriteString(" [refund]")
	}
	if item.Success {
		b.WriteString(" [success]")
	}
	if item.Review != nil {
		if item.Review.Removed {
			b.WriteString(" [review removed]")
		} else {
			fmt.Fprintf(&b, " [review %s]", item.Review.Review.ID)
		}
	}
	return b.String()
}

// FeedEntries renders every item with FeedEntry.
func FeedEntries(items []feed.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = FeedEntry(item)
	}
	return out
}

// EvaluateExpect checks every set field of exp against result.
// Returns a slice of error messages for failed expectations.
func EvaluateExpect(result *Result, exp Expect) []string {
	var errs []string
	entries := FeedEntries(result.Feed)
	fail := func(field, expected, actual string) {
		errs = append(errs, (&AssertionError{
			Field:    field,
			Expected: expected,
			Actual:   actual,
			Feed:     entries,
		}).Error())
	}

	if code := ErrorCode(result.Err); code != exp.Error {
		fail("error", quoteOrNone(exp.Error), quoteOrNone(code))
	}

	if result.State != nil {
		checkState(result.State, exp, fail)
	} else if hasStateExpectations(exp) {
		fail("state", "a derived page", "no transaction in scenario")
	}

	if exp.OrderFlow != "" || exp.Offerable != nil {
		if result.Intent == nil {
			fail("order_flow", string(exp.OrderFlow), "no listing in scenario")
		} else {
			if exp.OrderFlow != "" && result.Intent.Flow != exp.OrderFlow {
				fail("order_flow", string(exp.OrderFlow), string(result.Intent.Flow))
			}
			checkBool("offerable", exp.Offerable, result.Intent.Offerable, fail)
		}
	}

	if exp.Feed != nil && !slices.Equal(exp.Feed, entries) {
		fail("feed", strings.Join(exp.Feed, ", "), strings.Join(entries, ", "))
	}

	return errs
}

func checkState(sd *engine.StateData, exp Expect, fail func(field, expected, actual string)) {
	if exp.State != "" && sd.ProcessState != exp.State {
		fail("state", string(exp.State), quoteOrNone(string(sd.ProcessState)))
	}
	checkAction("primary", exp.Primary, sd.PrimaryAction, fail)
	checkAction("secondary", exp.Secondary, sd.SecondaryAction, fail)
	checkBool("order_panel", exp.OrderPanel, sd.ShowOrderPanel, fail)
	checkBool("breakdown", exp.Breakdown, sd.ShowBreakdown, fail)
	checkBool("dispute", exp.Dispute, sd.ShowDispute, fail)
	checkBool("headings", exp.Headings, sd.ShowDetailHeadings, fail)
	checkBool("needs_attention", exp.NeedsAttention, sd.NeedsAttention, fail)
	checkBool("refunded", exp.Refunded, sd.Refunded, fail)
	checkBool("completed", exp.Completed, sd.Completed, fail)
	checkBool("unsupported", exp.Unsupported, sd.Unsupported, fail)
	if exp.ReviewSlot != nil && string(sd.ShowReviewPrompt) != *exp.ReviewSlot {
		fail("review_slot", quoteOrNone(*exp.ReviewSlot), quoteOrNone(string(sd.ShowReviewPrompt)))
	}
}

func checkAction(field string, want *string, got *engine.ActionDescriptor, fail func(field, expected, actual string)) {
	if want == nil {
		return
	}
	actual := ""
	if got != nil {
		actual = string(got.Transition)
	}
	if actual != *want {
		fail(field, quoteOrNone(*want), quoteOrNone(actual))
	}
}

func checkBool(field string, want *bool, got bool, fail func(field, expected, actual string)) {
	if want != nil && *want != got {
		fail(field, fmt.Sprint(*want), fmt.Sprint(got))
	}
}

func hasStateExpectations(exp Expect) bool {
	return exp.State != "" || exp.Primary != nil || exp.Secondary != nil ||
		exp.OrderPanel != nil || exp.Breakdown != nil || exp.Dispute != nil ||
		exp.ReviewSlot != nil || exp.Headings != nil || exp.NeedsAttention != nil ||
		exp.Refunded != nil || exp.Completed != nil || exp.Unsupported != nil ||
		exp.Feed != nil
}

func quoteOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return fmt.Sprintf("%q", s)
}
