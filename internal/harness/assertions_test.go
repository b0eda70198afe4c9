package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/feed"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/orderintent"
)

func ptr[T any](v T) *T { return &v }

func TestFeedEntry(t *testing.T) {
	tests := []struct {
		name string
		item feed.Item
		want string
	}{
		{
			name: "message",
			item: feed.Item{Kind: feed.KindMessage, Message: &ir.Message{ID: "msg-1"}},
			want: "message msg-1",
		},
		{
			name: "refund",
			item: feed.Item{Kind: feed.KindTransition, Transition: &ir.Transition{Name: "transition/decline"}, Refund: true},
			want: "transition transition/decline [refund]",
		},
		{
			name: "success",
			item: feed.Item{Kind: feed.KindTransition, Transition: &ir.Transition{Name: "transition/complete"}, Success: true},
			want: "transition transition/complete [success]",
		},
		{
			name: "review",
			item: feed.Item{
				Kind:       feed.KindTransition,
				Transition: &ir.Transition{Name: "transition/review-1-by-customer"},
				Review:     &feed.ReviewAttachment{Review: &ir.Review{ID: "review-1"}},
			},
			want: "transition transition/review-1-by-customer [review review-1]",
		},
		{
			name: "removed review",
			item: feed.Item{
				Kind:       feed.KindTransition,
				Transition: &ir.Transition{Name: "transition/review-2-by-provider"},
				Review:     &feed.ReviewAttachment{Removed: true},
			},
			want: "transition transition/review-2-by-provider [review removed]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeedEntry(tt.item))
		})
	}
}

func TestFeedEntries_Empty(t *testing.T) {
	assert.Equal(t, []string{}, FeedEntries(nil))
}

func TestEvaluateExpect_AllPass(t *testing.T) {
	result := NewResult()
	result.State = &engine.StateData{
		ProcessState:    "state/preauthorized",
		PrimaryAction:   &engine.ActionDescriptor{Transition: "transition/accept"},
		ShowBreakdown:   true,
		NeedsAttention:  true,
		SecondaryAction: nil,
	}

	errs := EvaluateExpect(result, Expect{
		State:          "state/preauthorized",
		Primary:        ptr("transition/accept"),
		Secondary:      ptr(""),
		Breakdown:      ptr(true),
		NeedsAttention: ptr(true),
		Refunded:       ptr(false),
		Feed:           []string{},
	})
	assert.Empty(t, errs)
}

func TestEvaluateExpect_Mismatches(t *testing.T) {
	result := NewResult()
	result.State = &engine.StateData{
		ProcessState:     "state/delivered",
		ShowReviewPrompt: "first",
	}
	result.Feed = []feed.Item{
		{Kind: feed.KindTransition, Transition: &ir.Transition{Name: "transition/complete"}, Success: true},
	}

	errs := EvaluateExpect(result, Expect{
		State:      "state/reviewed",
		ReviewSlot: ptr("second"),
		Completed:  ptr(true),
		Feed:       []string{"transition transition/complete"},
	})
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "Expectation failed: state")
	assert.Contains(t, errs[1], "Expectation failed: completed")
	assert.Contains(t, errs[2], "Expectation failed: review_slot")
	assert.Contains(t, errs[2], `Actual: "first"`)
	assert.Contains(t, errs[3], "Expectation failed: feed")
	assert.Contains(t, errs[3], "[1] transition transition/complete [success]")
}

func TestEvaluateExpect_ErrorCode(t *testing.T) {
	result := NewResult()
	result.Err = &engine.UnknownProcessError{ProcessName: "custom"}

	assert.Empty(t, EvaluateExpect(result, Expect{Error: "unknown_process"}))

	errs := EvaluateExpect(result, Expect{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Expected: (none)")

	result.Err = nil
	errs = EvaluateExpect(result, Expect{Error: "invalid_price_variants"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `Expected: "invalid_price_variants"`)
}

func TestEvaluateExpect_MissingState(t *testing.T) {
	errs := EvaluateExpect(NewResult(), Expect{Headings: ptr(true)})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no transaction in scenario")
}

func TestEvaluateExpect_OrderIntent(t *testing.T) {
	result := NewResult()

	errs := EvaluateExpect(result, Expect{OrderFlow: orderintent.FlowBookingTime})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no listing in scenario")

	result.Intent = &orderintent.Intent{Flow: orderintent.FlowPurchaseItem, Offerable: true}
	assert.Empty(t, EvaluateExpect(result, Expect{OrderFlow: orderintent.FlowPurchaseItem, Offerable: ptr(true)}))

	errs = EvaluateExpect(result, Expect{OrderFlow: orderintent.FlowBookingDates, Offerable: ptr(false)})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Expectation failed: order_flow")
	assert.Contains(t, errs[1], "Expectation failed: offerable")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Field:    "primary",
		Expected: `"transition/accept"`,
		Actual:   "(none)",
		Feed:     []string{"transition transition/confirm-payment", "message msg-1"},
	}

	want := "Expectation failed: primary\n" +
		"  Expected: \"transition/accept\"\n" +
		"  Actual: (none)\n" +
		"\nFeed:\n" +
		"  [1] transition transition/confirm-payment\n" +
		"  [2] message msg-1\n"
	assert.Equal(t, want, err.Error())

	var target *AssertionError
	assert.True(t, errors.As(error(err), &target))
}
