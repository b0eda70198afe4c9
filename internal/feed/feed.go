// Package feed merges a transaction's messages and relevant transitions
// into one chronological activity feed.
package feed

import (
	"slices"
	"time"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// Kind distinguishes feed entries.
type Kind string

const (
	KindMessage    Kind = "message"
	KindTransition Kind = "transition"
)

// Item is one feed entry. Exactly one of Message or Transition is set.
type Item struct {
	Kind       Kind           `json:"kind"`
	At         time.Time      `json:"at"`
	Message    *ir.Message    `json:"message,omitempty"`
	Transition *ir.Transition `json:"transition,omitempty"`

	// Refund and Success mark transitions that reversed or completed the
	// transaction.
	Refund  bool `json:"refund,omitempty"`
	Success bool `json:"success,omitempty"`

	Review *ReviewAttachment `json:"review,omitempty"`
}

// ReviewAttachment is the review left with a review transition. A deleted
// review is kept as a Removed placeholder so the feed does not jump.
type ReviewAttachment struct {
	Review  *ir.Review `json:"review,omitempty"`
	Removed bool       `json:"removed,omitempty"`
}

// Options controls composition.
type Options struct {
	// HideBeforeOldestMessage drops leading transitions until the first
	// message. Set it while older messages are still unfetched.
	HideBeforeOldestMessage bool `json:"hide_before_oldest_message" yaml:"hide_before_oldest_message"`
}

// Compose builds the feed for tx. A nil definition yields an empty feed.
//
// Items are ordered by time. At equal timestamps messages come before
// transitions and each keeps its input order.
func Compose(def *process.Definition, tx *ir.Transaction, messages []ir.Message, opts Options) []Item {
	items := []Item{}
	if def == nil || tx == nil {
		return items
	}

	for i := range messages {
		m := messages[i]
		items = append(items, Item{Kind: KindMessage, At: m.CreatedAt, Message: &m})
	}
	for _, t := range engine.OrderedLog(def, tx) {
		if !def.IsRelevantPastTransition(t.Name) {
			continue
		}
		item := Item{
			Kind:       KindTransition,
			At:         t.At,
			Transition: &t,
			Refund:     def.IsRefundTransition(t.Name),
			Success:    def.IsTerminalSuccess(t.Name),
		}
		if role, _, ok := def.ReviewRole(t.Name); ok {
			item.Review = attachReview(tx, tx.PartyID(role))
		}
		items = append(items, item)
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		return a.At.Compare(b.At)
	})

	if opts.HideBeforeOldestMessage {
		first := slices.IndexFunc(items, func(it Item) bool { return it.Kind == KindMessage })
		if first < 0 {
			return []Item{}
		}
		items = items[first:]
	}
	return items
}

// ComposeFor resolves tx's process in reg and composes its feed. An
// unknown process yields an empty feed; the page shows its banner instead.
func ComposeFor(reg *process.Registry, tx *ir.Transaction, messages []ir.Message, opts Options) []Item {
	def, err := engine.Resolve(reg, tx)
	if err != nil {
		return []Item{}
	}
	return Compose(def, tx, messages, opts)
}

func attachReview(tx *ir.Transaction, authorID string) *ReviewAttachment {
	if authorID == "" {
		return nil
	}
	removed := false
	for i := range tx.Reviews {
		r := tx.Reviews[i]
		if r.AuthorID != authorID {
			continue
		}
		if !r.Deleted {
			return &ReviewAttachment{Review: &r}
		}
		removed = true
	}
	if removed {
		return &ReviewAttachment{Removed: true}
	}
	return nil
}
