package engine

import (
	"slices"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// ReviewDispute is the review and dispute eligibility of one role.
type ReviewDispute struct {
	ShowDispute       bool               `json:"show_dispute"`
	DisputeTransition ir.TransitionID    `json:"dispute_transition,omitempty"`
	ReviewSlot        process.ReviewSlot `json:"review_slot,omitempty"`
	ReviewTransition  ir.TransitionID    `json:"review_transition,omitempty"`
}

// ResolveReviewDispute decides whether role may open a dispute now and
// which review slot, if any, is open for role.
//
// Review eligibility is read from the transition log only, never from the
// fetched review list, so a review that was submitted but has not been
// refetched still closes the slot:
//   - role already performed either of its review transitions: no slot
//   - the other party reached its "reviewed by" state: second slot
//   - otherwise: first slot
func ResolveReviewDispute(def *process.Definition, tx *ir.Transaction, role ir.Role) ReviewDispute {
	var rd ReviewDispute
	if def == nil || tx == nil {
		return rd
	}

	state := StateOf(def, tx)
	if def.Kind() != ir.KindInquiry {
		if name, ok := def.DisputeTransition(role); ok && def.Leaves(name, state) && def.CanPerform(name, ir.Actor(role)) {
			if tx.NextTransitions == nil || slices.Contains(tx.NextTransitions, name) {
				rd.ShowDispute = true
				rd.DisputeTransition = name
			}
		}
	}

	first, ok := def.ReviewTransition(role, process.SlotFirst)
	if !ok {
		return rd
	}
	second, _ := def.ReviewTransition(role, process.SlotSecond)
	if tx.HasTransition(first) || tx.HasTransition(second) {
		return rd
	}

	rd.ReviewSlot = process.SlotFirst
	rd.ReviewTransition = first
	if otherReviewed(def, tx, role.Other()) {
		rd.ReviewSlot = process.SlotSecond
		rd.ReviewTransition = second
	}
	return rd
}

// otherReviewed reports whether any transition into other's "reviewed by"
// state appears in the log.
func otherReviewed(def *process.Definition, tx *ir.Transaction, other ir.Role) bool {
	state, ok := def.ReviewedByState(other)
	if !ok {
		return false
	}
	for _, name := range def.TransitionsToState(state) {
		if tx.HasTransition(name) {
			return true
		}
	}
	return false
}
