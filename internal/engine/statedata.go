package engine

import (
	"fmt"
	"time"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// StateData is everything a transaction page needs to render for one role.
type StateData struct {
	ProcessName        string             `json:"process_name"`
	ProcessState       ir.StateID         `json:"process_state"`
	PrimaryAction      *ActionDescriptor  `json:"primary_action,omitempty"`
	SecondaryAction    *ActionDescriptor  `json:"secondary_action,omitempty"`
	ShowOrderPanel     bool               `json:"show_order_panel"`
	ShowBreakdown      bool               `json:"show_breakdown"`
	ShowDispute        bool               `json:"show_dispute"`
	ShowReviewPrompt   process.ReviewSlot `json:"show_review_prompt,omitempty"`
	ShowDetailHeadings bool               `json:"show_detail_headings"`

	NeedsAttention     bool            `json:"needs_attention"`
	Refunded           bool            `json:"refunded"`
	Completed          bool            `json:"completed"`
	LastTransition     ir.TransitionID `json:"last_transition,omitempty"`
	LastTransitionedAt time.Time       `json:"last_transitioned_at,omitzero"`

	// Unsupported is set when the process could not be resolved; every
	// affordance is then off.
	Unsupported bool `json:"unsupported,omitempty"`
}

// Derive computes StateData for role.
//
// Returns *UnknownProcessError when tx's process is not registered; pass
// that error to Unsupported to build the banner state.
func Derive(reg *process.Registry, tx *ir.Transaction, role ir.Role, local LocalState, p Performer) (StateData, error) {
	if !role.Valid() {
		return StateData{}, fmt.Errorf("derive: invalid role %q", role)
	}
	def, err := Resolve(reg, tx)
	if err != nil {
		return StateData{}, err
	}
	return DeriveWith(def, tx, role, local, p), nil
}

// DeriveWith computes StateData against an already resolved definition.
func DeriveWith(def *process.Definition, tx *ir.Transaction, role ir.Role, local LocalState, p Performer) StateData {
	state := StateOf(def, tx)
	sd := StateData{
		ProcessName:    def.Name(),
		ProcessState:   state,
		NeedsAttention: def.NeedsAttention(state, role),
	}

	log := OrderedLog(def, tx)
	for _, t := range log {
		if def.IsRefundTransition(t.Name) {
			sd.Refunded = true
		}
		if def.IsTerminalSuccess(t.Name) {
			sd.Completed = true
		}
	}
	if len(log) > 0 {
		last := log[len(log)-1]
		sd.LastTransition = last.Name
		sd.LastTransitionedAt = last.At
	}

	row, ok := def.Row(state, role)
	if !ok {
		return sd
	}

	actions := ResolveActions(def, tx, role, local, p)
	sd.PrimaryAction = actions.Primary
	sd.SecondaryAction = actions.Secondary
	sd.ShowOrderPanel = row.OrderPanel
	sd.ShowBreakdown = row.Breakdown && len(tx.LineItems) > 0
	sd.ShowDetailHeadings = row.Headings

	rd := ResolveReviewDispute(def, tx, role)
	sd.ShowDispute = row.Dispute && rd.ShowDispute && !local.DisputeSubmitted
	if row.Review && !local.ReviewSubmitted {
		sd.ShowReviewPrompt = rd.ReviewSlot
	}

	return sd
}

// Unsupported builds the banner state for a transaction whose process is
// not recognized: no actions and no affordances.
func Unsupported(tx *ir.Transaction) StateData {
	sd := StateData{Unsupported: true}
	if tx != nil {
		sd.ProcessName = tx.ProcessName
	}
	return sd
}
