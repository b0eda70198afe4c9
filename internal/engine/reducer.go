package engine

import (
	"slices"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

// Resolve finds the definition governing tx.
// Returns *UnknownProcessError when neither name nor alias is registered.
func Resolve(reg *process.Registry, tx *ir.Transaction) (*process.Definition, error) {
	if reg != nil && tx != nil {
		if def, ok := reg.For(tx); ok {
			return def, nil
		}
	}
	upe := &UnknownProcessError{}
	if tx != nil {
		upe.ProcessName = tx.ProcessName
		upe.ProcessAlias = tx.ProcessAlias
	}
	return nil, upe
}

// CurrentState resolves tx's process and replays its log.
func CurrentState(reg *process.Registry, tx *ir.Transaction) (ir.StateID, error) {
	def, err := Resolve(reg, tx)
	if err != nil {
		return "", err
	}
	return StateOf(def, tx), nil
}

// StateOf returns the state after the latest transition def knows about,
// or the initial state when there is none.
func StateOf(def *process.Definition, tx *ir.Transaction) ir.StateID {
	last, ok := LastTransition(def, tx)
	if !ok {
		return def.InitialState()
	}
	state, _ := def.StateAfter(last.Name)
	return state
}

// LastTransition returns the latest log entry that def declares.
func LastTransition(def *process.Definition, tx *ir.Transaction) (ir.Transition, bool) {
	log := OrderedLog(def, tx)
	if len(log) == 0 {
		return ir.Transition{}, false
	}
	return log[len(log)-1], true
}

// OrderedLog returns the entries of tx's log that def declares, sorted by
// At with ties kept in log order. Unknown names are skipped rather than
// failing the whole derivation.
func OrderedLog(def *process.Definition, tx *ir.Transaction) []ir.Transition {
	if tx == nil {
		return nil
	}
	log := make([]ir.Transition, 0, len(tx.Transitions))
	for _, t := range tx.Transitions {
		if def.HasTransition(t.Name) {
			log = append(log, t)
		}
	}
	slices.SortStableFunc(log, func(a, b ir.Transition) int {
		return a.At.Compare(b.At)
	})
	return log
}
