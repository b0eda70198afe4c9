package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func builtin(t *testing.T) *process.Registry {
	t.Helper()
	reg, err := process.Builtin()
	require.NoError(t, err)
	return reg
}

func definition(t *testing.T, reg *process.Registry, name string) *process.Definition {
	t.Helper()
	def, ok := reg.Lookup(name)
	require.True(t, ok)
	return def
}

// txWith builds a transaction whose log is names performed one minute apart
// by the first actor allowed to perform each.
func txWith(t *testing.T, def *process.Definition, names ...string) *ir.Transaction {
	t.Helper()
	tx := &ir.Transaction{
		ID:           "tx-1",
		ProcessName:  def.Name(),
		ProcessAlias: def.Alias(),
		Customer:     ir.Party{ID: "customer-1"},
		Provider:     ir.Party{ID: "provider-1"},
		Listing:      ir.ListingRef{ID: "listing-1"},
	}
	for i, name := range names {
		id := ir.TransitionID("transition/" + name)
		require.True(t, def.HasTransition(id), "unknown transition %s", id)
		tx.Transitions = append(tx.Transitions, ir.Transition{Name: id, By: firstActor(def, id), At: at(i)})
	}
	return tx
}

func firstActor(def *process.Definition, name ir.TransitionID) ir.Actor {
	for _, a := range []ir.Actor{ir.ActorCustomer, ir.ActorProvider, ir.ActorOperator, ir.ActorSystem} {
		if def.CanPerform(name, a) {
			return a
		}
	}
	return ir.ActorSystem
}

type recordingPerformer struct {
	performed     []ir.TransitionID
	confirmations []ir.TransitionID
	params        map[string]any
	err           error
}

func (p *recordingPerformer) PerformTransition(_ context.Context, _ string, name ir.TransitionID, params map[string]any) error {
	p.performed = append(p.performed, name)
	p.params = params
	return p.err
}

func (p *recordingPerformer) RequestConfirmation(name ir.TransitionID) {
	p.confirmations = append(p.confirmations, name)
}
