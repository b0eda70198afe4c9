package harness

import (
	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/feed"
	"github.com/roach88/txflow/internal/orderintent"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and step expectation matched.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the derived page. Nil when the scenario has no transaction.
	State *engine.StateData `json:"state,omitempty"`

	// Feed is the composed activity feed.
	Feed []feed.Item `json:"feed,omitempty"`

	// Intent is the order intent of the scenario's listing, if any.
	Intent *orderintent.Intent `json:"intent,omitempty"`

	// Err is the derivation or classification error, if any.
	Err error `json:"-"`

	// Steps records the error code of each step, "" for success.
	Steps []string `json:"steps,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
