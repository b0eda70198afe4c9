package harness

import (
	"slices"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/orderintent"
	"github.com/roach88/txflow/internal/process"
)

// Snapshot captures the derived page of a scenario execution.
// It is serialized with canonical JSON for deterministic comparison.
type Snapshot struct {
	Scenario  string          `json:"scenario"`
	Role      ir.Role         `json:"role,omitempty"`
	State     ir.StateID      `json:"state,omitempty"`
	Primary   *ActionSnapshot `json:"primary,omitempty"`
	Secondary *ActionSnapshot `json:"secondary,omitempty"`
	Flags     []string        `json:"flags"`
	Feed      []string        `json:"feed"`
	Intent    *IntentSnapshot `json:"intent,omitempty"`
	Steps     []string        `json:"steps,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ActionSnapshot is the rendered part of an action button.
type ActionSnapshot struct {
	Transition ir.TransitionID `json:"transition"`
	Label      string          `json:"label"`
	Confirm    string          `json:"confirm,omitempty"`
	InProgress bool            `json:"in_progress,omitempty"`
	Disabled   bool            `json:"disabled,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// IntentSnapshot is the order intent of the scenario's listing.
type IntentSnapshot struct {
	Flow      orderintent.Flow `json:"flow"`
	Offerable bool             `json:"offerable"`
	Blocked   []string         `json:"blocked,omitempty"`
}

// NewSnapshot builds the snapshot of result for scenario.
//
// Flags lists the page affordances that are on, sorted; the open review
// slot appears as "review:<slot>". Steps lists each step's error code, "ok"
// for success.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	snap := Snapshot{
		Scenario: scenario.Name,
		Role:     scenario.Role,
		Flags:    []string{},
		Feed:     FeedEntries(result.Feed),
		Error:    ErrorCode(result.Err),
	}

	if sd := result.State; sd != nil {
		snap.State = sd.ProcessState
		snap.Primary = actionSnapshot(sd.PrimaryAction)
		snap.Secondary = actionSnapshot(sd.SecondaryAction)
		for flag, on := range map[string]bool{
			"order_panel":     sd.ShowOrderPanel,
			"breakdown":       sd.ShowBreakdown,
			"dispute":         sd.ShowDispute,
			"headings":        sd.ShowDetailHeadings,
			"needs_attention": sd.NeedsAttention,
			"refunded":        sd.Refunded,
			"completed":       sd.Completed,
			"unsupported":     sd.Unsupported,
		} {
			if on {
				snap.Flags = append(snap.Flags, flag)
			}
		}
		if sd.ShowReviewPrompt != "" {
			snap.Flags = append(snap.Flags, "review:"+string(sd.ShowReviewPrompt))
		}
		slices.Sort(snap.Flags)
	}

	if in := result.Intent; in != nil {
		snap.Intent = &IntentSnapshot{Flow: in.Flow, Offerable: in.Offerable}
		for _, b := range in.Blocked {
			snap.Intent.Blocked = append(snap.Intent.Blocked, string(b))
		}
	}

	for _, code := range result.Steps {
		if code == "" {
			code = "ok"
		}
		snap.Steps = append(snap.Steps, code)
	}
	return snap
}

func actionSnapshot(a *engine.ActionDescriptor) *ActionSnapshot {
	if a == nil {
		return nil
	}
	return &ActionSnapshot{
		Transition: a.Transition,
		Label:      a.LabelKey,
		Confirm:    a.ConfirmationCopyKey,
		InProgress: a.InProgress,
		Disabled:   a.Disabled,
		Error:      a.ErrorMessage(),
	}
}

// MarshalSnapshot serializes snap as canonical JSON.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	generic, err := ir.Canonicalize(snap)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(generic)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, reg *process.Registry, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(reg, scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares result's snapshot against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(NewSnapshot(scenario, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
