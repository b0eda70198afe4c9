package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
)

const minimalScenario = `
name: minimal
description: "Customer on a fresh inquiry"
role: customer
transaction:
  id: tx-1
  process_name: default-inquiry
  customer: { id: customer-1 }
  provider: { id: provider-1 }
  listing: { id: listing-1 }
  transitions:
    - { transition: transition/inquire-without-payment, by: customer, at: 2024-03-01T12:00:00Z }
expect:
  state: state/free-inquiry
  headings: true
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, ir.RoleCustomer, scenario.Role)
	require.NotNil(t, scenario.Transaction)
	assert.Equal(t, "default-inquiry", scenario.Transaction.ProcessName)
	require.Len(t, scenario.Transaction.Transitions, 1)
	assert.Equal(t, ir.ActorCustomer, scenario.Transaction.Transitions[0].By)
	assert.Equal(t, 12, scenario.Transaction.Transitions[0].At.Hour())
	assert.Equal(t, ir.StateID("state/free-inquiry"), scenario.Expect.State)
	require.NotNil(t, scenario.Expect.Headings)
	assert.True(t, *scenario.Expect.Headings)
	assert.Nil(t, scenario.Expect.Primary, "unset expectations stay nil")
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "expects:\n  state: state/free-inquiry\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_EmptyStringExpectation(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimalScenario + "  primary: \"\"\n"))
	require.NoError(t, err)
	require.NotNil(t, scenario.Expect.Primary)
	assert.Equal(t, "", *scenario.Expect.Primary)
}

func TestValidateScenario(t *testing.T) {
	tx := func() *ir.Transaction {
		return &ir.Transaction{ID: "tx-1", ProcessName: "default-booking"}
	}
	reason := "late"

	tests := []struct {
		name     string
		scenario Scenario
		wantErr  string
	}{
		{
			name:     "missing name",
			scenario: Scenario{Description: "d", Role: ir.RoleCustomer, Transaction: tx()},
			wantErr:  "name is required",
		},
		{
			name:     "missing description",
			scenario: Scenario{Name: "n", Role: ir.RoleCustomer, Transaction: tx()},
			wantErr:  "description is required",
		},
		{
			name:     "nothing to run",
			scenario: Scenario{Name: "n", Description: "d"},
			wantErr:  "transaction or listing is required",
		},
		{
			name:     "invalid role",
			scenario: Scenario{Name: "n", Description: "d", Role: "operator", Transaction: tx()},
			wantErr:  "role must be customer or provider",
		},
		{
			name: "unknown actor",
			scenario: Scenario{Name: "n", Description: "d", Role: ir.RoleCustomer, Transaction: &ir.Transaction{
				ID:          "tx-1",
				Transitions: []ir.Transition{{Name: "transition/inquire", By: "robot"}},
			}},
			wantErr: "unknown actor",
		},
		{
			name: "steps with local",
			scenario: Scenario{
				Name: "n", Description: "d", Role: ir.RoleCustomer, Transaction: tx(),
				Local: &engine.LocalState{},
				Steps: []Step{{Perform: "transition/accept"}},
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "step with two actions",
			scenario: Scenario{
				Name: "n", Description: "d", Role: ir.RoleCustomer, Transaction: tx(),
				Steps: []Step{{Perform: "transition/accept", Dispute: &reason}},
			},
			wantErr: "steps[0]: exactly one of",
		},
		{
			name: "bad invoke target",
			scenario: Scenario{
				Name: "n", Description: "d", Role: ir.RoleCustomer, Transaction: tx(),
				Steps: []Step{{Invoke: "tertiary"}},
			},
			wantErr: "invoke must be primary or secondary",
		},
		{
			name:     "order flow without listing",
			scenario: Scenario{Name: "n", Description: "d", Role: ir.RoleCustomer, Transaction: tx(), Expect: Expect{OrderFlow: "inquiry"}},
			wantErr:  "requires a listing",
		},
		{
			name:     "valid",
			scenario: Scenario{Name: "n", Description: "d", Role: ir.RoleProvider, Transaction: tx()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateScenario(&tt.scenario)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDiscoverScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	paths, err := DiscoverScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}
