package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

func TestDeriveInquiryCustomer(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"), "inquire")

	sd, err := Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "default-booking", sd.ProcessName)
	assert.Equal(t, ir.StateID("state/inquiry"), sd.ProcessState)
	assert.Nil(t, sd.PrimaryAction)
	assert.Nil(t, sd.SecondaryAction)
	assert.True(t, sd.ShowOrderPanel)
	assert.True(t, sd.ShowDetailHeadings)
	assert.False(t, sd.ShowBreakdown)
	assert.Equal(t, ir.TransitionID("transition/inquire"), sd.LastTransition)
	assert.Equal(t, at(0), sd.LastTransitionedAt)
}

func TestDerivePreauthorizedProvider(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"), "request-payment", "confirm-payment")
	tx.LineItems = []ir.LineItem{{
		Code: "line-item/night", UnitPriceSubunits: 5000, Quantity: 2, LineTotalSubunits: 10000,
		IncludeFor: []ir.Role{ir.RoleCustomer, ir.RoleProvider},
	}}

	sd, err := Derive(reg, tx, ir.RoleProvider, LocalState{}, nil)
	require.NoError(t, err)

	assert.True(t, sd.NeedsAttention)
	assert.True(t, sd.ShowBreakdown)
	require.NotNil(t, sd.PrimaryAction)
	require.NotNil(t, sd.SecondaryAction)
	assert.Equal(t, ir.TransitionID("transition/accept"), sd.PrimaryAction.Transition)

	sd, err = Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.NoError(t, err)
	assert.False(t, sd.NeedsAttention)
}

func TestDeriveBreakdownNeedsLineItems(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"), "request-payment", "confirm-payment")

	sd, err := Derive(reg, tx, ir.RoleProvider, LocalState{}, nil)
	require.NoError(t, err)
	assert.False(t, sd.ShowBreakdown)
}

func TestDeriveDelivered(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-purchase"), "request-payment", "confirm-payment", "mark-delivered")

	customer, err := Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.StateID("state/delivered"), customer.ProcessState)
	assert.True(t, customer.ShowDispute)
	assert.True(t, customer.NeedsAttention)
	require.NotNil(t, customer.PrimaryAction)
	assert.Equal(t, ir.TransitionID("transition/mark-received"), customer.PrimaryAction.Transition)

	// Provider has a first review slot open but no prompt in this state.
	provider, err := Derive(reg, tx, ir.RoleProvider, LocalState{}, nil)
	require.NoError(t, err)
	assert.False(t, provider.ShowDispute)
	assert.Empty(t, provider.ShowReviewPrompt)
	assert.Nil(t, provider.PrimaryAction)

	submitted, err := Derive(reg, tx, ir.RoleCustomer, LocalState{DisputeSubmitted: true}, nil)
	require.NoError(t, err)
	assert.False(t, submitted.ShowDispute)
}

func TestDeriveReviewPrompt(t *testing.T) {
	reg := builtin(t)
	def := definition(t, reg, "default-booking")
	tx := txWith(t, def, "request-payment", "confirm-payment", "accept", "complete")

	sd, err := Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.NoError(t, err)
	assert.Equal(t, process.SlotFirst, sd.ShowReviewPrompt)
	assert.True(t, sd.Completed)
	assert.False(t, sd.Refunded)

	sd, err = Derive(reg, tx, ir.RoleCustomer, LocalState{ReviewSubmitted: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, sd.ShowReviewPrompt)

	reviewed := txWith(t, def, "request-payment", "confirm-payment", "accept", "complete", "review-1-by-customer")
	sd, err = Derive(reg, reviewed, ir.RoleProvider, LocalState{}, nil)
	require.NoError(t, err)
	assert.Equal(t, process.SlotSecond, sd.ShowReviewPrompt)
	require.NotNil(t, sd.PrimaryAction)
	assert.Equal(t, ir.TransitionID("transition/review-2-by-provider"), sd.PrimaryAction.Transition)
}

func TestDeriveRefunded(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"), "request-payment", "confirm-payment", "decline")

	sd, err := Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.NoError(t, err)
	assert.True(t, sd.Refunded)
	assert.False(t, sd.Completed)
	assert.Nil(t, sd.PrimaryAction)
}

func TestDeriveStaleInFlight(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"), "request-payment", "confirm-payment")

	sd, err := Derive(reg, tx, ir.RoleProvider, LocalState{TransitionInProgress: "transition/review-1-by-provider"}, nil)
	require.NoError(t, err)
	assert.False(t, sd.PrimaryAction.Disabled)
	assert.False(t, sd.SecondaryAction.Disabled)
}

func TestDeriveInvalidRole(t *testing.T) {
	reg := builtin(t)
	tx := txWith(t, definition(t, reg, "default-booking"))

	_, err := Derive(reg, tx, "operator", LocalState{}, nil)
	assert.Error(t, err)
}

func TestDeriveUnknownProcess(t *testing.T) {
	reg := builtin(t)
	tx := &ir.Transaction{ID: "tx-2", ProcessName: "legacy-rental"}

	_, err := Derive(reg, tx, ir.RoleCustomer, LocalState{}, nil)
	require.True(t, IsUnknownProcess(err))

	sd := Unsupported(tx)
	assert.True(t, sd.Unsupported)
	assert.Equal(t, "legacy-rental", sd.ProcessName)
	assert.Nil(t, sd.PrimaryAction)
	assert.False(t, sd.ShowOrderPanel)
}
