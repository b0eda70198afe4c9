package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOther(t *testing.T) {
	assert.Equal(t, RoleProvider, RoleCustomer.Other())
	assert.Equal(t, RoleCustomer, RoleProvider.Other())
	assert.False(t, Role("operator").Valid())
}

func TestActorRole(t *testing.T) {
	r, ok := ActorProvider.Role()
	assert.True(t, ok)
	assert.Equal(t, RoleProvider, r)

	_, ok = ActorOperator.Role()
	assert.False(t, ok)
	assert.True(t, ActorSystem.Valid())
	assert.False(t, Actor("admin").Valid())
}

func TestShortNames(t *testing.T) {
	assert.Equal(t, "confirm-payment", TransitionID("transition/confirm-payment").Short())
	assert.Equal(t, "preauthorized", StateID("state/preauthorized").Short())
}

func TestTransactionHelpers(t *testing.T) {
	tx := &Transaction{
		Customer:    Party{ID: "c1"},
		Provider:    Party{ID: "p1"},
		Transitions: []Transition{{Name: "transition/inquire", By: ActorCustomer}},
	}

	assert.Equal(t, "c1", tx.PartyID(RoleCustomer))
	assert.Equal(t, "p1", tx.PartyID(RoleProvider))
	assert.True(t, tx.HasTransition("transition/inquire"))
	assert.False(t, tx.HasTransition("transition/accept"))
}
