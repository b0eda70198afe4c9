package ir

import (
	"strings"
	"time"
)

// Role is the viewer role on a transaction page.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// Roles lists the viewer roles in a stable order.
var Roles = []Role{RoleCustomer, RoleProvider}

// Valid reports whether r is a known viewer role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// Other returns the counterpart role.
func (r Role) Other() Role {
	if r == RoleCustomer {
		return RoleProvider
	}
	return RoleCustomer
}

// Actor is whoever performed a transition. Operators and the system
// perform transitions on behalf of nobody in particular.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorProvider Actor = "provider"
	ActorOperator Actor = "operator"
	ActorSystem   Actor = "system"
)

// Valid reports whether a is a known actor.
func (a Actor) Valid() bool {
	switch a {
	case ActorCustomer, ActorProvider, ActorOperator, ActorSystem:
		return true
	}
	return false
}

// Role maps party actors to their role. Operator and system return false.
func (a Actor) Role() (Role, bool) {
	switch a {
	case ActorCustomer:
		return RoleCustomer, true
	case ActorProvider:
		return RoleProvider, true
	}
	return "", false
}

// TransitionID names a transition, namespaced per process
// (e.g. "transition/confirm-payment").
type TransitionID string

// TransitionPrefix is the namespace every transition id starts with.
const TransitionPrefix = "transition/"

// Short strips the "transition/" namespace.
func (id TransitionID) Short() string {
	return strings.TrimPrefix(string(id), TransitionPrefix)
}

// StateID names a process state (e.g. "state/preauthorized").
type StateID string

// StatePrefix is the namespace every state id starts with.
const StatePrefix = "state/"

// Short strips the "state/" namespace.
func (id StateID) Short() string {
	return strings.TrimPrefix(string(id), StatePrefix)
}

// Transition is one immutable entry in a transaction's log.
type Transition struct {
	Name TransitionID `json:"transition" yaml:"transition"`
	By   Actor        `json:"by" yaml:"by"`
	At   time.Time    `json:"at" yaml:"at"`
}

// Party is one side of a transaction.
type Party struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// ListingRef is the part of a listing the transaction page reads.
type ListingRef struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Closed bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
}

// Booking is the reserved time range of a booking transaction.
type Booking struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// LineItem is one priced row of the order breakdown. Amounts are subunits.
type LineItem struct {
	Code              string `json:"code" yaml:"code"`
	UnitPriceSubunits int64  `json:"unit_price_subunits" yaml:"unit_price_subunits"`
	Quantity          int64  `json:"quantity" yaml:"quantity"`
	LineTotalSubunits int64  `json:"line_total_subunits" yaml:"line_total_subunits"`
	IncludeFor        []Role `json:"include_for" yaml:"include_for"`
	Reversal          bool   `json:"reversal,omitempty" yaml:"reversal,omitempty"`
}

// Review is a rating left by one party about the other.
// At most one review exists per (transaction, author).
type Review struct {
	ID        string    `json:"id" yaml:"id"`
	AuthorID  string    `json:"author_id" yaml:"author_id"`
	Rating    int       `json:"rating" yaml:"rating"`
	Content   string    `json:"content" yaml:"content"`
	Deleted   bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Message is a free-text message between the parties.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	SenderID  string    `json:"sender_id" yaml:"sender_id"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Transaction is the client-side read-only projection of a transaction.
// It is replaced wholesale after every successful mutation.
type Transaction struct {
	ID           string       `json:"id" yaml:"id"`
	ProcessName  string       `json:"process_name" yaml:"process_name"`
	ProcessAlias string       `json:"process_alias,omitempty" yaml:"process_alias,omitempty"`
	Transitions  []Transition `json:"transitions" yaml:"transitions"`
	Listing      ListingRef   `json:"listing" yaml:"listing"`
	Customer     Party        `json:"customer" yaml:"customer"`
	Provider     Party        `json:"provider" yaml:"provider"`
	Booking      *Booking     `json:"booking,omitempty" yaml:"booking,omitempty"`
	LineItems    []LineItem   `json:"line_items,omitempty" yaml:"line_items,omitempty"`
	Reviews      []Review     `json:"reviews,omitempty" yaml:"reviews,omitempty"`

	// ProtectedData is opaque to the engine and carried through untouched.
	ProtectedData map[string]any `json:"protected_data,omitempty" yaml:"protected_data,omitempty"`

	// NextTransitions is the server-supplied list of transitions currently
	// available. When non-nil, action descriptors outside it are dropped.
	NextTransitions []TransitionID `json:"next_transitions,omitempty" yaml:"next_transitions,omitempty"`
}

// PartyID returns the id of the party playing role r.
func (tx *Transaction) PartyID(r Role) string {
	if r == RoleProvider {
		return tx.Provider.ID
	}
	return tx.Customer.ID
}

// HasTransition reports whether name appears anywhere in the log.
func (tx *Transaction) HasTransition(name TransitionID) bool {
	for _, t := range tx.Transitions {
		if t.Name == name {
			return true
		}
	}
	return false
}
