package process

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/txflow/internal/compiler"
	"github.com/roach88/txflow/internal/ir"
)

// ReviewSlot identifies which of the two ordered review transitions a
// party performs: "first" when the counterpart has not reviewed yet,
// "second" otherwise.
type ReviewSlot string

const (
	SlotFirst  ReviewSlot = "first"
	SlotSecond ReviewSlot = "second"
)

// Definition is an indexed, read-only process definition.
// All query methods are pure lookups over tables built in NewDefinition.
type Definition struct {
	spec    ir.ProcessSpec
	version *semver.Version
	hash    string

	transitions map[ir.TransitionID]*ir.TransitionSpec
	toState     map[ir.StateID][]ir.TransitionID
	outgoing    map[ir.StateID][]ir.TransitionID
	refunds     map[ir.TransitionID]bool
	successes   map[ir.TransitionID]bool
	reviewOf    map[ir.TransitionID]reviewKey
	attention   map[ir.Role]map[ir.StateID]bool
}

type reviewKey struct {
	role ir.Role
	slot ReviewSlot
}

// InvalidDefinitionError reports a process that failed validation.
type InvalidDefinitionError struct {
	Name   string
	Errors []compiler.ValidationError
}

func (e *InvalidDefinitionError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("process %q is invalid: %s", e.Name, strings.Join(msgs, "; "))
}

// NewDefinition validates spec and builds its lookup tables.
func NewDefinition(spec ir.ProcessSpec) (*Definition, error) {
	if errs := compiler.Validate(&spec); len(errs) > 0 {
		return nil, &InvalidDefinitionError{Name: spec.Name, Errors: errs}
	}

	version, err := semver.NewVersion(spec.Version)
	if err != nil {
		return nil, fmt.Errorf("process %q: %w", spec.Name, err)
	}
	hash, err := ir.ProcessHash(&spec)
	if err != nil {
		return nil, fmt.Errorf("process %q: %w", spec.Name, err)
	}

	d := &Definition{
		spec:        spec,
		version:     version,
		hash:        hash,
		transitions: make(map[ir.TransitionID]*ir.TransitionSpec, len(spec.Transitions)),
		toState:     make(map[ir.StateID][]ir.TransitionID),
		outgoing:    make(map[ir.StateID][]ir.TransitionID),
		refunds:     make(map[ir.TransitionID]bool),
		successes:   make(map[ir.TransitionID]bool),
		reviewOf:    make(map[ir.TransitionID]reviewKey),
		attention:   make(map[ir.Role]map[ir.StateID]bool),
	}

	for i := range d.spec.Transitions {
		t := &d.spec.Transitions[i]
		d.transitions[t.Name] = t
		d.toState[t.To] = append(d.toState[t.To], t.Name)
		for _, from := range t.From {
			d.outgoing[from] = append(d.outgoing[from], t.Name)
		}
	}
	for _, name := range spec.Refunds {
		d.refunds[name] = true
	}
	for _, name := range spec.Successes {
		d.successes[name] = true
	}
	for role, pair := range spec.Reviews {
		d.reviewOf[pair.First] = reviewKey{role: role, slot: SlotFirst}
		d.reviewOf[pair.Second] = reviewKey{role: role, slot: SlotSecond}
	}
	for role, states := range spec.Attention {
		set := make(map[ir.StateID]bool, len(states))
		for _, s := range states {
			set[s] = true
		}
		d.attention[role] = set
	}

	return d, nil
}

func (d *Definition) Name() string { return d.spec.Name }
func (d *Definition) Alias() string { return d.spec.Alias }
func (d *Definition) Version() *semver.Version { return d.version }
func (d *Definition) Kind() ir.ProcessKind { return d.spec.Kind }
func (d *Definition) InitialState() ir.StateID { return d.spec.Initial }

// Hash is the content hash of the compiled definition.
func (d *Definition) Hash() string { return d.hash }

// Spec returns the compiled definition. Its maps are shared and must not
// be modified.
func (d *Definition) Spec() ir.ProcessSpec { return d.spec }

// States returns the declared states in declaration order.
func (d *Definition) States() []ir.StateID {
	return slices.Clone(d.spec.States)
}

// Transitions returns the declared transition names in declaration order.
func (d *Definition) Transitions() []ir.TransitionID {
	out := make([]ir.TransitionID, len(d.spec.Transitions))
	for i, t := range d.spec.Transitions {
		out[i] = t.Name
	}
	return out
}

// HasTransition reports whether name is declared.
func (d *Definition) HasTransition(name ir.TransitionID) bool {
	_, ok := d.transitions[name]
	return ok
}

// TransitionsToState returns every transition landing in state.
func (d *Definition) TransitionsToState(state ir.StateID) []ir.TransitionID {
	return slices.Clone(d.toState[state])
}

// OutgoingTransitions returns every transition leaving state.
func (d *Definition) OutgoingTransitions(state ir.StateID) []ir.TransitionID {
	return slices.Clone(d.outgoing[state])
}

// StateAfter returns the state a transition lands in.
func (d *Definition) StateAfter(name ir.TransitionID) (ir.StateID, bool) {
	t, ok := d.transitions[name]
	if !ok {
		return "", false
	}
	return t.To, true
}

// CanPerform reports whether actor may perform the transition.
func (d *Definition) CanPerform(name ir.TransitionID, actor ir.Actor) bool {
	t, ok := d.transitions[name]
	if !ok {
		return false
	}
	return slices.Contains(t.Actors, actor)
}

// Leaves reports whether the transition may be taken from state.
func (d *Definition) Leaves(name ir.TransitionID, state ir.StateID) bool {
	t, ok := d.transitions[name]
	if !ok {
		return false
	}
	return slices.Contains(t.From, state)
}

func (d *Definition) IsRefundTransition(name ir.TransitionID) bool { return d.refunds[name] }

// IsTerminalSuccess reports completed/received style transitions.
func (d *Definition) IsTerminalSuccess(name ir.TransitionID) bool { return d.successes[name] }

// IsRelevantPastTransition reports whether the transition is shown in the
// activity feed.
func (d *Definition) IsRelevantPastTransition(name ir.TransitionID) bool {
	t, ok := d.transitions[name]
	return ok && t.Relevant
}

// IsPrivileged reports transitions that must run on a trusted backend.
func (d *Definition) IsPrivileged(name ir.TransitionID) bool {
	t, ok := d.transitions[name]
	return ok && t.Privileged
}

func (d *Definition) IsFirstReviewTransition(name ir.TransitionID, role ir.Role) bool {
	k, ok := d.reviewOf[name]
	return ok && k.role == role && k.slot == SlotFirst
}

func (d *Definition) IsSecondReviewTransition(name ir.TransitionID, role ir.Role) bool {
	k, ok := d.reviewOf[name]
	return ok && k.role == role && k.slot == SlotSecond
}

// ReviewRole returns the role that performs a review transition.
func (d *Definition) ReviewRole(name ir.TransitionID) (ir.Role, ReviewSlot, bool) {
	k, ok := d.reviewOf[name]
	return k.role, k.slot, ok
}

// ReviewTransition returns the review transition for role in slot.
func (d *Definition) ReviewTransition(role ir.Role, slot ReviewSlot) (ir.TransitionID, bool) {
	pair, ok := d.spec.Reviews[role]
	if !ok {
		return "", false
	}
	if slot == SlotSecond {
		return pair.Second, true
	}
	return pair.First, true
}

// ReviewedByState returns the state reached when role reviews first.
func (d *Definition) ReviewedByState(role ir.Role) (ir.StateID, bool) {
	pair, ok := d.spec.Reviews[role]
	if !ok {
		return "", false
	}
	return d.StateAfter(pair.First)
}

// DisputeTransition returns the dispute transition performable by role.
func (d *Definition) DisputeTransition(role ir.Role) (ir.TransitionID, bool) {
	name, ok := d.spec.Dispute[role]
	return name, ok
}

// NeedsAttention reports whether role is expected to act in state.
func (d *Definition) NeedsAttention(state ir.StateID, role ir.Role) bool {
	return d.attention[role][state]
}

// Row returns the UI table entry for (state, role).
func (d *Definition) Row(state ir.StateID, role ir.Role) (ir.UIRow, bool) {
	row, ok := d.spec.UI[state][role]
	return row, ok
}
