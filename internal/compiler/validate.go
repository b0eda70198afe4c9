package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/txflow/internal/ir"
)

// Validation error codes.
const (
	// Process header errors (E101-E109)
	ErrProcessHeader     = "E101" // name/alias/version missing or version not semver
	ErrProcessKind       = "E102" // kind not booking|purchase|inquiry|negotiation
	ErrProcessStates     = "E103" // states empty or duplicated
	ErrInitialUndeclared = "E104" // initial state not declared

	// State graph errors (E201-E209)
	ErrDuplicateTransition = "E201" // transition name declared twice or not namespaced
	ErrUndeclaredState     = "E202" // from/to references an undeclared state
	ErrInvalidActor        = "E203" // actor not customer|provider|operator|system
	ErrUnreachableState    = "E204" // state not reachable from initial
	ErrStateCycle          = "E205" // state graph contains a cycle
	ErrUnknownTransition   = "E206" // refunds/successes/reviews/dispute name an undeclared transition

	// UI table errors (E301-E309)
	ErrUIReference    = "E301" // ui row names an undeclared state or an unknown role
	ErrUIAction       = "E302" // ui action does not leave the row's state or the role cannot perform it
	ErrRoleTransition = "E303" // review/dispute transition not performable by its role
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled process against the schema rules.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.ProcessSpec) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateHeader(spec)...)

	states := make(map[ir.StateID]bool, len(spec.States))
	for _, s := range spec.States {
		states[s] = true
	}

	transitions := make(map[ir.TransitionID]*ir.TransitionSpec, len(spec.Transitions))
	for i := range spec.Transitions {
		t := &spec.Transitions[i]
		field := fmt.Sprintf("transitions[%d]", i)

		if _, dup := transitions[t.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate transition %q", t.Name),
				Code:    ErrDuplicateTransition,
			})
		}
		transitions[t.Name] = t

		if !strings.HasPrefix(string(t.Name), ir.TransitionPrefix) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("transition %q must start with %q", t.Name, ir.TransitionPrefix),
				Code:    ErrDuplicateTransition,
			})
		}

		if len(t.From) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".from",
				Message: fmt.Sprintf("transition %q leaves no state", t.Name),
				Code:    ErrUndeclaredState,
			})
		}
		for _, from := range t.From {
			if !states[from] {
				errs = append(errs, ValidationError{
					Field:   field + ".from",
					Message: fmt.Sprintf("undeclared state %q", from),
					Code:    ErrUndeclaredState,
				})
			}
		}
		if !states[t.To] {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("undeclared state %q", t.To),
				Code:    ErrUndeclaredState,
			})
		}

		if len(t.Actors) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".actors",
				Message: fmt.Sprintf("transition %q has no actors", t.Name),
				Code:    ErrInvalidActor,
			})
		}
		for _, a := range t.Actors {
			if !a.Valid() {
				errs = append(errs, ValidationError{
					Field:   field + ".actors",
					Message: fmt.Sprintf("invalid actor %q", a),
					Code:    ErrInvalidActor,
				})
			}
		}
	}

	errs = append(errs, validateGraph(spec, states)...)
	errs = append(errs, validateClassifications(spec, transitions)...)
	errs = append(errs, validateUI(spec, states, transitions)...)

	return errs
}

func validateHeader(spec *ir.ProcessSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "name is required", Code: ErrProcessHeader})
	}
	if strings.TrimSpace(spec.Alias) == "" {
		errs = append(errs, ValidationError{Field: "alias", Message: "alias is required", Code: ErrProcessHeader})
	} else if !strings.HasPrefix(spec.Alias, spec.Name+"/") {
		errs = append(errs, ValidationError{
			Field:   "alias",
			Message: fmt.Sprintf("alias %q must be namespaced by process name %q", spec.Alias, spec.Name),
			Code:    ErrProcessHeader,
		})
	}
	if _, err := semver.NewVersion(spec.Version); err != nil {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("version %q is not a semantic version: %v", spec.Version, err),
			Code:    ErrProcessHeader,
		})
	}

	if !spec.Kind.Valid() {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("invalid kind %q (must be booking, purchase, inquiry or negotiation)", spec.Kind),
			Code:    ErrProcessKind,
		})
	}

	if len(spec.States) == 0 {
		errs = append(errs, ValidationError{Field: "states", Message: "at least one state is required", Code: ErrProcessStates})
	}
	seen := make(map[ir.StateID]bool, len(spec.States))
	for _, s := range spec.States {
		if seen[s] {
			errs = append(errs, ValidationError{
				Field:   "states",
				Message: fmt.Sprintf("duplicate state %q", s),
				Code:    ErrProcessStates,
			})
		}
		seen[s] = true
	}

	if !seen[spec.Initial] {
		errs = append(errs, ValidationError{
			Field:   "initial",
			Message: fmt.Sprintf("initial state %q is not declared", spec.Initial),
			Code:    ErrInitialUndeclared,
		})
	}

	return errs
}

// validateGraph checks reachability from the initial state and acyclicity.
func validateGraph(spec *ir.ProcessSpec, states map[ir.StateID]bool) []ValidationError {
	var errs []ValidationError

	if states[spec.Initial] {
		reached := map[ir.StateID]bool{spec.Initial: true}
		queue := []ir.StateID{spec.Initial}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, t := range spec.Transitions {
				if !containsState(t.From, cur) || reached[t.To] {
					continue
				}
				reached[t.To] = true
				queue = append(queue, t.To)
			}
		}
		for _, s := range spec.States {
			if !reached[s] {
				errs = append(errs, ValidationError{
					Field:   "states",
					Message: fmt.Sprintf("state %q is not reachable from %q", s, spec.Initial),
					Code:    ErrUnreachableState,
				})
			}
		}
	}

	for _, w := range AnalyzeCycles(spec) {
		errs = append(errs, ValidationError{
			Field:   "transitions",
			Message: w.Message,
			Code:    ErrStateCycle,
		})
	}

	return errs
}

func validateClassifications(spec *ir.ProcessSpec, transitions map[ir.TransitionID]*ir.TransitionSpec) []ValidationError {
	var errs []ValidationError

	check := func(field string, name ir.TransitionID) {
		if _, ok := transitions[name]; !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("undeclared transition %q", name),
				Code:    ErrUnknownTransition,
			})
		}
	}

	for i, name := range spec.Refunds {
		check(fmt.Sprintf("refunds[%d]", i), name)
	}
	for i, name := range spec.Successes {
		check(fmt.Sprintf("successes[%d]", i), name)
	}

	for _, role := range ir.Roles {
		pair, ok := spec.Reviews[role]
		if !ok {
			continue
		}
		check(fmt.Sprintf("reviews.%s.first", role), pair.First)
		check(fmt.Sprintf("reviews.%s.second", role), pair.Second)
		errs = append(errs, checkPerformable(transitions, fmt.Sprintf("reviews.%s", role), role, pair.First, pair.Second)...)
	}
	for _, role := range slices.Sorted(maps.Keys(spec.Reviews)) {
		if !role.Valid() {
			errs = append(errs, ValidationError{
				Field:   "reviews",
				Message: fmt.Sprintf("unknown role %q", role),
				Code:    ErrUIReference,
			})
		}
	}

	for _, role := range ir.Roles {
		name, ok := spec.Dispute[role]
		if !ok {
			continue
		}
		check(fmt.Sprintf("dispute.%s", role), name)
		errs = append(errs, checkPerformable(transitions, fmt.Sprintf("dispute.%s", role), role, name)...)
	}

	return errs
}

// checkPerformable reports transitions the role cannot perform itself.
// Undeclared names are reported elsewhere.
func checkPerformable(transitions map[ir.TransitionID]*ir.TransitionSpec, field string, role ir.Role, names ...ir.TransitionID) []ValidationError {
	var errs []ValidationError
	for _, name := range names {
		t, ok := transitions[name]
		if !ok {
			continue
		}
		if !containsActor(t.Actors, ir.Actor(role)) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("transition %q is not performable by %s", name, role),
				Code:    ErrRoleTransition,
			})
		}
	}
	return errs
}

func validateUI(spec *ir.ProcessSpec, states map[ir.StateID]bool, transitions map[ir.TransitionID]*ir.TransitionSpec) []ValidationError {
	var errs []ValidationError

	for _, state := range slices.Sorted(maps.Keys(spec.UI)) {
		rows := spec.UI[state]
		if !states[state] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("ui[%q]", state),
				Message: fmt.Sprintf("undeclared state %q", state),
				Code:    ErrUIReference,
			})
		}
		for _, role := range slices.Sorted(maps.Keys(rows)) {
			row := rows[role]
			field := fmt.Sprintf("ui[%q].%s", state, role)
			if !role.Valid() {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("unknown role %q", role),
					Code:    ErrUIReference,
				})
				continue
			}
			slots := []struct {
				name   string
				action *ir.UIAction
			}{{"primary", row.Primary}, {"secondary", row.Secondary}}
			for _, sl := range slots {
				slot, action := sl.name, sl.action
				if action == nil {
					continue
				}
				t, ok := transitions[action.Transition]
				if !ok {
					errs = append(errs, ValidationError{
						Field:   field + "." + slot,
						Message: fmt.Sprintf("undeclared transition %q", action.Transition),
						Code:    ErrUIAction,
					})
					continue
				}
				if !containsState(t.From, state) {
					errs = append(errs, ValidationError{
						Field:   field + "." + slot,
						Message: fmt.Sprintf("transition %q does not leave %q", action.Transition, state),
						Code:    ErrUIAction,
					})
				}
				if !containsActor(t.Actors, ir.Actor(role)) {
					errs = append(errs, ValidationError{
						Field:   field + "." + slot,
						Message: fmt.Sprintf("transition %q is not performable by %s", action.Transition, role),
						Code:    ErrUIAction,
					})
				}
			}
		}
	}

	return errs
}

func containsState(list []ir.StateID, s ir.StateID) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func containsActor(list []ir.Actor, a ir.Actor) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
