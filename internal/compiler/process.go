package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/txflow/internal/ir"
)

// CompileFile compiles every process declared in one CUE source file.
// Processes live under the top-level "process" struct, keyed by name:
//
//	process: "default-inquiry": {
//		alias:   "default-inquiry/release-1"
//		version: "1.0.0"
//		kind:    "inquiry"
//		...
//	}
func CompileFile(name string, data []byte) ([]ir.ProcessSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	procs := v.LookupPath(cue.ParsePath("process"))
	if !procs.Exists() {
		return nil, &CompileError{
			Field:   "process",
			Message: "file declares no process",
			Pos:     v.Pos(),
		}
	}

	iter, err := procs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ir.ProcessSpec
	for iter.Next() {
		spec, err := CompileProcess(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileProcess parses a CUE value into a ProcessSpec.
// The value is the process struct itself; its name is the struct label.
// Structural checks beyond field presence are left to Validate.
func CompileProcess(v cue.Value) (*ir.ProcessSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ProcessSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
		if unquoted, err := strconv.Unquote(spec.Name); err == nil {
			spec.Name = unquoted
		}
	}

	var err error
	if spec.Alias, err = requiredString(v, "alias"); err != nil {
		return nil, err
	}
	if spec.Version, err = requiredString(v, "version"); err != nil {
		return nil, err
	}
	kind, err := requiredString(v, "kind")
	if err != nil {
		return nil, err
	}
	spec.Kind = ir.ProcessKind(kind)

	initial, err := requiredString(v, "initial")
	if err != nil {
		return nil, err
	}
	spec.Initial = ir.StateID(initial)

	states, err := stringList(v, "states")
	if err != nil {
		return nil, err
	}
	for _, s := range states {
		spec.States = append(spec.States, ir.StateID(s))
	}

	spec.Transitions, err = parseTransitions(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Transitions) == 0 {
		return nil, &CompileError{
			Field:   "transitions",
			Message: "at least one transition is required",
			Pos:     v.Pos(),
		}
	}

	if spec.Refunds, err = transitionList(v, "refunds"); err != nil {
		return nil, err
	}
	if spec.Successes, err = transitionList(v, "successes"); err != nil {
		return nil, err
	}
	if spec.Reviews, err = parseReviews(v); err != nil {
		return nil, err
	}
	if spec.Dispute, err = parseDispute(v); err != nil {
		return nil, err
	}
	if spec.Attention, err = parseAttention(v); err != nil {
		return nil, err
	}
	if spec.UI, err = parseUI(v); err != nil {
		return nil, err
	}

	return spec, nil
}

// parseTransitions parses the ordered transition list.
func parseTransitions(v cue.Value) ([]ir.TransitionSpec, error) {
	listVal := v.LookupPath(cue.ParsePath("transitions"))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.TransitionSpec
	for iter.Next() {
		tv := iter.Value()
		var t ir.TransitionSpec

		name, err := requiredString(tv, "name")
		if err != nil {
			return nil, err
		}
		t.Name = ir.TransitionID(name)

		from, err := stringList(tv, "from")
		if err != nil {
			return nil, err
		}
		for _, s := range from {
			t.From = append(t.From, ir.StateID(s))
		}

		to, err := requiredString(tv, "to")
		if err != nil {
			return nil, err
		}
		t.To = ir.StateID(to)

		actors, err := stringList(tv, "actors")
		if err != nil {
			return nil, err
		}
		for _, a := range actors {
			t.Actors = append(t.Actors, ir.Actor(a))
		}

		if t.Relevant, err = optionalBool(tv, "relevant"); err != nil {
			return nil, err
		}
		if t.Privileged, err = optionalBool(tv, "privileged"); err != nil {
			return nil, err
		}

		out = append(out, t)
	}
	return out, nil
}

// parseReviews parses reviews: {customer: {first, second}, provider: {...}}.
func parseReviews(v cue.Value) (map[ir.Role]ir.ReviewPair, error) {
	rv := v.LookupPath(cue.ParsePath("reviews"))
	if !rv.Exists() {
		return nil, nil
	}

	iter, err := rv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[ir.Role]ir.ReviewPair)
	for iter.Next() {
		role := ir.Role(iter.Label())
		first, err := requiredString(iter.Value(), "first")
		if err != nil {
			return nil, err
		}
		second, err := requiredString(iter.Value(), "second")
		if err != nil {
			return nil, err
		}
		out[role] = ir.ReviewPair{First: ir.TransitionID(first), Second: ir.TransitionID(second)}
	}
	return out, nil
}

// parseDispute parses dispute: {customer: "transition/dispute"}.
func parseDispute(v cue.Value) (map[ir.Role]ir.TransitionID, error) {
	dv := v.LookupPath(cue.ParsePath("dispute"))
	if !dv.Exists() {
		return nil, nil
	}

	iter, err := dv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[ir.Role]ir.TransitionID)
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out[ir.Role(iter.Label())] = ir.TransitionID(s)
	}
	return out, nil
}

// parseAttention parses attention: {provider: ["state/preauthorized"]}.
func parseAttention(v cue.Value) (map[ir.Role][]ir.StateID, error) {
	av := v.LookupPath(cue.ParsePath("attention"))
	if !av.Exists() {
		return nil, nil
	}

	iter, err := av.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[ir.Role][]ir.StateID)
	for iter.Next() {
		role := ir.Role(iter.Label())
		list, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out[role] = append(out[role], ir.StateID(s))
		}
	}
	return out, nil
}

// parseUI parses the per-(state, role) action table.
func parseUI(v cue.Value) (map[ir.StateID]map[ir.Role]ir.UIRow, error) {
	uv := v.LookupPath(cue.ParsePath("ui"))
	if !uv.Exists() {
		return nil, nil
	}

	states, err := uv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[ir.StateID]map[ir.Role]ir.UIRow)
	for states.Next() {
		state := ir.StateID(states.Label())
		roles, err := states.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}

		rows := make(map[ir.Role]ir.UIRow)
		for roles.Next() {
			row, err := parseUIRow(roles.Value())
			if err != nil {
				return nil, err
			}
			rows[ir.Role(roles.Label())] = row
		}
		out[state] = rows
	}
	return out, nil
}

func parseUIRow(v cue.Value) (ir.UIRow, error) {
	var row ir.UIRow
	var err error

	if row.Primary, err = parseUIAction(v, "primary"); err != nil {
		return row, err
	}
	if row.Secondary, err = parseUIAction(v, "secondary"); err != nil {
		return row, err
	}

	flags := []struct {
		field string
		dst   *bool
	}{
		{"orderPanel", &row.OrderPanel},
		{"breakdown", &row.Breakdown},
		{"dispute", &row.Dispute},
		{"review", &row.Review},
		{"headings", &row.Headings},
	}
	for _, f := range flags {
		if *f.dst, err = optionalBool(v, f.field); err != nil {
			return row, err
		}
	}
	return row, nil
}

func parseUIAction(v cue.Value, field string) (*ir.UIAction, error) {
	av := v.LookupPath(cue.ParsePath(field))
	if !av.Exists() {
		return nil, nil
	}

	transition, err := requiredString(av, "transition")
	if err != nil {
		return nil, err
	}
	action := &ir.UIAction{Transition: ir.TransitionID(transition)}

	if lv := av.LookupPath(cue.ParsePath("label")); lv.Exists() {
		if action.Label, err = lv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if action.Confirm, err = optionalBool(av, "confirm"); err != nil {
		return nil, err
	}
	return action, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func transitionList(v cue.Value, field string) ([]ir.TransitionID, error) {
	names, err := stringList(v, field)
	if err != nil {
		return nil, err
	}
	var out []ir.TransitionID
	for _, n := range names {
		out = append(out, ir.TransitionID(n))
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
