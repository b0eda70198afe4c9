package process

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/txflow/internal/ir"
)

// Registry maps process names and aliases to definitions.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	byName  map[string][]*Definition // newest version first
	byAlias map[string]*Definition
	names   []string
}

// NewRegistry indexes defs. Aliases must be unique; several versions of
// the same process name may coexist.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string][]*Definition),
		byAlias: make(map[string]*Definition),
	}

	for _, d := range defs {
		if prev, dup := r.byAlias[d.Alias()]; dup {
			return nil, fmt.Errorf("duplicate process alias %q (versions %s and %s)",
				d.Alias(), prev.Version(), d.Version())
		}
		r.byAlias[d.Alias()] = d
		r.byName[d.Name()] = append(r.byName[d.Name()], d)
	}

	for name, versions := range r.byName {
		slices.SortStableFunc(versions, func(a, b *Definition) int {
			return b.Version().Compare(a.Version())
		})
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)

	return r, nil
}

// Lookup resolves a bare process name to its highest version.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	versions := r.byName[name]
	if len(versions) == 0 {
		return nil, false
	}
	return versions[0], true
}

// LookupAlias resolves an exact alias such as "default-booking/release-1".
func (r *Registry) LookupAlias(alias string) (*Definition, bool) {
	d, ok := r.byAlias[alias]
	return d, ok
}

// Resolve prefers the alias when it is known and belongs to name, and
// falls back to the newest version of name otherwise.
func (r *Registry) Resolve(name, alias string) (*Definition, bool) {
	if alias != "" {
		if d, ok := r.byAlias[alias]; ok && (name == "" || d.Name() == name) {
			return d, true
		}
	}
	if name == "" {
		name = NameFromAlias(alias)
	}
	return r.Lookup(name)
}

// For resolves the definition governing a transaction.
func (r *Registry) For(tx *ir.Transaction) (*Definition, bool) {
	return r.Resolve(tx.ProcessName, tx.ProcessAlias)
}

// Kind returns the kind of the newest version of name.
func (r *Registry) Kind(name string) (ir.ProcessKind, bool) {
	d, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return d.Kind(), true
}

// Names returns the registered process names, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Definitions returns every registered definition, sorted by name and
// then newest version first.
func (r *Registry) Definitions() []*Definition {
	var out []*Definition
	for _, name := range r.names {
		out = append(out, r.byName[name]...)
	}
	return out
}

// NameFromAlias strips the release suffix from an alias:
// "default-booking/release-1" → "default-booking".
func NameFromAlias(alias string) string {
	name, _, _ := strings.Cut(alias, "/")
	return name
}
