package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
	"github.com/roach88/txflow/internal/store"
)

// localEnv is an open database with its backend and registry.
type localEnv struct {
	reg     *process.Registry
	store   *store.Store
	backend *store.Backend
}

func (e *localEnv) Close() error { return e.store.Close() }

// openLocal loads the registry and opens db behind a local backend.
func (o *RootOptions) openLocal(db string, backendOpts ...store.BackendOption) (*localEnv, error) {
	reg, err := o.registry()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRegistry, Message: fmt.Sprintf("loading processes: %v", err)}
	}
	st, err := openStore(db)
	if err != nil {
		return nil, err
	}
	backendOpts = append([]store.BackendOption{store.WithLogger(o.logger())}, backendOpts...)
	return &localEnv{
		reg:     reg,
		store:   st,
		backend: store.NewBackend(st, reg, backendOpts...),
	}, nil
}

// failLoad reports err, typically a *LoadError, as a command error.
func failLoad(f *OutputFormatter, err error) error {
	code, msg := loadErrorCode(err)
	return fail(f, code, msg, nil)
}

// failRead reports a failed transaction read, mapping store.ErrNotFound
// to ErrCodeNotFound.
func failRead(f *OutputFormatter, txID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fail(f, ErrCodeNotFound, fmt.Sprintf("transaction %s not found", txID), nil)
	}
	return fail(f, ErrCodeDatabase, "reading transaction", err)
}

// parseRole validates a --role value.
func parseRole(s string) (ir.Role, error) {
	r := ir.Role(s)
	if !r.Valid() {
		return "", &LoadError{Code: ErrCodeInvalidArgs, Message: fmt.Sprintf("role must be customer or provider, got %q", s)}
	}
	return r, nil
}

// parseActor validates a --as value.
func parseActor(s string) (ir.Actor, error) {
	a := ir.Actor(s)
	if !a.Valid() {
		return "", &LoadError{Code: ErrCodeInvalidArgs, Message: fmt.Sprintf("actor must be customer, provider, operator or system, got %q", s)}
	}
	return a, nil
}
