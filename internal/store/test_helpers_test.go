package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

var testBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTransaction creates a booking transaction in state/preauthorized.
func createTestTransaction(id string) *ir.Transaction {
	return &ir.Transaction{
		ID:           id,
		ProcessName:  "default-booking",
		ProcessAlias: "default-booking/release-1",
		Listing:      ir.ListingRef{ID: "listing-1", Title: "Sauna"},
		Customer:     ir.Party{ID: "customer-1", DisplayName: "Cleo"},
		Provider:     ir.Party{ID: "provider-1", DisplayName: "Pat"},
		Booking: &ir.Booking{
			Start: testBase.Add(24 * time.Hour),
			End:   testBase.Add(26 * time.Hour),
		},
		LineItems: []ir.LineItem{{
			Code:              "line-item/hour",
			UnitPriceSubunits: 2500,
			Quantity:          2,
			LineTotalSubunits: 5000,
			IncludeFor:        []ir.Role{ir.RoleCustomer, ir.RoleProvider},
		}},
		Transitions: []ir.Transition{
			{Name: "transition/request-payment", By: ir.ActorCustomer, At: testBase},
			{Name: "transition/confirm-payment", By: ir.ActorCustomer, At: testBase.Add(time.Minute)},
		},
	}
}

func saveTestTransaction(t *testing.T, s *Store, tx *ir.Transaction) {
	t.Helper()
	if err := s.SaveTransaction(context.Background(), tx); err != nil {
		t.Fatalf("SaveTransaction() failed: %v", err)
	}
}

func builtinRegistry(t *testing.T) *process.Registry {
	t.Helper()
	reg, err := process.Builtin()
	if err != nil {
		t.Fatalf("process.Builtin() failed: %v", err)
	}
	return reg
}
