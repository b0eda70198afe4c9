package orderintent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/process"
)

func registry(t *testing.T) *process.Registry {
	t.Helper()
	reg, err := process.Builtin()
	require.NoError(t, err)
	return reg
}

func stock(n int) *int { return &n }

func TestClassifyDecisionTable(t *testing.T) {
	reg := registry(t)
	variants := []PriceVariant{
		{Name: "Short session", BookingLengthInMinutes: 30},
		{Name: "Long session", BookingLengthInMinutes: 90},
	}

	tests := []struct {
		name      string
		process   string
		listing   Listing
		wantFlow  Flow
		offerable bool
	}{
		{"inquiry wins over unit type", "default-inquiry", Listing{ID: "l", UnitType: "hour"}, FlowInquiry, true},
		{"hourly booking", "default-booking", Listing{ID: "l", UnitType: "hour"}, FlowBookingTime, true},
		{"daily booking", "default-booking", Listing{ID: "l", UnitType: "day"}, FlowBookingDates, true},
		{"nightly booking", "default-booking", Listing{ID: "l", UnitType: "night"}, FlowBookingDates, true},
		{"fixed with variants", "default-booking", Listing{ID: "l", UnitType: "fixed", PriceVariants: variants}, FlowBookingFixedDuration, true},
		{"fixed without variants", "default-booking", Listing{ID: "l", UnitType: "fixed"}, FlowUnknown, false},
		{"item purchase", "default-purchase", Listing{ID: "l", UnitType: "item"}, FlowPurchaseItem, true},
		{"purchase of hours", "default-purchase", Listing{ID: "l", UnitType: "hour"}, FlowUnknown, false},
		{"negotiation", "default-negotiation", Listing{ID: "l", UnitType: "request"}, FlowUnknown, false},
		{"unregistered process", "legacy-rental", Listing{ID: "l", UnitType: "day"}, FlowUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := Classify(&tt.listing, tt.process, reg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlow, intent.Flow)
			assert.Equal(t, tt.offerable, intent.Offerable)
			if tt.wantFlow == FlowUnknown {
				assert.Contains(t, intent.Blocked, BlockUnsupported)
			}
		})
	}
}

func TestClassifyFallsBackToAlias(t *testing.T) {
	listing := &Listing{ID: "l", UnitType: "hour", TransactionProcessAlias: "default-booking/release-1"}
	intent, err := Classify(listing, "", registry(t))
	require.NoError(t, err)
	assert.Equal(t, FlowBookingTime, intent.Flow)
}

func TestClassifyDuplicateVariantNames(t *testing.T) {
	listing := &Listing{
		ID:       "listing-7",
		UnitType: "fixed",
		PriceVariants: []PriceVariant{
			{Name: "One hour", BookingLengthInMinutes: 60},
			{Name: "One hour", BookingLengthInMinutes: 60},
		},
	}

	intent, err := Classify(listing, "default-booking", registry(t))
	require.Error(t, err)
	assert.True(t, IsInvalidPriceVariants(err))
	assert.Equal(t, FlowUnknown, intent.Flow)
	assert.False(t, intent.Offerable)
	assert.Equal(t, []BlockReason{BlockBadVariants}, intent.Blocked)
	assert.Contains(t, err.Error(), "listing-7")
}

func TestValidatePriceVariants(t *testing.T) {
	tests := []struct {
		name     string
		variants []PriceVariant
		problems int
	}{
		{"valid", []PriceVariant{{Name: "A", BookingLengthInMinutes: 15}, {Name: "B", BookingLengthInMinutes: 30}}, 0},
		{"empty name", []PriceVariant{{Name: "  ", BookingLengthInMinutes: 15}}, 1},
		{"slug collision", []PriceVariant{{Name: "Deep Tissue", BookingLengthInMinutes: 60}, {Name: "deep tissue", BookingLengthInMinutes: 90}}, 1},
		{"zero length", []PriceVariant{{Name: "A"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePriceVariants(&Listing{ID: "l", PriceVariants: tt.variants})
			if tt.problems == 0 {
				assert.NoError(t, err)
				return
			}
			var ipv *InvalidPriceVariantsError
			require.ErrorAs(t, err, &ipv)
			assert.Len(t, ipv.Problems, tt.problems)
		})
	}
}

func TestClassifyGating(t *testing.T) {
	reg := registry(t)

	closed := &Listing{ID: "l", UnitType: "hour", State: ListingClosed}
	intent, err := Classify(closed, "default-booking", reg)
	require.NoError(t, err)
	assert.Equal(t, FlowBookingTime, intent.Flow)
	assert.False(t, intent.Offerable)
	assert.Equal(t, []BlockReason{BlockClosed}, intent.Blocked)

	soldOut := &Listing{ID: "l", UnitType: "item", CurrentStock: stock(0)}
	intent, err = Classify(soldOut, "default-purchase", reg)
	require.NoError(t, err)
	assert.Equal(t, FlowPurchaseItem, intent.Flow)
	assert.Equal(t, []BlockReason{BlockOutOfStock}, intent.Blocked)

	inStock := &Listing{ID: "l", UnitType: "item", CurrentStock: stock(3)}
	intent, err = Classify(inStock, "default-purchase", reg)
	require.NoError(t, err)
	assert.True(t, intent.Offerable)

	unloaded := &Listing{ID: "l", UnitType: "item"}
	intent, err = Classify(unloaded, "default-purchase", reg)
	require.NoError(t, err)
	assert.True(t, intent.Offerable)
}

func TestClassifyNilInputs(t *testing.T) {
	intent, err := Classify(nil, "default-booking", registry(t))
	require.NoError(t, err)
	assert.Equal(t, FlowUnknown, intent.Flow)

	intent, err = Classify(&Listing{ID: "l", UnitType: "hour"}, "default-booking", nil)
	require.NoError(t, err)
	assert.Equal(t, FlowUnknown, intent.Flow)
}

type staticKinds map[string]ir.ProcessKind

func (s staticKinds) Kind(name string) (ir.ProcessKind, bool) {
	k, ok := s[name]
	return k, ok
}

func TestClassifyCustomKinds(t *testing.T) {
	kinds := staticKinds{"hourly-rentals": ir.KindBooking}
	intent, err := Classify(&Listing{ID: "l", UnitType: "hour"}, "hourly-rentals", kinds)
	require.NoError(t, err)
	assert.Equal(t, FlowBookingTime, intent.Flow)
}

func TestProcessNameFromAlias(t *testing.T) {
	assert.Equal(t, "default-booking", ProcessNameFromAlias("default-booking/release-1"))
	assert.Equal(t, "default-purchase", ProcessNameFromAlias("default-purchase"))
	assert.Empty(t, ProcessNameFromAlias(""))
}
