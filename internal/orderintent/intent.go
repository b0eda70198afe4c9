// Package orderintent decides which order form a listing supports under a
// transaction process, and whether the form may be offered at all.
package orderintent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-slug"

	"github.com/roach88/txflow/internal/ir"
)

// Flow is the order form a listing supports.
type Flow string

const (
	FlowBookingTime          Flow = "booking-time"
	FlowBookingDates         Flow = "booking-dates"
	FlowBookingFixedDuration Flow = "booking-fixed-duration"
	FlowPurchaseItem         Flow = "purchase-item"
	FlowInquiry              Flow = "inquiry"
	FlowUnknown              Flow = "unknown"
)

// BlockReason says why a classified flow may not be offered.
type BlockReason string

const (
	BlockUnsupported BlockReason = "unsupported_process"
	BlockClosed      BlockReason = "listing_closed"
	BlockOutOfStock  BlockReason = "out_of_stock"
	BlockBadVariants BlockReason = "invalid_price_variants"
)

// Intent is the classification result. Offerable is false whenever
// Blocked is non-empty.
type Intent struct {
	Flow      Flow          `json:"flow"`
	Offerable bool          `json:"offerable"`
	Blocked   []BlockReason `json:"blocked,omitempty"`
}

// KindLookup resolves a process name to its kind. *process.Registry
// implements it.
type KindLookup interface {
	Kind(name string) (ir.ProcessKind, bool)
}

// InvalidPriceVariantsError reports a fixed-duration listing whose price
// variants cannot be offered.
type InvalidPriceVariantsError struct {
	ListingID string
	Problems  []string
}

func (e *InvalidPriceVariantsError) Error() string {
	return fmt.Sprintf("listing %s has invalid price variants: %s", e.ListingID, strings.Join(e.Problems, "; "))
}

// IsInvalidPriceVariants returns true if err is, or wraps, an InvalidPriceVariantsError.
func IsInvalidPriceVariants(err error) bool {
	var ipv *InvalidPriceVariantsError
	return errors.As(err, &ipv)
}

// Classify picks the order flow for listing under processName. An empty
// processName falls back to the listing's process alias.
//
// Invalid price variants on a fixed-duration booking yield FlowUnknown
// together with an *InvalidPriceVariantsError; the form never falls
// through to another flow.
func Classify(listing *Listing, processName string, kinds KindLookup) (Intent, error) {
	if listing == nil {
		return Intent{Flow: FlowUnknown, Blocked: []BlockReason{BlockUnsupported}}, nil
	}
	if processName == "" {
		processName = ProcessNameFromAlias(listing.TransactionProcessAlias)
	}

	var kind ir.ProcessKind
	if kinds != nil {
		kind, _ = kinds.Kind(processName)
	}

	flow := FlowUnknown
	var variantErr error
	switch {
	case kind == ir.KindInquiry:
		flow = FlowInquiry
	case kind == ir.KindBooking && listing.UnitType == "fixed" && len(listing.PriceVariants) > 0:
		if err := ValidatePriceVariants(listing); err != nil {
			variantErr = err
		} else {
			flow = FlowBookingFixedDuration
		}
	case kind == ir.KindBooking && listing.UnitType == "hour":
		flow = FlowBookingTime
	case kind == ir.KindBooking && (listing.UnitType == "day" || listing.UnitType == "night"):
		flow = FlowBookingDates
	case kind == ir.KindPurchase && listing.UnitType == "item":
		flow = FlowPurchaseItem
	}

	intent := Intent{Flow: flow}
	switch {
	case variantErr != nil:
		intent.Blocked = append(intent.Blocked, BlockBadVariants)
	case flow == FlowUnknown:
		intent.Blocked = append(intent.Blocked, BlockUnsupported)
	}
	if listing.Closed() {
		intent.Blocked = append(intent.Blocked, BlockClosed)
	}
	if flow == FlowPurchaseItem && listing.CurrentStock != nil && *listing.CurrentStock == 0 {
		intent.Blocked = append(intent.Blocked, BlockOutOfStock)
	}
	intent.Offerable = len(intent.Blocked) == 0

	return intent, variantErr
}

// ValidatePriceVariants checks that variant names are present, that their
// slugs are distinct and that each booking length is positive.
func ValidatePriceVariants(listing *Listing) error {
	var problems []string
	seen := make(map[string]int)

	for i, v := range listing.PriceVariants {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("variant %d has no name", i))
			continue
		}
		key, err := slug.Normalize(name)
		if err != nil || key == "" {
			problems = append(problems, fmt.Sprintf("variant %d name %q has no usable slug", i, v.Name))
			continue
		}
		if prev, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("variants %d and %d share slug %q", prev, i, key))
		} else {
			seen[key] = i
		}
		if v.BookingLengthInMinutes <= 0 {
			problems = append(problems, fmt.Sprintf("variant %q has non-positive booking length", v.Name))
		}
	}

	if len(problems) > 0 {
		return &InvalidPriceVariantsError{ListingID: listing.ID, Problems: problems}
	}
	return nil
}

// ProcessNameFromAlias strips the release suffix:
// "default-booking/release-1" → "default-booking".
func ProcessNameFromAlias(alias string) string {
	name, _, _ := strings.Cut(alias, "/")
	return name
}
