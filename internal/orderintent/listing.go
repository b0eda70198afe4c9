package orderintent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	ListingPublished = "published"
	ListingClosed    = "closed"
)

// Listing is the read-only listing data the classifier needs.
type Listing struct {
	ID                      string         `json:"id" yaml:"id"`
	State                   string         `json:"state,omitempty" yaml:"state,omitempty"`
	Title                   string         `json:"title,omitempty" yaml:"title,omitempty"`
	UnitType                string         `json:"unitType" yaml:"unit_type"`
	TransactionProcessAlias string         `json:"transactionProcessAlias,omitempty" yaml:"transaction_process_alias,omitempty"`
	PriceVariants           []PriceVariant `json:"priceVariants,omitempty" yaml:"price_variants,omitempty"`

	// CurrentStock is nil when stock has not been loaded.
	CurrentStock *int `json:"currentStock,omitempty" yaml:"current_stock,omitempty"`
}

// PriceVariant is one fixed-duration booking option.
type PriceVariant struct {
	Name                   string `json:"name" yaml:"name"`
	PriceInSubunits        int64  `json:"priceInSubunits,omitempty" yaml:"price_in_subunits,omitempty"`
	BookingLengthInMinutes int    `json:"bookingLengthInMinutes,omitempty" yaml:"booking_length_in_minutes,omitempty"`
}

// Closed reports whether the listing no longer accepts orders.
func (l *Listing) Closed() bool { return l.State == ListingClosed }

//go:embed schema/listing.schema.json
var listingSchemaJSON string

const listingSchemaURL = "https://txflow.local/schema/listing.schema.json"

var (
	listingSchemaOnce sync.Once
	listingSchema     *jsonschema.Schema
	listingSchemaErr  error
)

func compiledListingSchema() (*jsonschema.Schema, error) {
	listingSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(listingSchemaURL, strings.NewReader(listingSchemaJSON)); err != nil {
			listingSchemaErr = fmt.Errorf("listing schema load failed: %w", err)
			return
		}
		listingSchema, listingSchemaErr = c.Compile(listingSchemaURL)
	})
	return listingSchema, listingSchemaErr
}

// ParseListing validates data against the listing schema and decodes it.
func ParseListing(data []byte) (*Listing, error) {
	schema, err := compiledListingSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("listing failed schema validation: %w", err)
	}

	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return &l, nil
}
