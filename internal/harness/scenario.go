package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/txflow/internal/engine"
	"github.com/roach88/txflow/internal/ir"
	"github.com/roach88/txflow/internal/orderintent"
)

// Scenario defines a conformance scenario: a transaction fixture viewed by
// one role, optional steps driven through a session, and the expected
// derived page.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Role is the viewing party. Required when Transaction is set.
	Role ir.Role `yaml:"role,omitempty"`

	// Transaction is the fixture the page is derived from.
	Transaction *ir.Transaction `yaml:"transaction,omitempty"`

	// Messages are stored with the fixture, in any order.
	Messages []ir.Message `yaml:"messages,omitempty"`

	// Local is the page-local state applied when deriving without steps.
	Local *engine.LocalState `yaml:"local,omitempty"`

	// HideBeforeOldestMessage composes the feed with the leading
	// transitions hidden.
	HideBeforeOldestMessage bool `yaml:"hide_before_oldest_message,omitempty"`

	// Listing, when set, is classified into an order intent.
	Listing *orderintent.Listing `yaml:"listing,omitempty"`

	// Steps run against a local backend seeded with the fixture. Steps and
	// Local are mutually exclusive.
	Steps []Step `yaml:"steps,omitempty"`

	// Expect is checked against the final page.
	Expect Expect `yaml:"expect"`
}

// Step is one user interaction. Exactly one of the action fields is set.
type Step struct {
	// Perform applies a transition directly as the viewing role.
	Perform ir.TransitionID `yaml:"perform,omitempty"`

	// Invoke presses the "primary" or "secondary" button.
	Invoke string `yaml:"invoke,omitempty"`

	Review  *ReviewStep `yaml:"review,omitempty"`
	Dispute *string     `yaml:"dispute,omitempty"`
	Message string      `yaml:"message,omitempty"`

	// ExpectError is the error code the step must fail with; empty means
	// the step must succeed. See ErrorCode.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ReviewStep submits a review for the open slot.
type ReviewStep struct {
	Rating  int    `yaml:"rating"`
	Content string `yaml:"content"`
}

// Expect lists the page properties to check. Nil fields are not checked;
// an empty string for Primary or Secondary means no button.
type Expect struct {
	State          ir.StateID `yaml:"state,omitempty"`
	Primary        *string    `yaml:"primary,omitempty"`
	Secondary      *string    `yaml:"secondary,omitempty"`
	OrderPanel     *bool      `yaml:"order_panel,omitempty"`
	Breakdown      *bool      `yaml:"breakdown,omitempty"`
	Dispute        *bool      `yaml:"dispute,omitempty"`
	ReviewSlot     *string    `yaml:"review_slot,omitempty"`
	Headings       *bool      `yaml:"headings,omitempty"`
	NeedsAttention *bool      `yaml:"needs_attention,omitempty"`
	Refunded       *bool      `yaml:"refunded,omitempty"`
	Completed      *bool      `yaml:"completed,omitempty"`
	Unsupported    *bool      `yaml:"unsupported,omitempty"`

	OrderFlow orderintent.Flow `yaml:"order_flow,omitempty"`
	Offerable *bool            `yaml:"offerable,omitempty"`

	// Feed lists entries in order, formatted as FeedEntry does.
	Feed []string `yaml:"feed,omitempty"`

	// Error is the code of the derivation or classification error.
	Error string `yaml:"error,omitempty"`
}

// Invoke targets.
const (
	InvokePrimary   = "primary"
	InvokeSecondary = "secondary"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// DiscoverScenarios returns the .yaml and .yml files directly in dir,
// sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Transaction == nil && s.Listing == nil {
		return fmt.Errorf("transaction or listing is required")
	}

	if s.Transaction != nil {
		if !s.Role.Valid() {
			return fmt.Errorf("role must be customer or provider, got %q", s.Role)
		}
		if s.Transaction.ID == "" {
			return fmt.Errorf("transaction.id is required")
		}
		for i, t := range s.Transaction.Transitions {
			if t.Name == "" {
				return fmt.Errorf("transaction.transitions[%d]: transition is required", i)
			}
			if !t.By.Valid() {
				return fmt.Errorf("transaction.transitions[%d]: unknown actor %q", i, t.By)
			}
		}
	}

	for i, m := range s.Messages {
		if m.ID == "" {
			return fmt.Errorf("messages[%d]: id is required", i)
		}
	}

	if len(s.Steps) > 0 {
		if s.Transaction == nil {
			return fmt.Errorf("steps require a transaction")
		}
		if s.Local != nil {
			return fmt.Errorf("steps and local are mutually exclusive")
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	if s.Expect.OrderFlow != "" && s.Listing == nil {
		return fmt.Errorf("expect.order_flow requires a listing")
	}
	return nil
}

func validateStep(index int, st *Step) error {
	set := 0
	if st.Perform != "" {
		set++
	}
	if st.Invoke != "" {
		set++
		if st.Invoke != InvokePrimary && st.Invoke != InvokeSecondary {
			return fmt.Errorf("steps[%d]: invoke must be primary or secondary, got %q", index, st.Invoke)
		}
	}
	if st.Review != nil {
		set++
	}
	if st.Dispute != nil {
		set++
	}
	if st.Message != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of perform, invoke, review, dispute or message is required", index)
	}
	return nil
}
