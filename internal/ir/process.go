package ir

// ProcessKind classifies a process for order-intent and dispute rules.
type ProcessKind string

const (
	KindBooking     ProcessKind = "booking"
	KindPurchase    ProcessKind = "purchase"
	KindInquiry     ProcessKind = "inquiry"
	KindNegotiation ProcessKind = "negotiation"
)

// Valid reports whether k is a known process kind.
func (k ProcessKind) Valid() bool {
	switch k {
	case KindBooking, KindPurchase, KindInquiry, KindNegotiation:
		return true
	}
	return false
}

// ProcessSpec is a compiled process definition.
// It is pure data; indexing and predicates live in the process package.
type ProcessSpec struct {
	Name        string                     `json:"name"`
	Alias       string                     `json:"alias"`
	Version     string                     `json:"version"`
	Kind        ProcessKind                `json:"kind"`
	Initial     StateID                    `json:"initial"`
	States      []StateID                  `json:"states"`
	Transitions []TransitionSpec           `json:"transitions"`
	Refunds     []TransitionID             `json:"refunds,omitempty"`
	Successes   []TransitionID             `json:"successes,omitempty"`
	Reviews     map[Role]ReviewPair        `json:"reviews,omitempty"`
	Dispute     map[Role]TransitionID      `json:"dispute,omitempty"`
	Attention   map[Role][]StateID         `json:"attention,omitempty"`
	UI          map[StateID]map[Role]UIRow `json:"ui,omitempty"`
}

// TransitionSpec is one edge of the state graph. A transition may leave
// several states but always lands in exactly one.
type TransitionSpec struct {
	Name       TransitionID `json:"name"`
	From       []StateID    `json:"from"`
	To         StateID      `json:"to"`
	Actors     []Actor      `json:"actors"`
	Relevant   bool         `json:"relevant,omitempty"`
	Privileged bool         `json:"privileged,omitempty"`
}

// ReviewPair names the first- and second-reviewer transitions of one role.
type ReviewPair struct {
	First  TransitionID `json:"first"`
	Second TransitionID `json:"second"`
}

// UIRow is the static action table entry for one (state, role).
type UIRow struct {
	Primary    *UIAction `json:"primary,omitempty"`
	Secondary  *UIAction `json:"secondary,omitempty"`
	OrderPanel bool      `json:"order_panel,omitempty"`
	Breakdown  bool      `json:"breakdown,omitempty"`
	Dispute    bool      `json:"dispute,omitempty"`
	Review     bool      `json:"review,omitempty"`
	Headings   bool      `json:"headings,omitempty"`
}

// UIAction configures one action button.
type UIAction struct {
	Transition TransitionID `json:"transition"`
	Label      string       `json:"label,omitempty"`
	Confirm    bool         `json:"confirm,omitempty"`
}
