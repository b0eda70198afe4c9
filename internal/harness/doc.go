// Package harness runs transaction-page conformance scenarios.
//
// A scenario is a transaction fixture viewed by one role, optionally
// driven through a session by a list of steps, with expectations on the
// derived page, the activity feed and the listing's order intent.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: booking_provider_accepts
//	description: "Provider accepts a preauthorized booking"
//	role: provider
//	transaction:
//	  id: tx-1
//	  process_name: default-booking
//	  customer: { id: customer-1 }
//	  provider: { id: provider-1 }
//	  listing: { id: listing-1 }
//	  transitions:
//	    - { transition: transition/request-payment, by: customer, at: 2024-03-01T12:00:00Z }
//	    - { transition: transition/confirm-payment, by: customer, at: 2024-03-01T12:01:00Z }
//	messages:
//	  - { id: msg-1, sender_id: customer-1, content: "hi", created_at: 2024-03-01T12:02:00Z }
//	steps:
//	  - invoke: primary
//	expect:
//	  state: state/accepted
//	  primary: ""
//	  feed:
//	    - transition transition/confirm-payment
//	    - message msg-1
//	    - transition transition/accept
//
// # Steps
//
// Without steps the page is derived directly from the fixture and the
// optional local state. With steps the fixture is saved to an in-memory
// store, a session is opened on a local backend and each step runs
// through it:
//
//   - perform: apply a transition as the viewing role
//   - invoke: press the primary or secondary button
//   - review: submit a review for the open slot
//   - dispute: open a dispute with a reason
//   - message: send a message
//
// A step that should fail names its error code in expect_error; see
// ErrorCode for the codes.
//
// # Deterministic Testing
//
// Steps use a deterministic clock starting one minute after the newest
// fixture timestamp and sequential ids, so snapshots are identical across
// runs. RunWithGolden compares the canonical JSON snapshot against
// testdata/golden/<name>.golden.
package harness
