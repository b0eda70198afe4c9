// Package engine derives everything a transaction page shows from a
// transaction's transition log and its process definition.
//
// All derivations are pure functions of (Transaction, Role, LocalState):
//   - CurrentState replays the log to the state after the latest transition
//   - ResolveActions builds the primary/secondary action descriptors
//   - ResolveReviewDispute decides dispute visibility and the open review slot
//   - Derive combines them into StateData
//
// Nothing here caches, logs or performs I/O. Side effects reach the
// outside world only through the Performer a caller passes in, and only
// when an ActionDescriptor is invoked.
//
// CRITICAL PATTERNS:
//   - State is always replayed from the log, never read from a cached field
//   - The registry is passed in explicitly; there is no global lookup
//   - At most one transition is in flight per transaction (LocalState)
package engine
