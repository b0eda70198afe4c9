// Package store provides SQLite-backed storage for transactions and a
// development Backend that serves them to sessions.
//
// The store keeps:
//   - Transactions: the entity header (process, parties, listing, line items)
//   - Transitions: the append-only log, ordered by seq per transaction
//   - Messages: free-text messages, paged newest first
//   - Reviews: at most one per author per transaction
//
// # Ordering
//
// Queries are deterministic. Transitions are read ORDER BY seq ASC;
// messages and reviews ORDER BY created_at, id COLLATE BINARY ASC. Timestamps
// are stored as unix milliseconds.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Protected data is stored as canonical JSON (see internal/ir/canonical.go)
// so the same entity always serializes to the same bytes.
package store
