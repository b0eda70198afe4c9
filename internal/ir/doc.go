// Package ir provides the data model shared by every txflow package.
//
// This package contains type definitions and the canonical JSON encoder only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Transactions are read-only projections of server state; nothing in ir mutates them
//   - Money is carried as integer subunits, never floats
//   - All JSON and YAML tags use snake_case
//   - Transition order is (At, log position), never wall-clock arrival
package ir
