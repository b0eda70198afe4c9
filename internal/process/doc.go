// Package process holds the process definition registry.
//
// Definitions are authored in CUE (see defs/), compiled by the compiler
// package and indexed here into Definition values whose query methods
// answer every question the engine asks about a process: where a
// transition lands, whether it refunds, whether it is shown in the
// activity feed, which review slot it fills, and which actions the UI
// table offers per (state, role).
//
// A Registry is built once at startup and passed explicitly to every
// derivation call. There is no package-level registry.
package process
