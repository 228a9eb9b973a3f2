// Package recovery decides whether a store directory was left behind by an
// unclean shutdown and, at daemon startup, repairs it before the store is
// opened for traffic.
//
// The Detector is a stateless, read-only inspector: it answers "does this
// store need recovery?" purely from filesystem evidence (the store marker
// file plus the transaction-log tail) and never mutates anything, so it is
// safe to call repeatedly and concurrently. It reads through a small
// FileSystem abstraction so tests can simulate absent, clean, and crashed
// stores without touching disk.
//
// PreflightTask wraps the detector into the one-shot check-and-repair step
// the daemon runs before serving: no store or a clean store is silent
// success; a crashed store triggers a single warning and an engine
// open/close cycle, after which the detector must agree the store is clean.
package recovery
