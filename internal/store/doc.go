// Package store provides SQLite-backed durable storage for checker runs.
//
// The store is an append-only history with:
//   - Runs: one record per check, keyed by the canonical program hash
//   - Diagnostics: the findings of a run, in report order
//
// # Ordering
//
// Runs are ordered by a logical seq INTEGER assigned at write time, never by
// timestamps. Every list query ends in "ORDER BY seq ASC, id ASC COLLATE
// BINARY", so two reads of the same history return identical results.
//
// # Identity
//
// Run IDs are UUIDv7. Diagnostic IDs are content-addressed (see
// ir.DiagnosticID): the same finding on the same input has the same ID in
// every run, which is what Diff compares.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
