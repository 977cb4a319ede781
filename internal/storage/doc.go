// Package storage persists the action engine's safety state.
//
// It currently supports:
//   - Audit log appends (destructive actions attempted from the panel client)
//   - Dedup state guarding against double-submits, surviving restarts
package storage
