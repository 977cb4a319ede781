package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one destructive-action attempt.
// Keep it compact and schema-stable.
type AuditEntry struct {
	ID       string
	At       time.Time
	Action   string // semantic action tag, e.g. "revoke-keys"
	FormID   string
	URL      string
	Status   int // HTTP status of the background request, 0 when never sent
	OK       bool
	Error    string
	TookMS   int64
	MetaJSON string
}
