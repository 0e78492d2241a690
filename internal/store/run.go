package store

import (
	"errors"

	"github.com/roach88/noalloc/internal/diag"
)

// ErrRunNotFound is returned when no run matches an ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded check.
type Run struct {
	// ID is a UUIDv7, assigned by RecordRun when empty.
	ID string `json:"id"`

	// Seq is the run's position in the history, assigned by RecordRun.
	Seq int64 `json:"seq"`

	// ProgramHash is ir.ProgramHash of the checked program. Runs with the
	// same hash checked the same input.
	ProgramHash    string   `json:"program_hash"`
	IRVersion      string   `json:"ir_version"`
	CheckerVersion string   `json:"checker_version"`
	Sources        []string `json:"sources,omitempty"`

	Failures int `json:"failures"`
	Warnings int `json:"warnings"`
}

// Passed reports whether the run had no failures.
func (r Run) Passed() bool {
	return r.Failures == 0
}

// RunDiff compares the diagnostics of two runs by content ID.
type RunDiff struct {
	From string `json:"from"`
	To   string `json:"to"`

	// Added are diagnostics of To that From did not report.
	Added []diag.Diagnostic `json:"added"`

	// Resolved are diagnostics of From that To no longer reports.
	Resolved []diag.Diagnostic `json:"resolved"`
}

// Empty reports whether both runs reported the same findings.
func (d RunDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Resolved) == 0
}
