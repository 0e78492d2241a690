package harness

import (
	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Diagnostics are the findings as read back from the store, in report
	// order.
	Diagnostics []diag.Diagnostic `json:"diagnostics"`

	// LoadErrors holds formatted loader errors. When non-empty the check
	// did not run.
	LoadErrors []string `json:"load_errors,omitempty"`

	// LoadCodes are the error codes of LoadErrors, where known.
	LoadCodes []string `json:"-"`

	// Run is the stored run; zero when loading failed.
	Run store.Run `json:"run"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Diagnostics: []diag.Diagnostic{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Loaded reports whether the scenario's inputs loaded and were checked.
func (r *Result) Loaded() bool {
	return len(r.LoadErrors) == 0
}
