package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/noalloc/internal/checker"
	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/model"
	"github.com/roach88/noalloc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type        string            // Assertion type for categorization
	Expected    string            // Human-readable expected outcome
	Actual      string            // Human-readable actual outcome
	Diagnostics []diag.Diagnostic // All diagnostics for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Diagnostics) > 0 {
		fmt.Fprintf(&buf, "\nDiagnostics:\n")
		for i, d := range e.Diagnostics {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, d)
		}
	}

	return buf.String()
}

// AssertionContext provides what assertions evaluate against beyond the
// result itself. Hierarchy and Checker are nil when loading failed.
type AssertionContext struct {
	Ctx       context.Context
	Store     *store.Store
	Hierarchy *model.Hierarchy
	Checker   *checker.Checker
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLoadError:
			err = assertLoadError(result, assertion)
		case AssertDiagnosticCount, AssertDiagnosticAt, AssertNoDiagnostics, AssertEffect:
			if !result.Loaded() {
				err = fmt.Errorf("assertion[%d]: %s requires a loaded program", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertDiagnosticCount:
				err = assertDiagnosticCount(result.Diagnostics, assertion)
			case AssertDiagnosticAt:
				err = assertDiagnosticAt(result.Diagnostics, assertion)
			case AssertNoDiagnostics:
				err = assertNoDiagnostics(result.Diagnostics)
			case AssertEffect:
				err = assertEffect(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// matchesKind reports whether d has the assertion's kind; an empty kind
// matches every diagnostic.
func matchesKind(d diag.Diagnostic, kind string) bool {
	if kind == "" {
		return true
	}
	k, err := diag.ParseKind(kind)
	return err == nil && d.Kind == k
}

func assertDiagnosticCount(diags []diag.Diagnostic, a Assertion) error {
	count := 0
	for _, d := range diags {
		if matchesKind(d, a.Kind) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	what := "diagnostics"
	if a.Kind != "" {
		what = a.Kind + " diagnostics"
	}
	return &AssertionError{
		Type:        AssertDiagnosticCount,
		Expected:    fmt.Sprintf("%d %s", a.Count, what),
		Actual:      fmt.Sprintf("%d %s", count, what),
		Diagnostics: diags,
	}
}

func assertDiagnosticAt(diags []diag.Diagnostic, a Assertion) error {
	for _, d := range diags {
		if d.Pos.File != a.File || d.Pos.Line != a.Line || !matchesKind(d, a.Kind) {
			continue
		}
		if a.Method != "" && d.Method != a.Method {
			continue
		}
		if a.Message != "" && !strings.Contains(d.Message, a.Message) {
			continue
		}
		return nil
	}

	expected := fmt.Sprintf("diagnostic at %s:%d", a.File, a.Line)
	if a.Kind != "" {
		expected += " of kind " + a.Kind
	}
	if a.Method != "" {
		expected += " in " + a.Method
	}
	if a.Message != "" {
		expected += fmt.Sprintf(" containing %q", a.Message)
	}
	return &AssertionError{
		Type:        AssertDiagnosticAt,
		Expected:    expected,
		Actual:      "not found",
		Diagnostics: diags,
	}
}

func assertNoDiagnostics(diags []diag.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	return &AssertionError{
		Type:        AssertNoDiagnostics,
		Expected:    "no diagnostics",
		Actual:      fmt.Sprintf("%d diagnostics", len(diags)),
		Diagnostics: diags,
	}
}

func assertEffect(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Hierarchy == nil || actx.Checker == nil {
		return fmt.Errorf("effect assertion for %s requires a checked program", a.Method)
	}
	want, err := effect.Parse(a.Effect)
	if err != nil {
		return err
	}
	m, ok := actx.Hierarchy.Method(a.Method)
	if !ok {
		return &AssertionError{
			Type:     AssertEffect,
			Expected: fmt.Sprintf("method %s", a.Method),
			Actual:   "no such method",
		}
	}
	res, err := actx.Checker.Resolver().Explain(m)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", a.Method, err)
	}
	if res.Effect != want {
		return &AssertionError{
			Type:     AssertEffect,
			Expected: fmt.Sprintf("%s resolves to %s", a.Method, want),
			Actual:   fmt.Sprintf("%s (markers %s)", res.Effect, res.Markers),
		}
	}
	return nil
}

func assertLoadError(result *Result, a Assertion) error {
	for _, code := range result.LoadCodes {
		if code == a.Code {
			return nil
		}
	}
	actual := "load succeeded"
	if !result.Loaded() {
		actual = strings.Join(result.LoadErrors, "; ")
	}
	return &AssertionError{
		Type:     AssertLoadError,
		Expected: "load error " + a.Code,
		Actual:   actual,
	}
}
