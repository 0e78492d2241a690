package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/noalloc/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its golden files.
const GoldenDir = "testdata/golden"

// Snapshot renders a result as canonical JSON followed by a newline.
//
// Each diagnostic is reduced to kind, severity, method, message and
// file:line; IDs and columns are left out.
func Snapshot(name string, result *Result) ([]byte, error) {
	diags := make(ir.Array, len(result.Diagnostics))
	for i, d := range result.Diagnostics {
		diags[i] = ir.Object{
			"kind":     ir.String(d.Kind.Name()),
			"severity": ir.String(d.Severity),
			"method":   ir.String(d.Method),
			"message":  ir.String(d.Message),
			"at":       ir.String(fmt.Sprintf("%s:%d", d.Pos.File, d.Pos.Line)),
		}
	}

	snapshot := ir.Object{
		"scenario_name": ir.String(name),
		"diagnostics":   diags,
		"failures":      ir.Int(result.Run.Failures),
		"warnings":      ir.Int(result.Run.Warnings),
	}
	if len(result.LoadErrors) > 0 {
		snapshot["load_errors"] = ir.Strings(result.LoadErrors)
	}

	data, err := ir.MarshalCanonical(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
