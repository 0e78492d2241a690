package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/store"
	"github.com/roach88/noalloc/internal/testutil"
)

const scenarioDir = "../../testdata/scenarios"

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestScenarios(t *testing.T) {
	for _, name := range []string{
		"invalid_calls",
		"override_conflicts",
		"suppression",
		"custom_markers",
		"nested_classes",
	} {
		t.Run(name, func(t *testing.T) {
			scenario := loadScenario(t, name)
			assert.Equal(t, name, scenario.Name)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.True(t, result.Loaded())
			assert.Equal(t, name+"-0001", result.Run.ID)
			assert.Equal(t, int64(1), result.Run.Seq, "fresh store per run")
		})
	}
}

func TestScenario_LoadError(t *testing.T) {
	result, err := Run(loadScenario(t, "inheritance_cycle"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.False(t, result.Loaded())
	assert.Contains(t, result.LoadCodes, "E105")
	assert.Empty(t, result.Run.ID, "nothing is recorded when loading fails")
}

func TestRun_UnexpectedLoadErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken
description: "unexpected cycle"
sources:
  C.cue: |
    class: A: extends: "A"
assertions:
  - type: no_diagnostics
`), "")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "load failed")
	assert.Contains(t, result.Errors[1], "requires a loaded program")
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "every assertion is wrong"
sources:
  W.cue: |
    class: W: methods: "m()": {annotations: ["NoAlloc"], body: [{new: "Integer"}]}
assertions:
  - type: no_diagnostics
  - type: diagnostic_count
    count: 2
  - type: diagnostic_at
    file: W.cue
    line: 9
  - type: effect
    method: W.m()
    effect: MayAlloc
  - type: effect
    method: W.missing()
    effect: NoAlloc
  - type: load_error
    code: E105
`), "")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "Assertion failed: no_diagnostics")
	assert.Contains(t, result.Errors[0], "W.cue:1:")
	assert.Contains(t, result.Errors[1], "Expected: 2 diagnostics")
	assert.Contains(t, result.Errors[1], "Actual: 1 diagnostics")
	assert.Contains(t, result.Errors[2], "diagnostic at W.cue:9")
	assert.Contains(t, result.Errors[3], "W.m() resolves to MayAlloc")
	assert.Contains(t, result.Errors[4], "no such method")
	assert.Contains(t, result.Errors[5], "load succeeded")
}

func TestRun_DiagnosticsComeFromStore(t *testing.T) {
	result, err := Run(loadScenario(t, "invalid_calls"))
	require.NoError(t, err)

	require.Len(t, result.Diagnostics, 3)
	for i, d := range result.Diagnostics {
		assert.Equal(t, int64(i+1), d.Seq)
		assert.Equal(t, diag.InvalidCall, d.Kind)
		assert.Len(t, d.ID, 64, "content-addressed id survives the round trip")
	}
	assert.Equal(t, 3, result.Run.Failures)
	assert.Equal(t, []string{"Buffer.cue"}, result.Run.Sources)
}

func TestRun_SameInputSameIdentity(t *testing.T) {
	first, err := Run(loadScenario(t, "override_conflicts"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "override_conflicts"))
	require.NoError(t, err)

	assert.Equal(t, first.Run.ProgramHash, second.Run.ProgramHash)
	assert.Equal(t, "override_conflicts-0001", first.Run.ID)
	assert.Equal(t, first.Run.ID, second.Run.ID, "scenario run IDs are deterministic")
	require.Equal(t, len(first.Diagnostics), len(second.Diagnostics))
	for i := range first.Diagnostics {
		assert.Equal(t, first.Diagnostics[i].ID, second.Diagnostics[i].ID)
	}
}

func TestHarness_SharedHistory(t *testing.T) {
	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	defer st.Close()
	st.SetIDGenerator(testutil.NewSequentialIDs("shared"))

	h := New(st, nil)
	ctx := context.Background()
	first, err := h.Run(ctx, loadScenario(t, "override_conflicts"))
	require.NoError(t, err)
	second, err := h.Run(ctx, loadScenario(t, "override_conflicts"))
	require.NoError(t, err)

	assert.Equal(t, "shared-0001", first.Run.ID)
	assert.Equal(t, "shared-0002", second.Run.ID)
	assert.Equal(t, int64(2), second.Run.Seq)
}
