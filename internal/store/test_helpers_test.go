package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testDiagnostics returns completed diagnostics as a check would produce
// them: one failure and one warning.
func testDiagnostics() []diag.Diagnostic {
	c := diag.NewCollector()
	c.Report(diag.Diagnostic{
		Kind:   diag.InvalidCall,
		Method: "A.m()",
		Args: map[string]string{
			diag.ArgMethod:       "A.m()",
			diag.ArgTarget:       "new Integer",
			diag.ArgTargetEffect: "MayAlloc",
			diag.ArgCallerEffect: "NoAlloc",
		},
		Pos: ir.Pos{File: "A.java", Line: 4, Column: 9},
	})
	c.Report(diag.Diagnostic{
		Kind:   diag.AmbiguousInheritance,
		Method: "B.m()",
		Args: map[string]string{
			diag.ArgMethod:     "B.m()",
			diag.ArgAllocation: "I.m()",
			diag.ArgSafe:       "S.m()",
		},
		Pos: ir.Pos{File: "B.java", Line: 2, Column: 5},
	})
	return c.Diagnostics()
}
