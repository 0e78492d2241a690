package diag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noalloc/internal/ir"
)

func TestKindSeverity(t *testing.T) {
	assert.Equal(t, SeverityFailure, AnnotationConflict.Severity())
	assert.Equal(t, SeverityFailure, InvalidOverride.Severity())
	assert.Equal(t, SeverityWarning, AmbiguousInheritance.Severity())
	assert.Equal(t, SeverityFailure, InvalidCall.Severity())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("InvalidCall")
	require.NoError(t, err)
	assert.Equal(t, InvalidCall, k)

	k, err = ParseKind("override.effect.invalid")
	require.NoError(t, err)
	assert.Equal(t, InvalidOverride, k)

	_, err = ParseKind("nope")
	assert.Error(t, err)
}

func TestCollector_CompletesDiagnostics(t *testing.T) {
	c := NewCollector()
	c.Report(Diagnostic{
		Kind:   InvalidCall,
		Method: "A.f()",
		Args: map[string]string{
			ArgMethod:       "A.f()",
			ArgTarget:       "A.g()",
			ArgTargetEffect: "MayAlloc",
			ArgCallerEffect: "NoAlloc",
		},
		Pos: ir.Pos{File: "a.cue", Line: 7, Column: 3},
	})
	c.Report(Diagnostic{Kind: AmbiguousInheritance, Method: "B.m()", Pos: ir.Pos{File: "a.cue", Line: 2}})

	diags := c.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, int64(1), diags[0].Seq)
	assert.Equal(t, int64(2), diags[1].Seq)
	assert.Equal(t, SeverityFailure, diags[0].Severity)
	assert.Equal(t, "A.g() has effect MayAlloc, not allowed in NoAlloc method A.f()", diags[0].Message)
	assert.Len(t, diags[0].ID, 64)
	assert.Equal(t, "a.cue:7:3: failure: A.g() has effect MayAlloc, not allowed in NoAlloc method A.f() [InvalidCall]", diags[0].String())

	assert.Equal(t, 1, c.Count(SeverityWarning))
	assert.Equal(t, 1, c.CountKind(InvalidCall))
	assert.True(t, c.HasFailures())
}

func TestCollector_IDsIgnoreReportOrder(t *testing.T) {
	report := func(c *Collector, line int) {
		c.Report(Diagnostic{Kind: InvalidCall, Method: "A.f()", Pos: ir.Pos{File: "a", Line: line}})
	}
	first, second := NewCollector(), NewCollector()
	report(first, 1)
	report(first, 2)
	report(second, 2)
	report(second, 1)

	assert.Equal(t, first.Diagnostics()[0].ID, second.Diagnostics()[1].ID)
	assert.Equal(t, first.Diagnostics()[1].ID, second.Diagnostics()[0].ID)
}

func TestSorted(t *testing.T) {
	c := NewCollector()
	c.Report(Diagnostic{Kind: InvalidCall, Pos: ir.Pos{File: "b", Line: 1}})
	c.Report(Diagnostic{Kind: InvalidCall, Pos: ir.Pos{File: "a", Line: 9}})
	c.Report(Diagnostic{Kind: AnnotationConflict, Pos: ir.Pos{File: "a", Line: 9}})
	c.Report(Diagnostic{Kind: InvalidCall, Pos: ir.Pos{File: "a", Line: 2, Column: 4}})

	var got []string
	for _, d := range c.Sorted() {
		got = append(got, d.Pos.String()+" "+d.Kind.Name())
	}
	assert.Equal(t, []string{
		"a:2:4 InvalidCall",
		"a:9:0 AnnotationConflict",
		"a:9:0 InvalidCall",
		"b:1:0 InvalidCall",
	}, got)
	assert.Equal(t, "b", c.Diagnostics()[0].Pos.File, "report order untouched")
}

func TestMessage_Fallbacks(t *testing.T) {
	assert.Equal(t, "method ? is marked both NoAlloc and MayAlloc", Message(AnnotationConflict, nil))
	assert.Equal(t, "custom.kind: a=1, b=2", Message(Kind("custom.kind"), map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "custom.kind", Message(Kind("custom.kind"), nil))
}

func TestDiagnostic_MarshalJSON(t *testing.T) {
	d := Diagnostic{Kind: InvalidOverride, Severity: SeverityFailure, Message: "m", Pos: ir.Pos{File: "x", Line: 1, Column: 2}}
	data, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "override.effect.invalid", decoded["kind"])
	assert.Equal(t, "InvalidOverride", decoded["name"])
	assert.Equal(t, "failure", decoded["severity"])
}

func TestSinkFunc(t *testing.T) {
	var got []Kind
	var s Sink = SinkFunc(func(d Diagnostic) { got = append(got, d.Kind) })
	s.Report(Diagnostic{Kind: InvalidCall})
	Discard.Report(Diagnostic{Kind: InvalidCall})
	assert.Equal(t, []Kind{InvalidCall}, got)
}
