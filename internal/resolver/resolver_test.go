package resolver

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/model"
)

func m(owner, name string, annotations ...string) *ir.Method {
	return &ir.Method{Owner: owner, Name: name, Annotations: annotations, Pos: ir.Pos{File: "t.cue", Line: 1}}
}

func class(name, extends string, implements []string, methods ...*ir.Method) *ir.Type {
	return &ir.Type{Name: name, Kind: ir.KindClass, Extends: extends, Implements: implements, Methods: methods}
}

func iface(name string, extends []string, methods ...*ir.Method) *ir.Type {
	return &ir.Type{Name: name, Kind: ir.KindInterface, Implements: extends, Methods: methods}
}

func newResolver(t *testing.T, types ...*ir.Type) (*Resolver, *model.Hierarchy, *diag.Collector) {
	t.Helper()
	h := model.New(&ir.Program{Types: types}, model.DefaultMarkerNames())
	c := diag.NewCollector()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(h, c, Options{Logger: logger}), h, c
}

func method(t *testing.T, h *model.Hierarchy, id string) *ir.Method {
	t.Helper()
	meth, ok := h.Method(id)
	require.True(t, ok, "method %s", id)
	return meth
}

func kinds(c *diag.Collector) []diag.Kind {
	var out []diag.Kind
	for _, d := range c.Diagnostics() {
		out = append(out, d.Kind)
	}
	return out
}

func TestDeclaredEffect_ExplicitMarkersWin(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "MayAlloc")),
		class("Sub", "Super", nil, m("Sub", "m", "NoAlloc")),
	)
	assert.Equal(t, effect.NoAlloc, r.DeclaredEffect(method(t, h, "Sub.m()")))
	assert.Equal(t, effect.MayAlloc, r.DeclaredEffect(method(t, h, "Super.m()")))
	assert.Zero(t, c.Len(), "DeclaredEffect never reports")
}

func TestDeclaredEffect_DefaultIsMayAlloc(t *testing.T) {
	r, h, _ := newResolver(t, class("A", "", nil, m("A", "f")))
	assert.Equal(t, effect.MayAlloc, r.DeclaredEffect(method(t, h, "A.f()")))

	_, ok := r.InheritedEffectRange(method(t, h, "A.f()"), false)
	assert.False(t, ok, "no ancestors, no range")
}

func TestDeclaredEffect_InheritsNoAlloc(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		class("Sub", "Super", nil, m("Sub", "m")),
	)
	sub := method(t, h, "Sub.m()")
	assert.Equal(t, effect.NoAlloc, r.VisitDeclaration(sub))

	rng, ok := r.InheritedEffectRange(sub, false)
	require.True(t, ok)
	assert.Equal(t, effect.Range{Min: effect.NoAlloc, Max: effect.NoAlloc}, rng)
	assert.Zero(t, c.Len())
}

func TestDeclaredEffect_InheritsMayAlloc(t *testing.T) {
	r, h, c := newResolver(t,
		iface("I", nil, m("I", "m", "MayAlloc")),
		class("Impl", "", []string{"I"}, m("Impl", "m")),
	)
	impl := method(t, h, "Impl.m()")
	assert.Equal(t, effect.MayAlloc, r.VisitDeclaration(impl))

	rng, ok := r.InheritedEffectRange(impl, false)
	require.True(t, ok)
	assert.Equal(t, effect.Range{Min: effect.MayAlloc, Max: effect.MayAlloc}, rng)
	assert.Zero(t, c.Len())
}

func TestDeclaredEffect_TransitiveThroughUnmarkedAncestor(t *testing.T) {
	r, h, _ := newResolver(t,
		iface("I", nil, m("I", "m", "NoAlloc")),
		class("A", "", []string{"I"}, m("A", "m")),
		class("B", "A", nil),
		class("C", "B", nil, m("C", "m")),
	)
	assert.Equal(t, effect.NoAlloc, r.DeclaredEffect(method(t, h, "A.m()")))
	assert.Equal(t, effect.NoAlloc, r.DeclaredEffect(method(t, h, "C.m()")), "skips B which does not declare m")
}

// Super.m is NoAlloc and Sub overrides it with an explicit MayAlloc.
func TestVisitDeclaration_InvalidOverride(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		class("Sub", "Super", nil, m("Sub", "m", "MayAlloc")),
	)
	e := r.VisitDeclaration(method(t, h, "Sub.m()"))
	assert.Equal(t, effect.MayAlloc, e, "explicit marker still wins")

	require.Equal(t, []diag.Kind{diag.InvalidOverride}, kinds(c))
	d := c.Diagnostics()[0]
	assert.Equal(t, "Sub.m()", d.Method)
	assert.Equal(t, "Super.m()", d.Args[diag.ArgAncestor])
	assert.Equal(t, "Super", d.Args[diag.ArgAncestorType])
	assert.Equal(t, diag.SeverityFailure, d.Severity)
}

func TestVisitDeclaration_NarrowingIsLegal(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "MayAlloc")),
		class("Sub", "Super", nil, m("Sub", "m", "NoAlloc")),
	)
	assert.Equal(t, effect.NoAlloc, r.VisitDeclaration(method(t, h, "Sub.m()")))
	assert.Zero(t, c.Len())
}

// Sub.m is unmarked; Super.m is NoAlloc and the interface's m is MayAlloc.
func TestVisitDeclaration_AmbiguousInheritance(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		iface("Iface", nil, m("Iface", "m", "MayAlloc")),
		class("Sub", "Super", []string{"Iface"}, m("Sub", "m")),
	)
	sub := method(t, h, "Sub.m()")
	assert.Equal(t, effect.NoAlloc, r.VisitDeclaration(sub), "meet of the conflicting range")

	require.Equal(t, []diag.Kind{diag.AmbiguousInheritance}, kinds(c))
	d := c.Diagnostics()[0]
	assert.Equal(t, diag.SeverityWarning, d.Severity)
	assert.Equal(t, "Iface.m()", d.Args[diag.ArgAllocation])
	assert.Equal(t, "Super.m()", d.Args[diag.ArgSafe])

	rng, ok := r.InheritedEffectRange(sub, false)
	require.True(t, ok)
	assert.Equal(t, effect.Range{Min: effect.NoAlloc, Max: effect.MayAlloc}, rng)
	assert.Equal(t, 1, c.Len(), "range queries without warnings report nothing")
}

func TestVisitDeclaration_ExplicitWideningWithMixedAncestors(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		iface("Iface", nil, m("Iface", "m", "MayAlloc")),
		class("Sub", "Super", []string{"Iface"}, m("Sub", "m", "MayAlloc")),
	)
	r.VisitDeclaration(method(t, h, "Sub.m()"))
	assert.Equal(t, []diag.Kind{diag.InvalidOverride, diag.AmbiguousInheritance}, kinds(c))
}

func TestVisitDeclaration_InvalidOverridePerSafeAncestor(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		iface("Iface", nil, m("Iface", "m", "NoAlloc")),
		class("Sub", "Super", []string{"Iface"}, m("Sub", "m", "MayAlloc")),
	)
	r.VisitDeclaration(method(t, h, "Sub.m()"))
	assert.Equal(t, []diag.Kind{diag.InvalidOverride, diag.InvalidOverride}, kinds(c))
}

// A method carrying both markers reports one conflict and resolves to NoAlloc.
func TestVisitDeclaration_AnnotationConflict(t *testing.T) {
	r, h, c := newResolver(t,
		class("A", "", nil, m("A", "f", "NoAlloc", "MayAlloc")),
	)
	f := method(t, h, "A.f()")
	assert.Equal(t, effect.NoAlloc, r.VisitDeclaration(f))
	assert.Equal(t, effect.NoAlloc, r.DeclaredEffect(f))
	assert.Equal(t, []diag.Kind{diag.AnnotationConflict}, kinds(c))
}

func TestVisitDeclaration_ConflictingMarkersDoNotWiden(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		class("Sub", "Super", nil, m("Sub", "m", "NoAlloc", "MayAlloc")),
	)
	r.VisitDeclaration(method(t, h, "Sub.m()"))
	assert.Equal(t, []diag.Kind{diag.AnnotationConflict}, kinds(c), "both markers is not an explicit widening")
}

func TestTransitiveResolutionDoesNotWarn(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		iface("Iface", nil, m("Iface", "m", "MayAlloc")),
		class("Mid", "Super", []string{"Iface"}, m("Mid", "m")),
		class("Leaf", "Mid", nil, m("Leaf", "m")),
	)
	assert.Equal(t, effect.NoAlloc, r.VisitDeclaration(method(t, h, "Leaf.m()")))
	assert.Zero(t, c.Len(), "Mid's ambiguity is reported only when Mid.m is visited")

	r.VisitDeclaration(method(t, h, "Mid.m()"))
	assert.Equal(t, []diag.Kind{diag.AmbiguousInheritance}, kinds(c))
}

func TestConstructorsAndStaticsDoNotInherit(t *testing.T) {
	superCtor := m("Super", ir.ConstructorName, "NoAlloc")
	superStatic := m("Super", "s", "NoAlloc")
	superStatic.Static = true
	subStatic := m("Sub", "s", "MayAlloc")
	subStatic.Static = true

	r, h, c := newResolver(t,
		class("Super", "", nil, superCtor, superStatic),
		class("Sub", "Super", nil, m("Sub", ir.ConstructorName), subStatic),
	)
	assert.Equal(t, effect.MayAlloc, r.VisitDeclaration(method(t, h, "Sub.<init>()")))
	assert.Equal(t, effect.MayAlloc, r.VisitDeclaration(method(t, h, "Sub.s()")))
	assert.Zero(t, c.Len())
}

func TestCyclicHierarchyFailsSoft(t *testing.T) {
	r, h, _ := newResolver(t,
		class("A", "B", nil, m("A", "m")),
		class("B", "A", nil, m("B", "m")),
	)
	assert.Equal(t, effect.MayAlloc, r.DeclaredEffect(method(t, h, "A.m()")))
}

func TestDeclaredEffect_CycleGuard(t *testing.T) {
	r, h, _ := newResolver(t,
		iface("I", []string{"J"}, m("I", "m")),
		iface("J", []string{"I"}, m("J", "m")),
	)
	im := method(t, h, "I.m()")

	r.active[im] = true
	_, err := r.declaredEffect(im)
	assert.True(t, IsCycleError(err))
	delete(r.active, im)

	res, err := r.Explain(im)
	require.NoError(t, err, "the cycle is broken one level down")
	assert.Equal(t, effect.MayAlloc, res.Effect)
}

func TestExplain(t *testing.T) {
	r, h, c := newResolver(t,
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		iface("Iface", nil, m("Iface", "m", "MayAlloc")),
		class("Sub", "Super", []string{"Iface"}, m("Sub", "m")),
	)
	res, err := r.Explain(method(t, h, "Sub.m()"))
	require.NoError(t, err)
	assert.Equal(t, "Sub.m()", res.Method)
	assert.Equal(t, effect.NoAlloc, res.Effect)
	assert.False(t, res.Explicit)
	assert.True(t, res.HasRange)
	assert.True(t, res.Range.Conflicting())
	require.Len(t, res.Overrides, 2)
	assert.Equal(t, Override{Method: res.Overrides[0].Method, ID: "Super.m()", Type: "Super", Via: ViaSuperclass, Effect: effect.NoAlloc}, res.Overrides[0])
	assert.Equal(t, ViaInterface, res.Overrides[1].Via)
	assert.Zero(t, c.Len(), "Explain never reports")
}

func TestExplain_UnknownOwner(t *testing.T) {
	r, _, _ := newResolver(t)
	orphan := m("Ghost", "f", "NoAlloc")

	res, err := r.Explain(orphan)
	require.Error(t, err)
	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownMethod, re.Code)
	assert.Equal(t, effect.NoAlloc, res.Effect, "explicit marker still reported")
	assert.True(t, res.Explicit)

	assert.Equal(t, effect.NoAlloc, r.DeclaredEffect(orphan))
	assert.Equal(t, effect.MayAlloc, r.DeclaredEffect(m("Ghost", "g")))
}

func TestIsCycleError(t *testing.T) {
	assert.True(t, IsCycleError(&ResolutionError{Code: ErrCodeCycle}))
	assert.False(t, IsCycleError(&ResolutionError{Code: ErrCodeUnknownMethod}))
	assert.False(t, IsCycleError(assert.AnError))
}

func TestTraceLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	types := []*ir.Type{
		class("Super", "", nil, m("Super", "m", "NoAlloc")),
		class("Sub", "Super", nil, m("Sub", "m")),
	}
	h := model.New(&ir.Program{Types: types}, model.DefaultMarkerNames())
	sub, _ := h.Method("Sub.m()")

	quiet := New(h, nil, Options{Logger: logger})
	quiet.VisitDeclaration(sub)
	assert.Empty(t, buf.String(), "no trace output unless enabled")

	loud := New(h, nil, Options{Logger: logger, Trace: true})
	assert.Equal(t, quiet.DeclaredEffect(sub), loud.VisitDeclaration(sub), "tracing does not change outcomes")
	assert.Contains(t, buf.String(), "inherited effect range")
	assert.Contains(t, buf.String(), "min=NoAlloc")
}
