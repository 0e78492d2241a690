// Package resolver computes the effective allocation effect of each method.
//
// An explicit marker always wins. An unmarked method takes the meet of the
// effects of the methods it overrides, or MayAlloc if it overrides nothing.
// Walking the override graph is also where override conflicts are found:
// an explicit MayAlloc override of a NoAlloc ancestor (InvalidOverride) and
// an unmarked override with disagreeing ancestors (AmbiguousInheritance).
// Those are reported only when a declaration is visited, never while the
// same chain is re-walked to resolve some other method.
package resolver

import (
	"io"
	"log/slog"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/ir"
)

// Hierarchy is the program-model view the resolver needs.
type Hierarchy interface {
	Owner(m *ir.Method) (*ir.Type, bool)
	Superclass(t *ir.Type) (*ir.Type, bool)
	DirectSupertypes(t *ir.Type) []*ir.Type
	OverriddenMethod(m *ir.Method, ancestor *ir.Type) (*ir.Method, bool)
	Markers(m *ir.Method) effect.Markers
}

// Options configures a Resolver.
type Options struct {
	// Logger receives trace and fallback records. Nil discards them.
	Logger *slog.Logger

	// Trace logs every lattice decision at Debug level.
	Trace bool
}

// Resolver resolves effects over one immutable hierarchy. Results are
// memoised for the lifetime of the Resolver, so use one per pass.
//
// A Resolver is not safe for concurrent use.
type Resolver struct {
	h     Hierarchy
	sink  diag.Sink
	log   *slog.Logger
	trace bool

	memo   map[*ir.Method]effect.Effect
	active map[*ir.Method]bool
}

// New returns a Resolver reporting conflicts to sink.
func New(h Hierarchy, sink diag.Sink, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = diag.Discard
	}
	return &Resolver{
		h:      h,
		sink:   sink,
		log:    logger,
		trace:  opts.Trace,
		memo:   make(map[*ir.Method]effect.Effect),
		active: make(map[*ir.Method]bool),
	}
}

// Via says how an overridden method was reached.
type Via string

const (
	ViaSuperclass Via = "superclass"
	ViaInterface  Via = "interface"
)

// Override is one ancestor method found while walking the override graph.
type Override struct {
	Method *ir.Method    `json:"-"`
	ID     string        `json:"method"`
	Type   string        `json:"type"`
	Via    Via           `json:"via"`
	Effect effect.Effect `json:"effect"`
}

// inheritance is the outcome of one walk over a method's ancestors.
type inheritance struct {
	overrides []Override
	// alloc and safe are the last MayAlloc and NoAlloc overrides seen.
	alloc, safe *Override
}

func (in inheritance) effectRange() (effect.Range, bool) {
	var lo, hi *effect.Effect
	noAlloc, mayAlloc := effect.NoAlloc, effect.MayAlloc
	switch {
	case in.safe != nil:
		lo = &noAlloc
	case in.alloc != nil:
		lo = &mayAlloc
	}
	switch {
	case in.alloc != nil:
		hi = &mayAlloc
	case in.safe != nil:
		hi = &noAlloc
	}
	return effect.NewRange(lo, hi)
}

// DeclaredEffect returns the effective effect of m. It never fails: a
// method whose resolution fails is treated as MayAlloc.
func (r *Resolver) DeclaredEffect(m *ir.Method) effect.Effect {
	e, err := r.declaredEffect(m)
	if err != nil {
		r.log.Warn("effect resolution failed, assuming MayAlloc",
			"method", m.ID(),
			"error", err)
	}
	return e
}

func (r *Resolver) declaredEffect(m *ir.Method) (effect.Effect, error) {
	if e, ok := r.memo[m]; ok {
		return e, nil
	}

	markers := r.h.Markers(m)
	if e, ok := markers.Explicit(); ok {
		r.memo[m] = e
		r.tracef("declared effect", "method", m.ID(), "effect", e, "explicit", true)
		return e, nil
	}

	if r.active[m] {
		return effect.MayAlloc, &ResolutionError{
			Code:    ErrCodeCycle,
			Method:  m.ID(),
			Message: "effect depends on itself through its override chain",
		}
	}
	r.active[m] = true
	defer delete(r.active, m)

	in, err := r.inherit(m, false)
	if err != nil {
		return effect.MayAlloc, err
	}
	e := effect.MayAlloc
	if rng, ok := in.effectRange(); ok {
		e = rng.Default()
	}
	r.memo[m] = e
	r.tracef("declared effect", "method", m.ID(), "effect", e, "explicit", false)
	return e, nil
}

// InheritedEffectRange returns the span of effects demanded by the methods
// m overrides, or false if it overrides nothing. With issueWarnings set,
// override conflicts are reported to the sink.
func (r *Resolver) InheritedEffectRange(m *ir.Method, issueWarnings bool) (effect.Range, bool) {
	in, err := r.inherit(m, issueWarnings)
	if err != nil {
		r.log.Warn("inherited effect range unavailable",
			"method", m.ID(),
			"error", err)
		return effect.Range{}, false
	}
	return in.effectRange()
}

// inherit walks the superclass chain and then the direct supertypes of m's
// declaring type, collecting every method m overrides.
func (r *Resolver) inherit(m *ir.Method, issueWarnings bool) (inheritance, error) {
	var in inheritance

	owner, ok := r.h.Owner(m)
	if !ok {
		return in, &ResolutionError{
			Code:    ErrCodeUnknownMethod,
			Method:  m.ID(),
			Message: "declaring type " + m.Owner + " is not part of the program",
		}
	}

	widening := r.h.Markers(m).OnlyMayAlloc()

	visit := func(ancestor *ir.Type, via Via) {
		overridden, ok := r.h.OverriddenMethod(m, ancestor)
		if !ok {
			return
		}
		ov := Override{
			Method: overridden,
			ID:     overridden.ID(),
			Type:   ancestor.Name,
			Via:    via,
			Effect: r.DeclaredEffect(overridden),
		}
		in.overrides = append(in.overrides, ov)
		if ov.Effect == effect.NoAlloc {
			in.safe = &ov
			if widening && issueWarnings {
				r.sink.Report(diag.Diagnostic{
					Kind:   diag.InvalidOverride,
					Method: m.ID(),
					Args: map[string]string{
						diag.ArgMethod:       m.ID(),
						diag.ArgAncestor:     ov.ID,
						diag.ArgAncestorType: ancestor.Name,
					},
					Pos: m.Pos,
				})
			}
			return
		}
		in.alloc = &ov
	}

	seen := map[string]bool{owner.Name: true}
	for super, ok := r.h.Superclass(owner); ok && !seen[super.Name]; super, ok = r.h.Superclass(super) {
		seen[super.Name] = true
		visit(super, ViaSuperclass)
	}
	for _, st := range r.h.DirectSupertypes(owner) {
		visit(st, ViaInterface)
	}

	if in.alloc != nil && in.safe != nil && issueWarnings {
		r.sink.Report(diag.Diagnostic{
			Kind:   diag.AmbiguousInheritance,
			Method: m.ID(),
			Args: map[string]string{
				diag.ArgMethod:     m.ID(),
				diag.ArgAllocation: in.alloc.ID,
				diag.ArgSafe:       in.safe.ID,
			},
			Pos: m.Pos,
		})
	}

	if r.trace {
		if rng, ok := in.effectRange(); ok {
			r.log.Debug("inherited effect range",
				"method", m.ID(),
				"min", rng.Min,
				"max", rng.Max,
				"overrides", len(in.overrides))
		} else {
			r.log.Debug("inherited effect range", "method", m.ID(), "overrides", 0)
		}
	}
	return in, nil
}

// VisitDeclaration resolves m at its own declaration site: it reports a
// marker conflict, runs override-conflict detection with warnings enabled,
// and returns the effect to check m's body under.
func (r *Resolver) VisitDeclaration(m *ir.Method) effect.Effect {
	markers := r.h.Markers(m)
	if markers.Conflicting() {
		r.sink.Report(diag.Diagnostic{
			Kind:   diag.AnnotationConflict,
			Method: m.ID(),
			Args:   map[string]string{diag.ArgMethod: m.ID()},
			Pos:    m.Pos,
		})
	}
	if _, err := r.inherit(m, true); err != nil {
		r.log.Warn("override check skipped",
			"method", m.ID(),
			"error", err)
	}
	return r.DeclaredEffect(m)
}

func (r *Resolver) tracef(msg string, args ...any) {
	if r.trace {
		r.log.Debug(msg, args...)
	}
}
