// Package checker validates every allocation site of a program against the
// effect of its enclosing method.
//
// The traversal is a single pre-order pass. The enclosing effect travels
// down the walk as an immutable Context value; nothing is pushed onto shared
// state. A class body starts a fresh MayAlloc context, so expressions outside
// any method (field and static initializers) are never flagged.
package checker

import (
	"io"
	"log/slog"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/model"
	"github.com/roach88/noalloc/internal/resolver"
)

// DefaultSuppressKey is the suppression key recognised on local
// declarations, alone or as "alloceffect:<kind>".
const DefaultSuppressKey = "alloceffect"

// Hierarchy is the program-model view the checker needs.
type Hierarchy interface {
	resolver.Hierarchy
	TopLevel() []*ir.Type
	Types() []*ir.Type
	Type(name string) (*ir.Type, bool)
	FindMethod(target string) (*ir.Method, bool)
}

// Options configures a pass.
type Options struct {
	Logger      *slog.Logger
	Trace       bool
	SuppressKey string
	Markers     model.MarkerNames
}

// Context is the traversal state visible at one node.
type Context struct {
	// Effect is the effect of the innermost enclosing method, or MayAlloc
	// directly inside a class body.
	Effect effect.Effect

	// Method is the innermost enclosing method; nil inside a class body.
	Method *ir.Method

	// Suppress holds the keys of a local declaration whose initializer is
	// the node being visited. It never reaches further down.
	Suppress []string
}

// classContext is the context of a class body.
func classContext() Context {
	return Context{Effect: effect.MayAlloc}
}

func (c Context) enter(m *ir.Method, e effect.Effect) Context {
	return Context{Effect: e, Method: m}
}

func (c Context) suppressing(keys []string) Context {
	c.Suppress = keys
	return c
}

func (c Context) nested() Context {
	c.Suppress = nil
	return c
}

func (c Context) methodID() string {
	if c.Method == nil {
		return ""
	}
	return c.Method.ID()
}

// Checker runs passes over one hierarchy.
type Checker struct {
	h        Hierarchy
	res      *resolver.Resolver
	sink     diag.Sink
	log      *slog.Logger
	trace    bool
	suppress string

	visited map[string]bool
}

// New returns a Checker reporting to sink.
func New(h Hierarchy, sink diag.Sink, opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = diag.Discard
	}
	key := opts.SuppressKey
	if key == "" {
		key = DefaultSuppressKey
	}
	return &Checker{
		h:        h,
		res:      resolver.New(h, sink, resolver.Options{Logger: logger, Trace: opts.Trace}),
		sink:     sink,
		log:      logger,
		trace:    opts.Trace,
		suppress: key,
		visited:  make(map[string]bool),
	}
}

// Resolver returns the resolver shared by the pass.
func (c *Checker) Resolver() *resolver.Resolver {
	return c.res
}

// Run builds a hierarchy for p, checks it, and returns the diagnostics.
func Run(p *ir.Program, opts Options) *diag.Collector {
	collector := diag.NewCollector()
	New(model.New(p, opts.Markers), collector, opts).Check()
	return collector
}

// Check visits every type once. Local types are visited where they are
// declared; a local type nothing refers to is visited after the top level.
func (c *Checker) Check() {
	for _, t := range c.h.TopLevel() {
		c.visitType(t)
	}
	for _, t := range c.h.Types() {
		if t.Local && !c.visited[t.Name] {
			c.visitType(t)
		}
	}
}

func (c *Checker) visitType(t *ir.Type) {
	if c.visited[t.Name] {
		return
	}
	c.visited[t.Name] = true

	ctx := classContext()
	c.tracef("push context", "type", t.Name, "effect", ctx.Effect)
	c.visitNodes(t.Initializers, ctx)
	for _, m := range t.Methods {
		c.visitMethod(m, ctx)
	}
	c.tracef("pop context", "type", t.Name)
}

func (c *Checker) visitMethod(m *ir.Method, outer Context) {
	ctx := outer.enter(m, c.res.VisitDeclaration(m))
	c.tracef("push context", "method", m.ID(), "effect", ctx.Effect)
	c.visitNodes(m.Body, ctx)
	c.tracef("pop context", "method", m.ID())
}

func (c *Checker) visitNodes(nodes []ir.Node, ctx Context) {
	for _, n := range nodes {
		c.visitNode(n, ctx)
	}
}

func (c *Checker) visitNode(n ir.Node, ctx Context) {
	switch {
	case n.IsAllocationSite():
		label, target := c.site(n)
		c.checkSite(n, ctx, label, target)
	case n.Kind == ir.NodeLocal:
		c.visitNodes(n.Children, ctx.suppressing(n.Suppress))
		return
	case n.Kind == ir.NodeClass:
		if t, ok := c.h.Type(n.Type); ok {
			c.visitType(t)
		}
		return
	}
	c.visitNodes(n.Children, ctx.nested())
}

// site returns the label and effect of an allocation site. A call takes
// the declared effect of its callee; creation, and any call outside the
// program, may allocate.
func (c *Checker) site(n ir.Node) (string, effect.Effect) {
	switch n.Kind {
	case ir.NodeCall:
		if callee, ok := c.h.FindMethod(n.Target); ok {
			return n.Target, c.res.DeclaredEffect(callee)
		}
		return n.Target, effect.MayAlloc
	case ir.NodeNew:
		return "new " + n.Type, effect.MayAlloc
	default:
		return "new " + n.Type + "[]", effect.MayAlloc
	}
}

// checkSite reports an InvalidCall when the site's effect is less
// restrictive than the enclosing one.
func (c *Checker) checkSite(n ir.Node, ctx Context, label string, target effect.Effect) {
	c.tracef("check site",
		"site", label,
		"caller", ctx.Effect,
		"target", target)

	if effect.Compare(target, ctx.Effect) <= 0 {
		return
	}
	if c.suppressed(ctx, diag.InvalidCall) {
		c.tracef("site suppressed", "site", label, "method", ctx.methodID())
		return
	}
	c.sink.Report(diag.Diagnostic{
		Kind:   diag.InvalidCall,
		Method: ctx.methodID(),
		Args: map[string]string{
			diag.ArgMethod:       ctx.methodID(),
			diag.ArgTarget:       label,
			diag.ArgTargetEffect: target.String(),
			diag.ArgCallerEffect: ctx.Effect.String(),
		},
		Pos: n.Pos,
	})
}

func (c *Checker) suppressed(ctx Context, kind diag.Kind) bool {
	for _, key := range ctx.Suppress {
		switch key {
		case c.suppress, c.suppress + ":" + string(kind), c.suppress + ":" + kind.Name():
			return true
		}
	}
	return false
}

func (c *Checker) tracef(msg string, args ...any) {
	if c.trace {
		c.log.Debug(msg, args...)
	}
}
