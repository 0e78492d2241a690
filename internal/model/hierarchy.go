// Package model answers structural questions about a compiled program: which
// type a class extends, which interfaces it implements, which ancestor method
// a declaration overrides, and which effect markers a method carries.
//
// A Hierarchy is built once per analysis pass and is read-only afterwards, so
// it may be shared by concurrent readers.
package model

import (
	"slices"
	"strings"

	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/ir"
)

// MarkerNames are the annotation names recognised as effect markers. A
// qualified annotation such as "com.acme.NoAlloc" matches on its last
// segment.
type MarkerNames struct {
	NoAlloc  string `mapstructure:"no_alloc" json:"no_alloc"`
	MayAlloc string `mapstructure:"may_alloc" json:"may_alloc"`
}

// DefaultMarkerNames returns the stock marker names.
func DefaultMarkerNames() MarkerNames {
	return MarkerNames{NoAlloc: "NoAlloc", MayAlloc: "MayAlloc"}
}

// Hierarchy indexes an ir.Program for lookups by type name and method ID.
type Hierarchy struct {
	program *ir.Program
	markers MarkerNames

	types   map[string]*ir.Type
	methods map[string]*ir.Method
	// bySig maps type name -> signature -> method declared directly in it.
	bySig map[string]map[string]*ir.Method
}

// New indexes p. Later duplicates of a type name or method ID are ignored;
// validation reports them before a hierarchy is built.
func New(p *ir.Program, markers MarkerNames) *Hierarchy {
	if markers.NoAlloc == "" {
		markers.NoAlloc = DefaultMarkerNames().NoAlloc
	}
	if markers.MayAlloc == "" {
		markers.MayAlloc = DefaultMarkerNames().MayAlloc
	}
	h := &Hierarchy{
		program: p,
		markers: markers,
		types:   make(map[string]*ir.Type, len(p.Types)),
		methods: make(map[string]*ir.Method),
		bySig:   make(map[string]map[string]*ir.Method, len(p.Types)),
	}
	for _, t := range p.Types {
		if _, dup := h.types[t.Name]; dup {
			continue
		}
		h.types[t.Name] = t
		sigs := make(map[string]*ir.Method, len(t.Methods))
		for _, m := range t.Methods {
			if _, dup := sigs[m.Signature()]; dup {
				continue
			}
			sigs[m.Signature()] = m
			h.methods[m.ID()] = m
		}
		h.bySig[t.Name] = sigs
	}
	return h
}

// Program returns the indexed program.
func (h *Hierarchy) Program() *ir.Program {
	return h.program
}

// Types returns every type in declaration order.
func (h *Hierarchy) Types() []*ir.Type {
	return h.program.Types
}

// TopLevel returns the types visited directly by a pass: everything that is
// not a local (anonymous or method-local) type.
func (h *Hierarchy) TopLevel() []*ir.Type {
	var out []*ir.Type
	for _, t := range h.program.Types {
		if !t.Local {
			out = append(out, t)
		}
	}
	return out
}

// Type looks up a type by name.
func (h *Hierarchy) Type(name string) (*ir.Type, bool) {
	t, ok := h.types[name]
	return t, ok
}

// Method looks up a method by ID (Owner.name(params)).
func (h *Hierarchy) Method(id string) (*ir.Method, bool) {
	m, ok := h.methods[id]
	return m, ok
}

// Owner returns the type declaring m.
func (h *Hierarchy) Owner(m *ir.Method) (*ir.Type, bool) {
	return h.Type(m.Owner)
}

// Superclass returns the declared superclass of t. Interfaces, classes
// without an extends clause, and classes extending a type outside the
// program have none.
func (h *Hierarchy) Superclass(t *ir.Type) (*ir.Type, bool) {
	if t == nil || t.IsInterface() || t.Extends == "" {
		return nil, false
	}
	super, ok := h.types[t.Extends]
	if !ok || super.IsInterface() {
		return nil, false
	}
	return super, true
}

// DirectSupertypes returns the interfaces t implements (for a class) or
// extends (for an interface), in declaration order. The superclass is not
// included: it is reached through Superclass.
func (h *Hierarchy) DirectSupertypes(t *ir.Type) []*ir.Type {
	if t == nil {
		return nil
	}
	var out []*ir.Type
	for _, name := range t.Implements {
		if st, ok := h.types[name]; ok && st.IsInterface() {
			out = append(out, st)
		}
	}
	return out
}

// OverriddenMethod returns the method declared directly in ancestor that m
// overrides. Constructors and static methods never override, and a static
// ancestor method is never overridden.
//
// A parameter of the ancestor method whose type is one of the ancestor's
// (or the method's own) type variables matches any reference type, so
// put(String) in a class implementing Sink<String> overrides put(T).
func (h *Hierarchy) OverriddenMethod(m *ir.Method, ancestor *ir.Type) (*ir.Method, bool) {
	if m == nil || ancestor == nil || m.IsConstructor() || m.Static {
		return nil, false
	}
	if ancestor.Name == m.Owner {
		return nil, false
	}
	if candidate, ok := h.bySig[ancestor.Name][m.Signature()]; ok {
		if candidate.Static || candidate.IsConstructor() {
			return nil, false
		}
		return candidate, true
	}
	if len(ancestor.TypeParams) == 0 && !anyGeneric(ancestor.Methods) {
		return nil, false
	}
	for _, c := range ancestor.Methods {
		if c.Name != m.Name || len(c.Params) != len(m.Params) || c.Static || c.IsConstructor() {
			continue
		}
		if substitutes(ancestor, c, m.Params) {
			return c, true
		}
	}
	return nil, false
}

func anyGeneric(methods []*ir.Method) bool {
	for _, m := range methods {
		if len(m.TypeParams) > 0 {
			return true
		}
	}
	return false
}

// substitutes reports whether params is c's parameter list with each
// type variable replaced by some reference type.
func substitutes(t *ir.Type, c *ir.Method, params []string) bool {
	for i, p := range c.Params {
		if p == params[i] {
			continue
		}
		elem, dims := splitDims(p)
		got, gotDims := splitDims(params[i])
		if dims != gotDims || primitives[got] {
			return false
		}
		if !slices.Contains(t.TypeParams, elem) && !slices.Contains(c.TypeParams, elem) {
			return false
		}
	}
	return true
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true,
}

// splitDims separates "T[][]" into "T" and "[][]".
func splitDims(t string) (elem, dims string) {
	if i := strings.IndexByte(t, '['); i >= 0 {
		return t[:i], t[i:]
	}
	return t, ""
}

// Markers returns the effect markers carried by m.
func (h *Hierarchy) Markers(m *ir.Method) effect.Markers {
	var mk effect.Markers
	for _, a := range m.Annotations {
		switch annotationName(a) {
		case h.markers.NoAlloc:
			mk |= effect.MarkNoAlloc
		case h.markers.MayAlloc:
			mk |= effect.MarkMayAlloc
		}
	}
	return mk
}

// annotationName strips a leading '@', any arguments and any package
// qualifier: "@com.acme.NoAlloc()" -> "NoAlloc".
func annotationName(a string) string {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	if i := strings.IndexByte(a, '('); i >= 0 {
		a = a[:i]
	}
	if i := strings.LastIndexByte(a, '.'); i >= 0 {
		a = a[i+1:]
	}
	return strings.TrimSpace(a)
}

// FindMethod resolves a call target of the form Owner.name(params). The
// method is looked up in Owner first, then along its superclass chain, then
// breadth-first through implemented interfaces. Targets naming a type or
// method outside the program are not found.
func (h *Hierarchy) FindMethod(target string) (*ir.Method, bool) {
	if m, ok := h.methods[target]; ok {
		return m, true
	}
	owner, name, params, err := ir.ParseMethodRef(target)
	if err != nil {
		return nil, false
	}
	t, ok := h.types[owner]
	if !ok {
		return nil, false
	}
	return h.lookupInherited(t, ir.Signature(name, params))
}

func (h *Hierarchy) lookupInherited(start *ir.Type, sig string) (*ir.Method, bool) {
	seen := map[string]bool{start.Name: true}
	queue := []*ir.Type{start}
	// superclass chain first so a class method shadows an interface default
	for t, ok := h.Superclass(start); ok && !seen[t.Name]; t, ok = h.Superclass(t) {
		seen[t.Name] = true
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if m, ok := h.bySig[t.Name][sig]; ok {
			return m, true
		}
		for _, st := range h.DirectSupertypes(t) {
			if !seen[st.Name] {
				seen[st.Name] = true
				queue = append(queue, st)
			}
		}
	}
	return nil, false
}
