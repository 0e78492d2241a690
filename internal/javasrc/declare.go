//go:build cgo

package javasrc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/roach88/noalloc/internal/ir"
)

// builder accumulates the program while files are read.
type builder struct {
	prog  *ir.Program
	files []*sourceFile

	types  map[string]*typeDecl   // every type by full name
	simple map[string][]*typeDecl // non-local types by simple name
	order  []*typeDecl            // non-local types in declaration order
	roots  []*typeDecl            // top-level types
}

func newBuilder() *builder {
	return &builder{
		prog:   &ir.Program{Types: []*ir.Type{}},
		types:  make(map[string]*typeDecl),
		simple: make(map[string][]*typeDecl),
	}
}

// typeDecl is a type being translated.
type typeDecl struct {
	t        *ir.Type
	simple   string
	file     *sourceFile
	node     *sitter.Node
	bodyNode *sitter.Node
	outer    *typeDecl
	scope    *scope // scope a local type is declared in

	members map[string]*typeDecl
	nested  []*typeDecl
	fields  map[string]string
	methods []*methodDecl

	// locals numbers the anonymous and local classes declared inside.
	locals int
}

type methodDecl struct {
	m       *ir.Method
	node    *sitter.Node
	names   []string
	ret     string
	varargs bool
}

// accepts reports whether md can be called with arity arguments; exact
// matches only unless varargs is set.
func (md *methodDecl) accepts(name string, arity int, varargs bool) bool {
	if md.m.Name != name {
		return false
	}
	if !varargs {
		return len(md.m.Params) == arity
	}
	return md.varargs && arity >= len(md.m.Params)-1
}

func isTypeDeclaration(n *sitter.Node) bool {
	switch n.Type() {
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		return true
	}
	return false
}

// memberNodes returns the member declarations of a type body.
func memberNodes(body *sitter.Node) []*sitter.Node {
	if body == nil {
		return nil
	}
	if body.Type() == "enum_body" {
		return namedChildren(childOfType(body, "enum_body_declarations"))
	}
	return namedChildren(body)
}

func (d *typeDecl) body() *sitter.Node {
	return d.bodyNode
}

// newType registers a declaration. Local types are kept out of the simple
// name index; they are reachable only through their scope.
func (b *builder) newType(f *sourceFile, n *sitter.Node, name, simple string, outer *typeDecl, local bool) *typeDecl {
	kind := ir.KindClass
	if n.Type() == "interface_declaration" {
		kind = ir.KindInterface
	}
	t := &ir.Type{
		Name:       name,
		Kind:       kind,
		Local:      local,
		TypeParams: typeParams(f, n),
		Methods:    []*ir.Method{},
		Pos:        f.pos(n),
		End:        f.end(n),
	}
	if outer != nil {
		t.Outer = outer.t.Name
	}
	d := &typeDecl{
		t:        t,
		simple:   simple,
		file:     f,
		node:     n,
		bodyNode: n.ChildByFieldName("body"),
		outer:    outer,
		members:  make(map[string]*typeDecl),
		fields:   make(map[string]string),
	}
	b.types[name] = d
	b.prog.Types = append(b.prog.Types, t)
	if !local {
		b.simple[simple] = append(b.simple[simple], d)
		b.order = append(b.order, d)
	}
	return d
}

// declareTypes registers the type declarations under n, recursing into
// member types but not into method bodies.
func (b *builder) declareTypes(f *sourceFile, n *sitter.Node, outer *typeDecl) {
	var decls []*sitter.Node
	if outer == nil {
		decls = namedChildren(n)
	} else {
		decls = memberNodes(n)
	}
	for _, c := range decls {
		if !isTypeDeclaration(c) {
			continue
		}
		simple := f.text(c.ChildByFieldName("name"))
		name := simple
		if outer != nil {
			name = outer.t.Name + "." + simple
		}
		d := b.newType(f, c, name, simple, outer, outer != nil && outer.t.Local)
		if outer == nil {
			b.roots = append(b.roots, d)
		} else {
			outer.members[simple] = d
			outer.nested = append(outer.nested, d)
		}
		b.declareTypes(f, d.body(), d)
	}
}

// declareMembers resolves the supertypes of d and records its fields and
// method signatures.
func (b *builder) declareMembers(d *typeDecl) {
	f, n := d.file, d.node

	switch n.Type() {
	case "class_declaration":
		if sc := childOfType(n, "superclass"); sc != nil {
			if ts := namedChildren(sc); len(ts) > 0 {
				d.t.Extends = b.resolveType(f.text(ts[0]), d, d.scope)
			}
		}
		d.t.Implements = b.typeList(d, childOfType(n, "super_interfaces"))
	case "interface_declaration":
		d.t.Implements = b.typeList(d, childOfType(n, "extends_interfaces"))
	case "enum_declaration", "record_declaration":
		d.t.Implements = b.typeList(d, childOfType(n, "super_interfaces"))
	}

	var recordParams []string
	if n.Type() == "record_declaration" {
		types, names, _ := b.params(d, d.scope, n.ChildByFieldName("parameters"))
		recordParams = types
		for i, name := range names {
			d.fields[name] = types[i]
		}
	}
	if n.Type() == "enum_declaration" {
		for _, c := range childrenOfType(d.body(), "enum_constant") {
			d.fields[f.text(c.ChildByFieldName("name"))] = d.t.Name
		}
	}

	for _, c := range memberNodes(d.body()) {
		switch c.Type() {
		case "field_declaration", "constant_declaration":
			typ := b.resolveType(f.text(c.ChildByFieldName("type")), d, d.scope)
			for _, v := range childrenOfType(c, "variable_declarator") {
				d.fields[f.text(v.ChildByFieldName("name"))] = typ + dims(f, v)
			}
		case "method_declaration":
			b.declareMethod(d, c, f.text(c.ChildByFieldName("name")), nil)
		case "constructor_declaration":
			b.declareMethod(d, c, ir.ConstructorName, nil)
		case "compact_constructor_declaration":
			b.declareMethod(d, c, ir.ConstructorName, recordParams)
		}
	}
}

func (b *builder) declareMethod(d *typeDecl, n *sitter.Node, name string, fixed []string) {
	mods := childOfType(n, "modifiers")
	md := &methodDecl{node: n}
	if t := n.ChildByFieldName("type"); t != nil {
		md.ret = b.resolveType(d.file.text(t), d, d.scope) + dims(d.file, n)
	}
	params := fixed
	if fixed == nil {
		params, md.names, md.varargs = b.params(d, d.scope, n.ChildByFieldName("parameters"))
	}
	md.m = &ir.Method{
		Owner:       d.t.Name,
		Name:        name,
		Params:      params,
		Static:      hasKeyword(mods, "static"),
		TypeParams:  typeParams(d.file, n),
		Annotations: annotationNames(d.file, mods),
		Pos:         d.file.pos(n),
		End:         d.file.end(n),
	}
	d.methods = append(d.methods, md)
	d.t.Methods = append(d.t.Methods, md.m)
}

// typeParams lists the type variables a generic type or method declares.
func typeParams(f *sourceFile, n *sitter.Node) []string {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		tp = childOfType(n, "type_parameters")
	}
	var out []string
	for _, p := range childrenOfType(tp, "type_parameter") {
		for _, c := range namedChildren(p) {
			if c.Type() == "type_identifier" || c.Type() == "identifier" {
				out = append(out, f.text(c))
				break
			}
		}
	}
	return out
}

// params reads a formal_parameters node into erased, resolved types.
func (b *builder) params(d *typeDecl, sc *scope, fp *sitter.Node) (types, names []string, varargs bool) {
	f := d.file
	for _, p := range namedChildren(fp) {
		switch p.Type() {
		case "formal_parameter":
			typ := b.resolveType(f.text(p.ChildByFieldName("type")), d, sc)
			types = append(types, typ+dims(f, p))
			names = append(names, f.text(p.ChildByFieldName("name")))
		case "spread_parameter":
			var typ, name string
			for _, c := range namedChildren(p) {
				switch {
				case c.Type() == "modifiers":
				case c.Type() == "variable_declarator":
					name = f.text(c.ChildByFieldName("name"))
				case typ == "":
					typ = b.resolveType(f.text(c), d, sc)
				}
			}
			types = append(types, typ+"[]")
			names = append(names, name)
			varargs = true
		}
	}
	return types, names, varargs
}

// dims returns the C-style array dimensions of a declarator, if any.
func dims(f *sourceFile, n *sitter.Node) string {
	if d := n.ChildByFieldName("dimensions"); d != nil {
		return eraseType(f.text(d))
	}
	return ""
}

func (b *builder) typeList(d *typeDecl, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	list := childOfType(n, "type_list")
	if list == nil {
		list = n
	}
	var out []string
	for _, t := range namedChildren(list) {
		out = append(out, b.resolveType(d.file.text(t), d, d.scope))
	}
	return out
}

// annotationNames lists the annotations in a modifiers node, without '@'
// or arguments.
func annotationNames(f *sourceFile, mods *sitter.Node) []string {
	var out []string
	for _, c := range namedChildren(mods) {
		switch c.Type() {
		case "marker_annotation", "annotation":
			out = append(out, f.text(c.ChildByFieldName("name")))
		}
	}
	return out
}

// suppressions returns the string values of any @SuppressWarnings in mods.
func suppressions(f *sourceFile, mods *sitter.Node) []string {
	var out []string
	for _, c := range namedChildren(mods) {
		if c.Type() != "annotation" || simpleName(f.text(c.ChildByFieldName("name"))) != "SuppressWarnings" {
			continue
		}
		for _, lit := range findNodes(c.ChildByFieldName("arguments"), "string_literal") {
			out = append(out, stringLiteral(f.text(lit)))
		}
	}
	return out
}

// resolveType maps a type as written to the name of a declared type where
// one is visible, keeping array dimensions. Unknown types are returned
// erased but otherwise as written.
func (b *builder) resolveType(text string, d *typeDecl, sc *scope) string {
	elem, arr := splitArray(eraseType(text))
	if td := b.lookupType(elem, d, sc); td != nil {
		return td.t.Name + arr
	}
	return elem + arr
}

func (b *builder) lookupType(name string, d *typeDecl, sc *scope) *typeDecl {
	if name == "" {
		return nil
	}
	segs := strings.Split(name, ".")
	for start := 0; start < len(segs); start++ {
		td := b.lookupSimple(segs[start], d, sc)
		for _, seg := range segs[start+1:] {
			if td == nil {
				break
			}
			td = td.members[seg]
		}
		if td != nil {
			return td
		}
	}
	return nil
}

// lookupSimple finds the type a simple name refers to from inside d.
func (b *builder) lookupSimple(name string, d *typeDecl, sc *scope) *typeDecl {
	for s := sc; s != nil; s = s.parent {
		if td, ok := s.types[name]; ok {
			return td
		}
	}
	for x := d; x != nil; x = x.outer {
		if x.simple == name && !x.t.Local {
			return x
		}
		if td, ok := x.members[name]; ok {
			return td
		}
		for s := x.scope; s != nil; s = s.parent {
			if td, ok := s.types[name]; ok {
				return td
			}
		}
	}
	candidates := b.simple[name]
	for _, c := range candidates {
		if c.outer == nil {
			return c
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}
