//go:build cgo

package javasrc

import (
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/roach88/noalloc/internal/ir"
)

// scope holds the names visible inside one method or initializer body.
// Declarations are recorded in order, so a later local shadows an earlier
// one for the rest of the body.
type scope struct {
	typ    *typeDecl
	vars   map[string]string
	types  map[string]*typeDecl
	parent *scope
}

func newScope(d *typeDecl) *scope {
	return &scope{
		typ:    d,
		vars:   make(map[string]string),
		types:  make(map[string]*typeDecl),
		parent: d.scope,
	}
}

// buildBodies translates the methods and initializers of d, in source
// order, and then its member types.
func (b *builder) buildBodies(d *typeDecl) {
	f := d.file
	sc := newScope(d)
	var init []ir.Node
	for _, c := range childrenOfType(d.body(), "enum_constant") {
		init = append(init, b.walk(sc, c.ChildByFieldName("arguments"), "")...)
		if body := c.ChildByFieldName("body"); body != nil {
			anon := b.anonymousType(sc, c, body, d.t.Name)
			init = append(init, ir.Node{Kind: ir.NodeClass, Type: anon.t.Name, Pos: f.pos(body)})
		}
	}

	next := 0
	for _, c := range memberNodes(d.body()) {
		switch c.Type() {
		case "field_declaration", "constant_declaration":
			for _, v := range childrenOfType(c, "variable_declarator") {
				typ := d.fields[f.text(v.ChildByFieldName("name"))]
				init = append(init, b.walk(sc, v.ChildByFieldName("value"), elementType(typ))...)
			}
		case "static_initializer", "block":
			init = append(init, b.walk(sc, c, "")...)
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			md := d.methods[next]
			next++
			msc := newScope(d)
			for i, name := range md.names {
				msc.vars[name] = md.m.Params[i]
			}
			md.m.Body = b.walk(msc, md.node.ChildByFieldName("body"), "")
		}
	}
	d.t.Initializers = init

	for _, m := range d.nested {
		b.buildBodies(m)
	}
}

// walk translates the allocation sites under n. hint is the element type
// an array initializer at n creates, when known.
func (b *builder) walk(sc *scope, n *sitter.Node, hint string) []ir.Node {
	if n == nil || isComment(n) {
		return nil
	}
	f := sc.typ.file

	switch n.Type() {
	case "method_invocation":
		return []ir.Node{b.call(sc, n)}
	case "explicit_constructor_invocation":
		return []ir.Node{b.constructorCall(sc, n)}
	case "object_creation_expression":
		return []ir.Node{b.newObject(sc, n)}
	case "array_creation_expression":
		return []ir.Node{b.newArray(sc, n)}
	case "array_initializer":
		typ := hint
		if typ == "" {
			typ = UnknownParam
		}
		node := ir.Node{Kind: ir.NodeNewArray, Type: typ, Pos: f.pos(n)}
		for _, el := range namedChildren(n) {
			node.Children = append(node.Children, b.walk(sc, el, elementType(hint))...)
		}
		return []ir.Node{node}
	case "local_variable_declaration":
		return b.locals(sc, n)
	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
		local := b.localType(sc, n)
		return []ir.Node{{Kind: ir.NodeClass, Type: local.t.Name, Pos: f.pos(n)}}
	case "enhanced_for_statement", "resource":
		if name := n.ChildByFieldName("name"); name != nil {
			if t := n.ChildByFieldName("type"); t != nil {
				sc.vars[f.text(name)] = b.resolveType(f.text(t), sc.typ, sc)
			}
		}
	case "catch_formal_parameter":
		if name := n.ChildByFieldName("name"); name != nil {
			if ct := childOfType(n, "catch_type"); ct != nil {
				if ts := namedChildren(ct); len(ts) > 0 {
					sc.vars[f.text(name)] = b.resolveType(f.text(ts[0]), sc.typ, sc)
				}
			}
		}
		return nil
	}

	var out []ir.Node
	for _, c := range namedChildren(n) {
		out = append(out, b.walk(sc, c, "")...)
	}
	return out
}

// isSite reports whether n translates to a single allocation site.
func isSite(n *sitter.Node) bool {
	switch n.Type() {
	case "method_invocation", "explicit_constructor_invocation",
		"object_creation_expression", "array_creation_expression", "array_initializer":
		return true
	}
	return false
}

// unwrap strips the parentheses and casts around an expression.
func unwrap(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression":
			cs := namedChildren(n)
			if len(cs) == 0 {
				return n
			}
			n = cs[0]
		case "cast_expression":
			v := n.ChildByFieldName("value")
			if v == nil {
				return n
			}
			n = v
		default:
			return n
		}
	}
	return n
}

// locals translates a local variable declaration. Suppression keys apply
// to an initializer that is itself a site, possibly parenthesized or cast;
// any other initializer is wrapped in a block so its sites are not the
// declaration's direct child.
func (b *builder) locals(sc *scope, n *sitter.Node) []ir.Node {
	f := sc.typ.file
	keys := suppressions(f, childOfType(n, "modifiers"))
	typ := b.resolveType(f.text(n.ChildByFieldName("type")), sc.typ, sc)

	var out []ir.Node
	for _, v := range childrenOfType(n, "variable_declarator") {
		name := f.text(v.ChildByFieldName("name"))
		value := v.ChildByFieldName("value")
		vt := typ + dims(f, v)
		if typ == "var" && value != nil {
			if et := b.exprType(sc, value); et != "" {
				vt = et
			}
		}

		node := ir.Node{Kind: ir.NodeLocal, Name: name, Suppress: keys, Pos: f.pos(v)}
		if value != nil {
			inner := b.walk(sc, value, elementType(vt))
			switch {
			case isSite(unwrap(value)) && len(inner) == 1:
				node.Children = inner
			case len(inner) > 0:
				node.Children = []ir.Node{{Kind: ir.NodeBlock, Children: inner, Pos: f.pos(value)}}
			}
		}
		sc.vars[name] = vt
		out = append(out, node)
	}
	return out
}

func (b *builder) call(sc *scope, n *sitter.Node) ir.Node {
	f := sc.typ.file
	obj := n.ChildByFieldName("object")
	args := namedChildren(n.ChildByFieldName("arguments"))
	target, _ := b.resolveCall(sc, obj, f.text(n.ChildByFieldName("name")), b.argTypes(sc, args))

	node := ir.Node{Kind: ir.NodeCall, Target: target, Pos: f.pos(n)}
	node.Children = append(node.Children, b.walk(sc, obj, "")...)
	for _, a := range args {
		node.Children = append(node.Children, b.walk(sc, a, "")...)
	}
	return node
}

// constructorCall translates this(...) and super(...).
func (b *builder) constructorCall(sc *scope, n *sitter.Node) ir.Node {
	f := sc.typ.file
	args := namedChildren(n.ChildByFieldName("arguments"))

	owner := sc.typ.t.Name
	if ctor := n.ChildByFieldName("constructor"); ctor != nil && ctor.Type() == "super" {
		owner = sc.typ.t.Extends
		if owner == "" {
			owner = "Object"
		}
	}
	target := externalTarget(owner, ir.ConstructorName, len(args))
	if td, ok := b.types[owner]; ok {
		if md := b.findMethod(td, ir.ConstructorName, b.argTypes(sc, args), false); md != nil {
			target = md.m.ID()
		}
	}

	node := ir.Node{Kind: ir.NodeCall, Target: target, Pos: f.pos(n)}
	for _, a := range args {
		node.Children = append(node.Children, b.walk(sc, a, "")...)
	}
	return node
}

func (b *builder) newObject(sc *scope, n *sitter.Node) ir.Node {
	f := sc.typ.file
	typ := b.resolveType(f.text(n.ChildByFieldName("type")), sc.typ, sc)
	node := ir.Node{Kind: ir.NodeNew, Type: typ, Pos: f.pos(n)}

	// The qualifier of outer.new Inner(); type nodes hold no sites.
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "argument_list", "class_body":
			continue
		}
		node.Children = append(node.Children, b.walk(sc, c, "")...)
	}
	for _, a := range namedChildren(n.ChildByFieldName("arguments")) {
		node.Children = append(node.Children, b.walk(sc, a, "")...)
	}
	if body := childOfType(n, "class_body"); body != nil {
		anon := b.anonymousType(sc, n, body, typ)
		node.Children = append(node.Children, ir.Node{Kind: ir.NodeClass, Type: anon.t.Name, Pos: f.pos(body)})
	}
	return node
}

func (b *builder) newArray(sc *scope, n *sitter.Node) ir.Node {
	f := sc.typ.file
	base := b.resolveType(f.text(n.ChildByFieldName("type")), sc.typ, sc)

	var children []ir.Node
	rank := 0
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "dimensions_expr":
			rank++
			children = append(children, b.walk(sc, c, "")...)
		case "dimensions":
			rank += strings.Count(f.text(c), "[")
		}
	}
	full := base + strings.Repeat("[]", rank)
	if value := n.ChildByFieldName("value"); value != nil {
		for _, el := range namedChildren(value) {
			children = append(children, b.walk(sc, el, elementType(elementType(full)))...)
		}
	}
	elem := elementType(full)
	if elem == "" {
		elem = base
	}
	return ir.Node{Kind: ir.NodeNewArray, Type: elem, Children: children, Pos: f.pos(n)}
}

// localType declares a class written inside a method body.
func (b *builder) localType(sc *scope, n *sitter.Node) *typeDecl {
	d := sc.typ
	d.locals++
	simple := d.file.text(n.ChildByFieldName("name"))
	td := b.newType(d.file, n, fmt.Sprintf("%s$%d%s", d.t.Name, d.locals, simple), simple, d, true)
	td.scope = sc
	sc.types[simple] = td
	b.completeLocal(td)
	return td
}

// anonymousType declares the class body of an object creation or enum
// constant as a subtype of super.
func (b *builder) anonymousType(sc *scope, n, body *sitter.Node, super string) *typeDecl {
	d := sc.typ
	d.locals++
	td := b.newType(d.file, n, fmt.Sprintf("%s$%d", d.t.Name, d.locals), "", d, true)
	td.bodyNode = body
	td.scope = sc
	if st, ok := b.types[super]; ok && st.t.IsInterface() {
		td.t.Implements = []string{super}
	} else {
		td.t.Extends = super
	}
	b.completeLocal(td)
	return td
}

// completeLocal declares the members of a local type and translates its
// bodies in place.
func (b *builder) completeLocal(td *typeDecl) {
	b.declareTypes(td.file, td.body(), td)
	var declare func(*typeDecl)
	declare = func(x *typeDecl) {
		b.declareMembers(x)
		for _, m := range x.nested {
			declare(m)
		}
	}
	declare(td)
	b.buildBodies(td)
}

// resolveCall finds the method a call refers to. args holds the static
// type of each argument, "" where unknown. It returns the callee's method
// ID, or an external target when nothing declared matches.
func (b *builder) resolveCall(sc *scope, obj *sitter.Node, name string, args []string) (string, *methodDecl) {
	if obj == nil {
		for x := sc.typ; x != nil; x = x.outer {
			if md := b.findMethod(x, name, args, true); md != nil {
				return md.m.ID(), md
			}
		}
		return externalTarget(sc.typ.t.Name, name, len(args)), nil
	}

	owner := b.receiverType(sc, obj)
	elem, arr := splitArray(owner)
	if td, ok := b.types[elem]; ok && arr == "" {
		if md := b.findMethod(td, name, args, true); md != nil {
			return md.m.ID(), md
		}
	}
	return externalTarget(owner, name, len(args)), nil
}

// receiverType returns the static type of a call receiver: a declared type
// name where one is known, the receiver as written otherwise, or "" for an
// expression whose type is unknown.
func (b *builder) receiverType(sc *scope, obj *sitter.Node) string {
	f := sc.typ.file
	switch obj.Type() {
	case "this":
		return sc.typ.t.Name
	case "super":
		return sc.typ.t.Extends
	case "identifier":
		name := f.text(obj)
		if vt, ok := b.varType(sc, name); ok {
			return vt
		}
		if td := b.lookupType(name, sc.typ, sc); td != nil {
			return td.t.Name
		}
		return name
	case "field_access":
		field := f.text(obj.ChildByFieldName("field"))
		if inner := obj.ChildByFieldName("object"); inner != nil {
			if td, ok := b.types[b.receiverType(sc, inner)]; ok {
				if ft, ok := b.fieldType(td, field); ok {
					return ft
				}
				if m, ok := td.members[field]; ok {
					return m.t.Name
				}
			}
		}
		text := eraseType(f.text(obj))
		if td := b.lookupType(text, sc.typ, sc); td != nil {
			return td.t.Name
		}
		return text
	case "parenthesized_expression":
		if cs := namedChildren(obj); len(cs) > 0 {
			return b.receiverType(sc, cs[0])
		}
	case "cast_expression", "object_creation_expression":
		return b.resolveType(f.text(obj.ChildByFieldName("type")), sc.typ, sc)
	case "method_invocation":
		args := namedChildren(obj.ChildByFieldName("arguments"))
		if _, md := b.resolveCall(sc, obj.ChildByFieldName("object"), f.text(obj.ChildByFieldName("name")), b.argTypes(sc, args)); md != nil {
			return md.ret
		}
	case "string_literal":
		return "String"
	}
	return ""
}

// varType finds the declared type of a local, parameter or field visible
// from sc.
func (b *builder) varType(sc *scope, name string) (string, bool) {
	var last *typeDecl
	for s := sc; s != nil; s = s.parent {
		if last != nil && s.typ != last {
			if t, ok := b.fieldType(last, name); ok {
				return t, true
			}
		}
		if t, ok := s.vars[name]; ok {
			return t, true
		}
		last = s.typ
	}
	for x := last; x != nil; x = x.outer {
		if t, ok := b.fieldType(x, name); ok {
			return t, true
		}
	}
	return "", false
}

// fieldType looks a field up in td and its declared supertypes.
func (b *builder) fieldType(td *typeDecl, name string) (string, bool) {
	var found string
	ok := b.eachSupertype(td, true, func(x *typeDecl) bool {
		if t, has := x.fields[name]; has {
			found = t
			return true
		}
		return false
	})
	return found, ok
}

// findMethod looks a method up by name and arity in td and, when inherit
// is set, its declared supertypes. Within each type exact arity wins over
// varargs, and among overloads of one arity the first whose parameters
// accept the known argument types wins over the first declared.
func (b *builder) findMethod(td *typeDecl, name string, args []string, inherit bool) *methodDecl {
	var found *methodDecl
	b.eachSupertype(td, inherit, func(x *typeDecl) bool {
		for _, varargs := range []bool{false, true} {
			var first *methodDecl
			for _, md := range x.methods {
				if !md.accepts(name, len(args), varargs) {
					continue
				}
				if b.applicable(x, md, args) {
					found = md
					return true
				}
				if first == nil {
					first = md
				}
			}
			if first != nil {
				found = first
				return true
			}
		}
		return false
	})
	return found
}

// applicable reports whether every argument of known type can be passed
// to the matching parameter of md, declared in owner.
func (b *builder) applicable(owner *typeDecl, md *methodDecl, args []string) bool {
	params := md.m.Params
	for i, arg := range args {
		if arg == "" {
			continue
		}
		var param string
		switch {
		case md.varargs && i >= len(params)-1:
			last := params[len(params)-1]
			if len(args) == len(params) && b.assignable(owner, md, last, arg) {
				continue
			}
			param = elementType(last)
		default:
			param = params[i]
		}
		if !b.assignable(owner, md, param, arg) {
			return false
		}
	}
	return true
}

// assignable reports whether a value of static type arg converts to param
// by identity, primitive widening, boxing, or a reference widening the
// program declares.
func (b *builder) assignable(owner *typeDecl, md *methodDecl, param, arg string) bool {
	if param == arg {
		return true
	}
	if wider, ok := primitiveWidening[arg]; ok {
		return slices.Contains(wider, param) || param == boxes[arg] || param == "Object"
	}
	if primitiveWidening[param] != nil {
		return false
	}
	if param == "Object" || slices.Contains(owner.t.TypeParams, param) || slices.Contains(md.m.TypeParams, param) {
		return true
	}
	td, ok := b.types[arg]
	if !ok {
		return false
	}
	return b.eachSupertype(td, true, func(x *typeDecl) bool { return x.t.Name == param })
}

// argTypes returns the static type of each argument expression, "" where
// it cannot be told from the source alone.
func (b *builder) argTypes(sc *scope, args []*sitter.Node) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = b.exprType(sc, a)
	}
	return out
}

func (b *builder) exprType(sc *scope, n *sitter.Node) string {
	f := sc.typ.file
	switch n.Type() {
	case "string_literal":
		return "String"
	case "character_literal":
		return "char"
	case "true", "false":
		return "boolean"
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(strings.ToLower(f.text(n)), "l") {
			return "long"
		}
		return "int"
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(strings.ToLower(f.text(n)), "f") {
			return "float"
		}
		return "double"
	case "identifier":
		if vt, ok := b.varType(sc, f.text(n)); ok {
			return vt
		}
	case "parenthesized_expression":
		if cs := namedChildren(n); len(cs) > 0 {
			return b.exprType(sc, cs[0])
		}
	case "this", "cast_expression", "object_creation_expression", "method_invocation":
		return b.receiverType(sc, n)
	}
	return ""
}

// eachSupertype visits td, then its superclass chain and interfaces
// breadth-first, until fn returns true.
func (b *builder) eachSupertype(td *typeDecl, inherit bool, fn func(*typeDecl) bool) bool {
	queue := []*typeDecl{td}
	seen := map[*typeDecl]bool{td: true}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if fn(x) {
			return true
		}
		if !inherit {
			return false
		}
		for _, name := range append([]string{x.t.Extends}, x.t.Implements...) {
			if st, ok := b.types[name]; ok && !seen[st] {
				seen[st] = true
				queue = append(queue, st)
			}
		}
	}
	return false
}
