package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/noalloc/internal/ir"
)

// CompileProgram compiles the top-level class and interface declarations
// of a CUE hierarchy description:
//
//	class: Sub: {
//		extends: "Super"
//		implements: ["Iface"]
//		methods: "m()": {annotations: ["NoAlloc"], body: [{new: "Integer"}]}
//	}
//	interface: Iface: {extends: ["Base"], methods: "m()": {}}
//
// Types are returned in declaration order, classes first.
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Program{}
	for _, section := range []struct {
		label string
		kind  ir.TypeKind
	}{
		{"class", ir.KindClass},
		{"interface", ir.KindInterface},
	} {
		sv := v.LookupPath(cue.ParsePath(section.label))
		if !sv.Exists() {
			continue
		}
		iter, err := sv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := CompileType(iter.Label(), section.kind, iter.Value())
			if err != nil {
				return nil, err
			}
			p.Types = append(p.Types, t)
		}
	}
	return p, nil
}

var (
	typeKeys   = map[string]bool{"extends": true, "implements": true, "initializers": true, "methods": true, "outer": true, "local": true, "type_params": true}
	methodKeys = map[string]bool{"annotations": true, "static": true, "type_params": true, "body": true}
)

// CompileType compiles one class or interface body. For an interface the
// extends field is a list of interfaces; for a class it names the single
// superclass.
func CompileType(name string, kind ir.TypeKind, v cue.Value) (*ir.Type, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	field := fmt.Sprintf("%s.%s", kind, name)
	if err := checkKeys(v, field, typeKeys); err != nil {
		return nil, err
	}

	t := &ir.Type{Name: name, Kind: kind, Pos: irPos(v.Pos())}

	if ext := v.LookupPath(cue.ParsePath("extends")); ext.Exists() {
		if kind == ir.KindInterface {
			list, err := stringList(ext, field+".extends")
			if err != nil {
				return nil, err
			}
			t.Implements = append(t.Implements, list...)
		} else {
			s, err := ext.String()
			if err != nil {
				return nil, &CompileError{Field: field + ".extends", Message: "a class extends a single type name", Pos: ext.Pos()}
			}
			t.Extends = s
		}
	}

	if impl := v.LookupPath(cue.ParsePath("implements")); impl.Exists() {
		if kind == ir.KindInterface {
			return nil, &CompileError{Field: field + ".implements", Message: "interfaces list their supertypes under extends", Pos: impl.Pos()}
		}
		list, err := stringList(impl, field+".implements")
		if err != nil {
			return nil, err
		}
		t.Implements = list
	}

	if outer := v.LookupPath(cue.ParsePath("outer")); outer.Exists() {
		s, err := outer.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.Outer = s
	}

	if local := v.LookupPath(cue.ParsePath("local")); local.Exists() {
		b, err := local.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.Local = b
	}

	if tp := v.LookupPath(cue.ParsePath("type_params")); tp.Exists() {
		list, err := stringList(tp, field+".type_params")
		if err != nil {
			return nil, err
		}
		t.TypeParams = list
	}

	if inits := v.LookupPath(cue.ParsePath("initializers")); inits.Exists() {
		nodes, err := compileNodes(inits, field+".initializers")
		if err != nil {
			return nil, err
		}
		t.Initializers = nodes
	}

	if methods := v.LookupPath(cue.ParsePath("methods")); methods.Exists() {
		iter, err := methods.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := compileMethod(name, iter.Label(), iter.Value(), field+".methods")
			if err != nil {
				return nil, err
			}
			t.Methods = append(t.Methods, m)
		}
	}

	return t, nil
}

func compileMethod(owner, sig string, v cue.Value, parent string) (*ir.Method, error) {
	field := fmt.Sprintf("%s[%q]", parent, sig)
	name, params, err := ir.ParseSignature(sig)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	if err := checkKeys(v, field, methodKeys); err != nil {
		return nil, err
	}

	m := &ir.Method{Owner: owner, Name: name, Params: params, Pos: irPos(v.Pos())}

	if ann := v.LookupPath(cue.ParsePath("annotations")); ann.Exists() {
		list, err := stringList(ann, field+".annotations")
		if err != nil {
			return nil, err
		}
		m.Annotations = list
	}

	if static := v.LookupPath(cue.ParsePath("static")); static.Exists() {
		b, err := static.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Static = b
	}

	if tp := v.LookupPath(cue.ParsePath("type_params")); tp.Exists() {
		list, err := stringList(tp, field+".type_params")
		if err != nil {
			return nil, err
		}
		m.TypeParams = list
	}

	if body := v.LookupPath(cue.ParsePath("body")); body.Exists() {
		nodes, err := compileNodes(body, field+".body")
		if err != nil {
			return nil, err
		}
		m.Body = nodes
	}

	return m, nil
}

// nodeKeys maps each discriminating key to its node kind.
var nodeKeys = []struct {
	key  string
	kind ir.NodeKind
}{
	{"call", ir.NodeCall},
	{"new", ir.NodeNew},
	{"new_array", ir.NodeNewArray},
	{"local", ir.NodeLocal},
	{"block", ir.NodeBlock},
	{"class", ir.NodeClass},
}

func compileNodes(v cue.Value, field string) ([]ir.Node, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of nodes", Pos: v.Pos()}
	}
	var nodes []ir.Node
	for i := 0; iter.Next(); i++ {
		n, err := compileNode(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// compileNode compiles one body node. Each node carries exactly one
// discriminating key.
func compileNode(v cue.Value, field string) (ir.Node, error) {
	var n ir.Node
	var found []string
	for _, nk := range nodeKeys {
		if v.LookupPath(cue.ParsePath(nk.key)).Exists() {
			found = append(found, nk.key)
			n.Kind = nk.kind
		}
	}
	if len(found) != 1 {
		return n, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("a node needs exactly one of call, new, new_array, local, block, class; found %v", found),
			Pos:     v.Pos(),
		}
	}
	n.Pos = irPos(v.Pos())
	key := found[0]
	val := v.LookupPath(cue.ParsePath(key))

	switch n.Kind {
	case ir.NodeBlock:
		children, err := compileNodes(val, field+".block")
		if err != nil {
			return n, err
		}
		n.Children = children
		return n, nil
	case ir.NodeCall, ir.NodeNew, ir.NodeNewArray, ir.NodeLocal, ir.NodeClass:
		s, err := val.String()
		if err != nil {
			return n, &CompileError{Field: field + "." + key, Message: "expected a string", Pos: val.Pos()}
		}
		switch n.Kind {
		case ir.NodeCall:
			n.Target = s
		case ir.NodeLocal:
			n.Name = s
		default:
			n.Type = s
		}
	}

	if n.Kind == ir.NodeLocal {
		if sup := v.LookupPath(cue.ParsePath("suppress")); sup.Exists() {
			list, err := stringList(sup, field+".suppress")
			if err != nil {
				return n, err
			}
			n.Suppress = list
		}
		if init := v.LookupPath(cue.ParsePath("init")); init.Exists() {
			child, err := compileNode(init, field+".init")
			if err != nil {
				return n, err
			}
			n.Children = []ir.Node{child}
		}
		return n, nil
	}

	if args := v.LookupPath(cue.ParsePath("args")); args.Exists() {
		children, err := compileNodes(args, field+".args")
		if err != nil {
			return n, err
		}
		n.Children = children
	}
	return n, nil
}

func checkKeys(v cue.Value, field string, allowed map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: field, Message: "expected a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		if !allowed[iter.Label()] {
			return &CompileError{
				Field:   field + "." + iter.Label(),
				Message: "unknown field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func irPos(p token.Pos) ir.Pos {
	if !p.IsValid() {
		return ir.Pos{}
	}
	return ir.Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
