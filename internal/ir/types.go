package ir

import (
	"fmt"
	"strings"
)

// ConstructorName is the method name used for constructors.
const ConstructorName = "<init>"

// Pos is a source position. Line and Column are 1-based; the zero Pos is
// "no position".
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// String formats the position as file:line:column.
func (p Pos) String() string {
	if !p.IsValid() {
		if p.File != "" {
			return p.File
		}
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Before reports whether p precedes q within the same file.
func (p Pos) Before(q Pos) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// TypeKind distinguishes classes from interfaces.
type TypeKind string

const (
	KindClass     TypeKind = "class"
	KindInterface TypeKind = "interface"
)

// Program is the language-neutral input to the checker: every declaring
// type of one analysis unit, in declaration order.
type Program struct {
	Types   []*Type  `json:"types"`
	Sources []string `json:"sources,omitempty"`
}

// Type is a class or interface declaration.
//
// A class has at most one superclass (Extends) and any number of directly
// implemented interfaces. An interface lists the interfaces it extends in
// Implements and never has a superclass.
type Type struct {
	Name       string   `json:"name"`
	Kind       TypeKind `json:"kind"`
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`

	// Outer names the lexically enclosing type of a member class.
	Outer string `json:"outer,omitempty"`

	// Local types (anonymous or method-local classes) are visited where a
	// NodeClass refers to them, never at the top level.
	Local bool `json:"local,omitempty"`

	// TypeParams names the type variables a generic type declares.
	TypeParams []string `json:"type_params,omitempty"`

	Methods      []*Method `json:"methods"`
	Initializers []Node    `json:"initializers,omitempty"`

	Pos Pos `json:"pos"`
	End Pos `json:"end,omitempty"`
}

// IsInterface reports whether t is an interface.
func (t *Type) IsInterface() bool {
	return t.Kind == KindInterface
}

// Method is a method or constructor declaration.
type Method struct {
	Owner       string   `json:"owner"`
	Name        string   `json:"name"`
	Params      []string `json:"params,omitempty"`
	Static      bool     `json:"static,omitempty"`
	TypeParams  []string `json:"type_params,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Body        []Node   `json:"body,omitempty"`

	Pos Pos `json:"pos"`
	End Pos `json:"end,omitempty"`
}

// IsConstructor reports whether m is a constructor.
func (m *Method) IsConstructor() bool {
	return m.Name == ConstructorName
}

// Signature returns name(p1,p2) without the owner.
func (m *Method) Signature() string {
	return Signature(m.Name, m.Params)
}

// ID returns the program-unique identity Owner.name(p1,p2).
func (m *Method) ID() string {
	return MethodID(m.Owner, m.Name, m.Params)
}

func (m *Method) String() string {
	return m.ID()
}

// Signature formats a method name and parameter types.
func Signature(name string, params []string) string {
	return name + "(" + strings.Join(params, ",") + ")"
}

// MethodID formats a method identity.
func MethodID(owner, name string, params []string) string {
	return owner + "." + Signature(name, params)
}

// ParseSignature splits "name(p1, p2)" into its name and parameter types.
// A signature without parentheses has no parameters.
func ParseSignature(sig string) (name string, params []string, err error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open < 0 {
		if sig == "" {
			return "", nil, fmt.Errorf("empty signature")
		}
		return sig, nil, nil
	}
	if !strings.HasSuffix(sig, ")") {
		return "", nil, fmt.Errorf("signature %q: missing closing parenthesis", sig)
	}
	name = strings.TrimSpace(sig[:open])
	if name == "" {
		return "", nil, fmt.Errorf("signature %q: missing name", sig)
	}
	inner := strings.TrimSpace(sig[open+1 : len(sig)-1])
	if inner == "" {
		return name, nil, nil
	}
	for _, p := range splitParams(inner) {
		p = strings.Join(strings.Fields(p), "")
		if p == "" {
			return "", nil, fmt.Errorf("signature %q: empty parameter type", sig)
		}
		params = append(params, p)
	}
	return name, params, nil
}

// splitParams splits on commas outside type-argument brackets.
func splitParams(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// ParseMethodRef splits "Owner.name(p1)" into owner and signature parts.
// The owner is everything before the last '.' preceding the parenthesis.
func ParseMethodRef(ref string) (owner, name string, params []string, err error) {
	ref = strings.TrimSpace(ref)
	head := ref
	if open := strings.IndexByte(ref, '('); open >= 0 {
		head = ref[:open]
	}
	dot := strings.LastIndexByte(head, '.')
	if dot <= 0 {
		return "", "", nil, fmt.Errorf("method reference %q: expected Owner.name(params)", ref)
	}
	name, params, err = ParseSignature(ref[dot+1:])
	if err != nil {
		return "", "", nil, err
	}
	return ref[:dot], name, params, nil
}

// NodeKind tags a body node.
type NodeKind string

const (
	// NodeCall is a method invocation. Target holds the callee's method ID.
	NodeCall NodeKind = "call"
	// NodeNew is an object construction of Type.
	NodeNew NodeKind = "new"
	// NodeNewArray is an array creation of element Type.
	NodeNewArray NodeKind = "new_array"
	// NodeLocal is a local declaration named Name; Suppress lists its
	// suppression keys and Children holds the initializer.
	NodeLocal NodeKind = "local"
	// NodeBlock groups children with no effect of its own.
	NodeBlock NodeKind = "block"
	// NodeClass declares the local type named Type in place.
	NodeClass NodeKind = "class"
)

// Node is one element of a method body or initializer.
//
// Only the kinds above are meaningful to the checker; anything else a
// front-end sees is flattened into blocks.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Target   string   `json:"target,omitempty"`
	Name     string   `json:"name,omitempty"`
	Type     string   `json:"type,omitempty"`
	Suppress []string `json:"suppress,omitempty"`
	Children []Node   `json:"children,omitempty"`
	Pos      Pos      `json:"pos"`
}

// IsAllocationSite reports whether n is checked against the enclosing effect.
func (n Node) IsAllocationSite() bool {
	switch n.Kind {
	case NodeCall, NodeNew, NodeNewArray:
		return true
	}
	return false
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if fn(n) {
			Walk(n.Children, fn)
		}
	}
}
