//go:build cgo

package javasrc

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/roach88/noalloc/internal/ir"
)

// Parser wraps a tree-sitter parser configured for Java. A Parser is not
// safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a Java parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{parser: p}
}

// Available reports whether Java parsing is compiled in.
func Available() bool {
	return true
}

// Parse translates files into one program. Types from every file are
// declared before any body is read, so calls may cross files.
func (p *Parser) Parse(ctx context.Context, files ...File) (*ir.Program, error) {
	b := newBuilder()
	for _, f := range files {
		tree, err := p.parser.ParseCtx(ctx, nil, f.Source)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		root := tree.RootNode()
		src := &sourceFile{name: f.Name, src: f.Source, tree: tree}
		if root.HasError() {
			return nil, syntaxError(src, root)
		}
		b.files = append(b.files, src)
		b.prog.Sources = append(b.prog.Sources, f.Name)
	}

	for _, f := range b.files {
		b.declareTypes(f, f.tree.RootNode(), nil)
	}
	for _, d := range b.order {
		b.declareMembers(d)
	}
	for _, d := range b.roots {
		b.buildBodies(d)
	}
	return b.prog, nil
}

// sourceFile keeps a parsed tree alive alongside its source.
type sourceFile struct {
	name string
	src  []byte
	tree *sitter.Tree
}

func (f *sourceFile) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.src)
}

func (f *sourceFile) pos(n *sitter.Node) ir.Pos {
	pt := n.StartPoint()
	return ir.Pos{File: f.name, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
}

func (f *sourceFile) end(n *sitter.Node) ir.Pos {
	pt := n.EndPoint()
	return ir.Pos{File: f.name, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
}

// syntaxError locates the first ERROR or MISSING node under root.
func syntaxError(f *sourceFile, root *sitter.Node) *ParseError {
	var found *sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || found != nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if found == nil {
		return &ParseError{Pos: ir.Pos{File: f.name}, Message: "syntax error"}
	}
	if found.IsMissing() {
		return &ParseError{Pos: f.pos(found), Message: fmt.Sprintf("syntax error: missing %s", found.Type())}
	}
	return &ParseError{Pos: f.pos(found), Message: fmt.Sprintf("syntax error near %q", truncate(f.text(found), 40))}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Helpers over tree-sitter nodes.

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment", "comment":
		return true
	}
	return false
}

// namedChildren returns the named, non-comment children of n.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || isComment(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// childOfType returns the first named child of n with type t.
func childOfType(n *sitter.Node, t string) *sitter.Node {
	for _, c := range namedChildren(n) {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// childrenOfType returns every named child of n with type t.
func childrenOfType(n *sitter.Node, t string) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// hasKeyword reports whether a modifiers node contains keyword kw.
func hasKeyword(mods *sitter.Node, kw string) bool {
	if mods == nil {
		return false
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		if c := mods.Child(i); c != nil && c.Type() == kw {
			return true
		}
	}
	return false
}

// findNodes collects descendants of root (root included) with type t.
func findNodes(root *sitter.Node, t string) []*sitter.Node {
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == t {
			out = append(out, n)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return out
}
