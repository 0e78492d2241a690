// Package javasrc reads Java source files into an ir.Program.
//
// Parsing uses tree-sitter and therefore needs cgo; without it Parse
// returns ErrUnavailable. The translation keeps only what the checker looks
// at: type declarations with their supertypes, method signatures and
// annotations, and the allocation sites of each body (method invocations,
// explicit constructor calls, object and array creation). Everything else is
// flattened away.
//
// Call targets are resolved by name and argument count against the
// declarations of the parsed files. Among overloads of the same arity, one
// whose parameters accept the argument types that literals, casts and typed
// locals reveal is preferred. A call that cannot be resolved becomes an
// external call whose parameters are written as "?".
package javasrc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/noalloc/internal/ir"
)

// ErrUnavailable is returned when the binary was built without cgo.
var ErrUnavailable = errors.New("java front-end unavailable: built without cgo")

// UnknownParam stands for an argument whose type was not resolved.
const UnknownParam = "?"

// File is one Java compilation unit.
type File struct {
	Name   string
	Source []byte
}

// ParseError reports a syntax error in a Java file.
type ParseError struct {
	Pos     ir.Pos
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// eraseType normalises a type as written in source: type arguments and
// whitespace are dropped and varargs become an array.
func eraseType(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth > 0:
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.HasSuffix(s, "...") {
		s = strings.TrimSuffix(s, "...") + "[]"
	}
	return s
}

// splitArray separates "int[][]" into "int" and "[][]".
func splitArray(t string) (elem, dims string) {
	if i := strings.IndexByte(t, '['); i >= 0 {
		return t[:i], t[i:]
	}
	return t, ""
}

// elementType strips one array dimension; it returns "" for a non-array.
func elementType(t string) string {
	if !strings.HasSuffix(t, "[]") {
		return ""
	}
	return strings.TrimSuffix(t, "[]")
}

// primitiveWidening lists the types each primitive widens to.
var primitiveWidening = map[string][]string{
	"boolean": {},
	"byte":    {"short", "int", "long", "float", "double"},
	"short":   {"int", "long", "float", "double"},
	"char":    {"int", "long", "float", "double"},
	"int":     {"long", "float", "double"},
	"long":    {"float", "double"},
	"float":   {"double"},
	"double":  {},
}

// boxes maps each primitive to its wrapper class.
var boxes = map[string]string{
	"boolean": "Boolean",
	"byte":    "Byte",
	"short":   "Short",
	"char":    "Character",
	"int":     "Integer",
	"long":    "Long",
	"float":   "Float",
	"double":  "Double",
}

// stringLiteral returns the value of a Java string literal.
func stringLiteral(lit string) string {
	if s, err := strconv.Unquote(lit); err == nil {
		return s
	}
	return strings.Trim(lit, `"`)
}

// simpleName returns the last segment of a dotted name.
func simpleName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// externalTarget formats the target of an unresolved call.
func externalTarget(owner, name string, arity int) string {
	if owner == "" {
		owner = UnknownParam
	}
	params := make([]string, arity)
	for i := range params {
		params[i] = UnknownParam
	}
	return ir.MethodID(owner, name, params)
}
