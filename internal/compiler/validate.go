package compiler

import (
	"fmt"

	"github.com/roach88/noalloc/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrUnsupportedIRType  = "E100" // unsupported IR type for validation
	ErrDuplicateType      = "E101" // two types share a name
	ErrDuplicateMethod    = "E102" // two methods share an ID
	ErrUnknownSupertype   = "E103" // extends/implements names an undeclared type
	ErrKindMismatch       = "E104" // class extends an interface, or similar
	ErrInheritanceCycle   = "E105" // a type inherits from itself
	ErrMalformedNode      = "E106" // node is missing its target, type or name
	ErrUnknownNestedClass = "E107" // class node names an undeclared or non-local type
)

// ValidationError represents a structural problem in a program.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Pos     ir.Pos `json:"pos,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateOptions tunes validation per front-end.
type ValidateOptions struct {
	// AllowUnknownSupertypes skips E103. Java sources routinely extend
	// library types that are not part of the analysed program.
	AllowUnknownSupertypes bool
}

// Validate checks a compiled program before it is handed to the checker.
// Returns all errors found (does not fail-fast).
func Validate(v any, opts ValidateOptions) []ValidationError {
	switch p := v.(type) {
	case *ir.Program:
		return validateProgram(p, opts)
	case ir.Program:
		return validateProgram(&p, opts)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateProgram(p *ir.Program, opts ValidateOptions) []ValidationError {
	var errs []ValidationError

	types := make(map[string]*ir.Type, len(p.Types))
	for i, t := range p.Types {
		// E101: duplicate type
		if prev, dup := types[t.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types[%d]", i),
				Message: fmt.Sprintf("duplicate type %q (first declared at %s)", t.Name, prev.Pos),
				Code:    ErrDuplicateType,
				Pos:     t.Pos,
			})
			continue
		}
		types[t.Name] = t
	}

	methodIDs := make(map[string]bool)
	for _, t := range p.Types {
		errs = append(errs, validateSupertypes(t, types, opts)...)

		for _, m := range t.Methods {
			// E102: duplicate method
			if methodIDs[m.ID()] {
				errs = append(errs, ValidationError{
					Field:   m.ID(),
					Message: fmt.Sprintf("duplicate method %q", m.ID()),
					Code:    ErrDuplicateMethod,
					Pos:     m.Pos,
				})
			}
			methodIDs[m.ID()] = true

			if m.Owner != t.Name {
				errs = append(errs, ValidationError{
					Field:   m.ID(),
					Message: fmt.Sprintf("method owner %q does not match declaring type %q", m.Owner, t.Name),
					Code:    ErrMalformedNode,
					Pos:     m.Pos,
				})
			}
			errs = append(errs, validateNodes(m.Body, m.ID(), types)...)
		}
		errs = append(errs, validateNodes(t.Initializers, t.Name+".initializers", types)...)
	}

	// E105: inheritance cycles
	for _, c := range AnalyzeInheritance(p) {
		var pos ir.Pos
		if t, ok := types[c.Path[0]]; ok {
			pos = t.Pos
		}
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    ErrInheritanceCycle,
			Pos:     pos,
		})
	}

	return errs
}

func validateSupertypes(t *ir.Type, types map[string]*ir.Type, opts ValidateOptions) []ValidationError {
	var errs []ValidationError
	check := func(field, name string, wantInterface bool) {
		st, ok := types[name]
		if !ok {
			// E103: unknown supertype
			if !opts.AllowUnknownSupertypes {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%s refers to undeclared type %q", t.Name, name),
					Code:    ErrUnknownSupertype,
					Pos:     t.Pos,
				})
			}
			return
		}
		// E104: kind mismatch
		if st.IsInterface() != wantInterface {
			want := "a class"
			if wantInterface {
				want = "an interface"
			}
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s %s: %q is not %s", t.Kind, t.Name, name, want),
				Code:    ErrKindMismatch,
				Pos:     t.Pos,
			})
		}
	}

	if t.Extends != "" {
		if t.IsInterface() {
			errs = append(errs, ValidationError{
				Field:   t.Name + ".extends",
				Message: fmt.Sprintf("interface %s cannot have a superclass", t.Name),
				Code:    ErrKindMismatch,
				Pos:     t.Pos,
			})
		} else {
			check(t.Name+".extends", t.Extends, false)
		}
	}
	for i, name := range t.Implements {
		check(fmt.Sprintf("%s.implements[%d]", t.Name, i), name, true)
	}
	return errs
}

func validateNodes(nodes []ir.Node, owner string, types map[string]*ir.Type) []ValidationError {
	var errs []ValidationError
	malformed := func(n ir.Node, msg string) {
		errs = append(errs, ValidationError{
			Field:   owner,
			Message: fmt.Sprintf("%s node: %s", n.Kind, msg),
			Code:    ErrMalformedNode,
			Pos:     n.Pos,
		})
	}

	ir.Walk(nodes, func(n ir.Node) bool {
		switch n.Kind {
		case ir.NodeCall:
			if _, _, _, err := ir.ParseMethodRef(n.Target); err != nil {
				malformed(n, err.Error())
			}
		case ir.NodeNew, ir.NodeNewArray:
			if n.Type == "" {
				malformed(n, "missing type")
			}
		case ir.NodeLocal:
			if n.Name == "" {
				malformed(n, "missing name")
			}
			if len(n.Children) > 1 {
				malformed(n, "a local has at most one initializer")
			}
		case ir.NodeBlock:
		case ir.NodeClass:
			// E107: unknown nested class
			t, ok := types[n.Type]
			if !ok || !t.Local {
				errs = append(errs, ValidationError{
					Field:   owner,
					Message: fmt.Sprintf("class node refers to %q, which is not a declared local type", n.Type),
					Code:    ErrUnknownNestedClass,
					Pos:     n.Pos,
				})
			}
		default:
			malformed(n, "unknown node kind")
		}
		return true
	})
	return errs
}
