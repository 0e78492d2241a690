package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noalloc/internal/ir"
)

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func validProgram() *ir.Program {
	return &ir.Program{Types: []*ir.Type{
		{Name: "Super", Kind: ir.KindClass, Methods: []*ir.Method{
			{Owner: "Super", Name: "m", Annotations: []string{"NoAlloc"}},
		}},
		{Name: "Iface", Kind: ir.KindInterface, Methods: []*ir.Method{
			{Owner: "Iface", Name: "m"},
		}},
		{Name: "Sub", Kind: ir.KindClass, Extends: "Super", Implements: []string{"Iface"}, Methods: []*ir.Method{
			{Owner: "Sub", Name: "m", Body: []ir.Node{
				{Kind: ir.NodeLocal, Name: "x", Children: []ir.Node{{Kind: ir.NodeNew, Type: "Integer"}}},
				{Kind: ir.NodeCall, Target: "Super.m()"},
				{Kind: ir.NodeBlock, Children: []ir.Node{{Kind: ir.NodeNewArray, Type: "int"}}},
				{Kind: ir.NodeClass, Type: "Sub$1"},
			}},
		}},
		{Name: "Sub$1", Kind: ir.KindClass, Local: true, Outer: "Sub"},
	}}
}

func TestValidateValidProgram(t *testing.T) {
	assert.Empty(t, Validate(validProgram(), ValidateOptions{}))
	assert.Empty(t, Validate(*validProgram(), ValidateOptions{}), "value form accepted")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope", ValidateOptions{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateDuplicates(t *testing.T) {
	p := validProgram()
	p.Types = append(p.Types, &ir.Type{Name: "Super", Kind: ir.KindClass, Pos: ir.Pos{File: "b.cue", Line: 3}})
	p.Types[0].Methods = append(p.Types[0].Methods, &ir.Method{Owner: "Super", Name: "m"})

	errs := Validate(p, ValidateOptions{})
	assert.ElementsMatch(t, []string{ErrDuplicateType, ErrDuplicateMethod}, codes(errs))
	for _, e := range errs {
		if e.Code == ErrDuplicateType {
			assert.Equal(t, 3, e.Pos.Line)
			assert.Contains(t, e.Error(), "[E101] b.cue:3:0")
		}
	}
}

func TestValidateUnknownSupertype(t *testing.T) {
	p := &ir.Program{Types: []*ir.Type{
		{Name: "A", Kind: ir.KindClass, Extends: "java.util.ArrayList", Implements: []string{"Runnable"}},
	}}
	assert.Equal(t, []string{ErrUnknownSupertype, ErrUnknownSupertype}, codes(Validate(p, ValidateOptions{})))
	assert.Empty(t, Validate(p, ValidateOptions{AllowUnknownSupertypes: true}))
}

func TestValidateKindMismatch(t *testing.T) {
	p := &ir.Program{Types: []*ir.Type{
		{Name: "I", Kind: ir.KindInterface},
		{Name: "C", Kind: ir.KindClass},
		{Name: "A", Kind: ir.KindClass, Extends: "I"},
		{Name: "B", Kind: ir.KindClass, Implements: []string{"C"}},
		{Name: "J", Kind: ir.KindInterface, Extends: "C"},
		{Name: "K", Kind: ir.KindInterface, Implements: []string{"C"}},
	}}
	errs := Validate(p, ValidateOptions{})
	assert.Equal(t, []string{ErrKindMismatch, ErrKindMismatch, ErrKindMismatch, ErrKindMismatch}, codes(errs))
	assert.Contains(t, errs[0].Message, `"I" is not a class`)
	assert.Contains(t, errs[1].Message, `"C" is not an interface`)
}

func TestValidateInheritanceCycle(t *testing.T) {
	p := &ir.Program{Types: []*ir.Type{
		{Name: "A", Kind: ir.KindClass, Extends: "B", Pos: ir.Pos{File: "a.cue", Line: 1}},
		{Name: "B", Kind: ir.KindClass, Extends: "A"},
	}}
	errs := Validate(p, ValidateOptions{})
	require.Equal(t, []string{ErrInheritanceCycle}, codes(errs))
	assert.Equal(t, "A", errs[0].Field)
	assert.Equal(t, 1, errs[0].Pos.Line)
	assert.Contains(t, errs[0].Message, "A -> B -> A")
}

func TestValidateMalformedNodes(t *testing.T) {
	p := &ir.Program{Types: []*ir.Type{
		{Name: "A", Kind: ir.KindClass,
			Initializers: []ir.Node{{Kind: ir.NodeNew}},
			Methods: []*ir.Method{
				{Owner: "A", Name: "f", Body: []ir.Node{
					{Kind: ir.NodeCall, Target: "f()"},
					{Kind: ir.NodeNewArray},
					{Kind: ir.NodeLocal, Children: []ir.Node{
						{Kind: ir.NodeNew, Type: "X"}, {Kind: ir.NodeNew, Type: "Y"},
					}},
					{Kind: ir.NodeKind("loop")},
				}},
				{Owner: "B", Name: "g"},
			}},
	}}
	errs := Validate(p, ValidateOptions{})
	assert.Equal(t, []string{
		ErrMalformedNode, // call without owner
		ErrMalformedNode, // new_array without type
		ErrMalformedNode, // local without name
		ErrMalformedNode, // local with two initializers
		ErrMalformedNode, // unknown kind
		ErrMalformedNode, // owner mismatch
		ErrMalformedNode, // initializer new without type
	}, codes(errs))
}

func TestValidateUnknownNestedClass(t *testing.T) {
	p := &ir.Program{Types: []*ir.Type{
		{Name: "A", Kind: ir.KindClass, Methods: []*ir.Method{
			{Owner: "A", Name: "f", Body: []ir.Node{
				{Kind: ir.NodeClass, Type: "Missing"},
				{Kind: ir.NodeClass, Type: "B"},
			}},
		}},
		{Name: "B", Kind: ir.KindClass},
	}}
	assert.Equal(t, []string{ErrUnknownNestedClass, ErrUnknownNestedClass}, codes(Validate(p, ValidateOptions{})))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "A.extends", Message: "boom", Code: ErrKindMismatch}
	assert.Equal(t, "[E104] A.extends: boom", e.Error())
}
