package javasrc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/noalloc/internal/ir"
)

func TestEraseType(t *testing.T) {
	tests := map[string]string{
		"int":                           "int",
		"List<String>":                  "List",
		"Map<String, List<Integer>>":    "Map",
		"java.util.List<? extends T>[]": "java.util.List[]",
		"String...":                     "String[]",
		"int [ ] [ ]":                   "int[][]",
	}
	for in, want := range tests {
		assert.Equal(t, want, eraseType(in), in)
	}
}

func TestArrayHelpers(t *testing.T) {
	elem, dims := splitArray("int[][]")
	assert.Equal(t, "int", elem)
	assert.Equal(t, "[][]", dims)

	assert.Equal(t, "int[]", elementType("int[][]"))
	assert.Equal(t, "", elementType("int"))
}

func TestStringLiteral(t *testing.T) {
	assert.Equal(t, "alloceffect", stringLiteral(`"alloceffect"`))
	assert.Equal(t, "a\tb", stringLiteral(`"a\tb"`))
	assert.Equal(t, "broken", stringLiteral(`"broken`))
}

func TestExternalTarget(t *testing.T) {
	assert.Equal(t, "String.valueOf(?)", externalTarget("String", "valueOf", 1))
	assert.Equal(t, "?.run()", externalTarget("", "run", 0))

	owner, name, params, err := ir.ParseMethodRef(externalTarget("System.out", "println", 2))
	assert.NoError(t, err)
	assert.Equal(t, "System.out", owner)
	assert.Equal(t, "println", name)
	assert.Equal(t, []string{"?", "?"}, params)
}

func TestParseErrorFormat(t *testing.T) {
	err := &ParseError{Pos: ir.Pos{File: "A.java", Line: 3, Column: 7}, Message: "syntax error"}
	assert.Equal(t, "A.java:3:7: syntax error", err.Error())
}
