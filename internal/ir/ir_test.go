package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	tests := []struct {
		sig        string
		wantName   string
		wantParams []string
		wantErr    bool
	}{
		{"m()", "m", nil, false},
		{"m", "m", nil, false},
		{"noAllocateMemory(int)", "noAllocateMemory", []string{"int"}, false},
		{"put(String, Map<K, V>)", "put", []string{"String", "Map<K,V>"}, false},
		{"<init>(int,long)", ConstructorName, []string{"int", "long"}, false},
		{"m(", "", nil, true},
		{"(int)", "", nil, true},
		{"m(int,)", "", nil, true},
		{"", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			name, params, err := ParseSignature(tt.sig)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestParseMethodRef(t *testing.T) {
	owner, name, params, err := ParseMethodRef("pkg.Outer.helper(int)")
	require.NoError(t, err)
	assert.Equal(t, "pkg.Outer", owner)
	assert.Equal(t, "helper", name)
	assert.Equal(t, []string{"int"}, params)

	_, _, _, err = ParseMethodRef("helper(int)")
	assert.Error(t, err, "owner is required")
}

func TestMethodID(t *testing.T) {
	m := &Method{Owner: "Sub", Name: "m", Params: []string{"int", "String"}}
	assert.Equal(t, "Sub.m(int,String)", m.ID())
	assert.Equal(t, "m(int,String)", m.Signature())
	assert.False(t, m.IsConstructor())

	ctor := &Method{Owner: "Sub", Name: ConstructorName}
	assert.True(t, ctor.IsConstructor())
	assert.Equal(t, "Sub.<init>()", ctor.ID())
}

func TestPos(t *testing.T) {
	assert.Equal(t, "-", Pos{}.String())
	assert.Equal(t, "a.cue", Pos{File: "a.cue"}.String())
	assert.Equal(t, "a.cue:3:7", Pos{File: "a.cue", Line: 3, Column: 7}.String())
	assert.True(t, Pos{Line: 2, Column: 9}.Before(Pos{Line: 3, Column: 1}))
	assert.True(t, Pos{Line: 3, Column: 1}.Before(Pos{Line: 3, Column: 2}))
	assert.False(t, Pos{Line: 3, Column: 2}.Before(Pos{Line: 3, Column: 2}))
}

func TestWalk_PreOrderAndPrune(t *testing.T) {
	body := []Node{
		{Kind: NodeLocal, Name: "x", Children: []Node{
			{Kind: NodeCall, Target: "A.f()", Children: []Node{
				{Kind: NodeNew, Type: "Integer"},
			}},
		}},
		{Kind: NodeClass, Type: "Anon", Children: []Node{
			{Kind: NodeNewArray, Type: "int"},
		}},
	}

	var kinds []NodeKind
	Walk(body, func(n Node) bool {
		kinds = append(kinds, n.Kind)
		return n.Kind != NodeClass
	})
	assert.Equal(t, []NodeKind{NodeLocal, NodeCall, NodeNew, NodeClass}, kinds)
}

func TestNode_IsAllocationSite(t *testing.T) {
	sites := map[NodeKind]bool{
		NodeCall:     true,
		NodeNew:      true,
		NodeNewArray: true,
		NodeLocal:    false,
		NodeBlock:    false,
		NodeClass:    false,
	}
	for kind, want := range sites {
		assert.Equal(t, want, Node{Kind: kind}.IsAllocationSite(), "%s", kind)
	}
}

func TestMarshalCanonical(t *testing.T) {
	obj := Object{
		"b":    Int(2),
		"a":    String("<x & y>"),
		"list": Array{Bool(true), String("z")},
	}
	data, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x & y>","b":2,"list":[true,"z"]}`, string(data))
}

func TestMarshalCanonical_RejectsFloatAndNull(t *testing.T) {
	_, err := MarshalCanonical(1.5)
	assert.Error(t, err)
	_, err = MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	data, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(data))

	data, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(data), "literal backslash text stays escaped")
}

func TestMarshalCanonical_NFC(t *testing.T) {
	data, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(data))
}

func TestDiagnosticID_Stable(t *testing.T) {
	pos := Pos{File: "a.cue", Line: 4, Column: 2}
	id1, err := DiagnosticID("InvalidCall", "A.f()", pos, map[string]string{"target": "B.g()"})
	require.NoError(t, err)
	id2, err := DiagnosticID("InvalidCall", "A.f()", pos, map[string]string{"target": "B.g()"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	id3, err := DiagnosticID("InvalidCall", "A.f()", Pos{File: "a.cue", Line: 5, Column: 2}, map[string]string{"target": "B.g()"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestProgramHash(t *testing.T) {
	build := func() *Program {
		return &Program{Types: []*Type{
			{Name: "A", Kind: KindClass, Methods: []*Method{
				{Owner: "A", Name: "f", Annotations: []string{"NoAlloc"}, Body: []Node{{Kind: NodeNew, Type: "Integer"}}},
			}},
			{Name: "I", Kind: KindInterface},
		}}
	}
	h1, err := ProgramHash(build())
	require.NoError(t, err)
	h2, err := ProgramHash(build())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	changed := build()
	changed.Types[0].Methods[0].Annotations = []string{"MayAlloc"}
	h3, err := ProgramHash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
