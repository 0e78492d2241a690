package effect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var all = []Effect{NoAlloc, MayAlloc}

func TestCompare_Reflexive(t *testing.T) {
	for _, e := range all {
		assert.Equal(t, 0, Compare(e, e), "compare(%s, %s)", e, e)
	}
}

func TestCompare_Order(t *testing.T) {
	assert.Equal(t, -1, Compare(NoAlloc, MayAlloc))
	assert.Equal(t, 1, Compare(MayAlloc, NoAlloc))
}

func TestMeet(t *testing.T) {
	assert.Equal(t, NoAlloc, Meet(NoAlloc, MayAlloc))
	assert.Equal(t, NoAlloc, Meet(MayAlloc, NoAlloc))
	assert.Equal(t, MayAlloc, Meet(MayAlloc, MayAlloc))
}

func TestMeet_Laws(t *testing.T) {
	for _, a := range all {
		assert.Equal(t, a, Meet(a, a), "idempotent")
		for _, b := range all {
			assert.Equal(t, Meet(a, b), Meet(b, a), "commutative")
			for _, c := range all {
				assert.Equal(t, Meet(Meet(a, b), c), Meet(a, Meet(b, c)), "associative")
			}
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Effect
		wantErr bool
	}{
		{"NoAlloc", NoAlloc, false},
		{"mayalloc", MayAlloc, false},
		{" MAYALLOC ", MayAlloc, false},
		{"Pure", MayAlloc, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffect_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Effect{"e": NoAlloc})
	require.NoError(t, err)
	assert.Equal(t, `{"e":"NoAlloc"}`, string(data))

	var decoded map[string]Effect
	require.NoError(t, json.Unmarshal([]byte(`{"e":"MayAlloc"}`), &decoded))
	assert.Equal(t, MayAlloc, decoded["e"])
}

func TestNewRange(t *testing.T) {
	no, may := NoAlloc, MayAlloc

	_, ok := NewRange(nil, nil)
	assert.False(t, ok, "no ancestors yields no range")

	r, ok := NewRange(&no, nil)
	require.True(t, ok)
	assert.Equal(t, Range{Min: NoAlloc, Max: NoAlloc}, r)
	assert.False(t, r.Conflicting())

	r, ok = NewRange(nil, &may)
	require.True(t, ok)
	assert.Equal(t, Range{Min: MayAlloc, Max: MayAlloc}, r)
	assert.Equal(t, MayAlloc, r.Default())

	r, ok = NewRange(&no, &may)
	require.True(t, ok)
	assert.True(t, r.Conflicting())
	assert.Equal(t, NoAlloc, r.Default(), "conflicting range resolves to the meet")
	assert.Equal(t, "[NoAlloc, MayAlloc]", r.String())
}

func TestMarkers(t *testing.T) {
	var none Markers
	assert.True(t, none.None())
	_, ok := none.Explicit()
	assert.False(t, ok)

	e, ok := MarkMayAlloc.Explicit()
	require.True(t, ok)
	assert.Equal(t, MayAlloc, e)
	assert.True(t, MarkMayAlloc.OnlyMayAlloc())

	both := MarkNoAlloc | MarkMayAlloc
	assert.True(t, both.Conflicting())
	assert.False(t, both.OnlyMayAlloc())
	e, ok = both.Explicit()
	require.True(t, ok)
	assert.Equal(t, NoAlloc, e, "NoAlloc wins when both markers are present")
	assert.Equal(t, "NoAlloc+MayAlloc", both.String())
}
