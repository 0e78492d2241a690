//go:build cgo

package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMixedCUEAndJava(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model/super.cue", superCUE)
	writeFile(t, dir, "src/Sub.java", `
class Sub extends Super implements java.io.Serializable {
    void m() { new StringBuilder(); }
}
`)

	res, errs := Load(context.Background(), []string{dir}, quiet())
	require.Empty(t, errs, "unknown library supertypes are allowed once Java is loaded")
	assert.Equal(t, 1, res.JavaFiles)
	require.Len(t, res.Program.Types, 2)
	assert.Equal(t, "Sub", res.Program.Types[1].Name)
	assert.Contains(t, res.Program.Sources, res.Files[1])
}

func TestLoadJavaSyntaxError(t *testing.T) {
	_, errs := LoadSources(context.Background(), []Source{
		{Name: "Bad.java", Data: []byte("class A { void f( }")},
	}, quiet())
	require.Len(t, errs, 1)
	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeLoadFailed, le.Code)
	assert.Equal(t, "Bad.java", le.Pos.File)
}
