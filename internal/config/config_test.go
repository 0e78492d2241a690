package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	def := Default()
	def.File = ""
	assert.Equal(t, def, cfg)
	assert.Equal(t, "alloceffect", cfg.SuppressKey)
	assert.Equal(t, "NoAlloc", cfg.Markers.NoAlloc)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, ".noalloc.yaml", `
trace: true
format: json
suppress_key: alloc
markers:
  no_alloc: Pure
db: history.db
`)

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.True(t, cfg.Trace)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "alloc", cfg.SuppressKey)
	assert.Equal(t, "Pure", cfg.Markers.NoAlloc)
	assert.Equal(t, "MayAlloc", cfg.Markers.MayAlloc, "unset keys keep defaults")
	assert.Equal(t, "history.db", cfg.DB)
	assert.Equal(t, path, cfg.File)

	opts := cfg.CheckerOptions()
	assert.True(t, opts.Trace)
	assert.Equal(t, "alloc", opts.SuppressKey)
	assert.Equal(t, "Pure", opts.Markers.NoAlloc)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "custom.json", `{"format": "json"}`)

	cfg, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)

	_, err = Load(Options{File: filepath.Join(dir, "missing.yaml")})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "file", ce.Field)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".noalloc.yaml", "suppress_key: fromfile\n")
	t.Setenv("NOALLOC_SUPPRESS_KEY", "fromenv")
	t.Setenv("NOALLOC_MARKERS_MAY_ALLOC", "Allocates")

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.SuppressKey)
	assert.Equal(t, "Allocates", cfg.Markers.MayAlloc)
}

func TestLoadFlagsOverrideEverything(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".noalloc.yaml", "format: json\ndb: file.db\n")
	t.Setenv("NOALLOC_DB", "env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("format", "text", "")
	flags.String("db", "", "")
	flags.Bool("trace", false, "")
	require.NoError(t, flags.Parse([]string{"--db", "flag.db", "--trace"}))

	cfg, err := Load(Options{Dir: dir, Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.DB)
	assert.True(t, cfg.Trace)
	assert.Equal(t, "json", cfg.Format, "unchanged flags do not override the file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"format", func(c *Config) { c.Format = "xml" }, "format"},
		{"suppress key", func(c *Config) { c.SuppressKey = "" }, "suppress_key"},
		{"empty marker", func(c *Config) { c.Markers.MayAlloc = "" }, "markers"},
		{"same markers", func(c *Config) { c.Markers.MayAlloc = c.Markers.NoAlloc }, "markers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".noalloc.yaml", "format: xml\n")

	_, err := Load(Options{Dir: dir})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "format", ce.Field)
	assert.Contains(t, err.Error(), "config error in field 'format'")
}
