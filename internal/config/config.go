// Package config loads checker settings from defaults, a .noalloc file,
// NOALLOC_* environment variables and command flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/noalloc/internal/checker"
	"github.com/roach88/noalloc/internal/model"
)

// FileName is the base name of the config file searched for in the
// checked directory; any extension viper understands is accepted.
const FileName = ".noalloc"

// EnvPrefix prefixes environment overrides, e.g. NOALLOC_MARKERS_NO_ALLOC.
const EnvPrefix = "NOALLOC"

// Config holds every setting a command reads.
type Config struct {
	Trace       bool              `json:"trace" mapstructure:"trace"`
	Format      string            `json:"format" mapstructure:"format"`
	SuppressKey string            `json:"suppress_key" mapstructure:"suppress_key"`
	Markers     model.MarkerNames `json:"markers" mapstructure:"markers"`
	DB          string            `json:"db" mapstructure:"db"`

	// File is the config file that was read, if any.
	File string `json:"-" mapstructure:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Format:      "text",
		SuppressKey: checker.DefaultSuppressKey,
		Markers:     model.DefaultMarkerNames(),
	}
}

// Options locates the configuration sources.
type Options struct {
	// Dir is searched for a .noalloc file when File is empty.
	Dir string

	// File names an explicit config file, which must exist.
	File string

	// Flags, when set, override file and environment values for flags
	// the user changed. Flag names match keys, with '-' for '_'.
	Flags *pflag.FlagSet
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("trace", def.Trace)
	v.SetDefault("format", def.Format)
	v.SetDefault("suppress_key", def.SuppressKey)
	v.SetDefault("markers.no_alloc", def.Markers.NoAlloc)
	v.SetDefault("markers.may_alloc", def.Markers.MayAlloc)
	v.SetDefault("db", def.DB)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Field: "file", Message: err.Error()}
		}
	}

	if opts.Flags != nil {
		for _, key := range []string{"trace", "format", "suppress_key", "db"} {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &ConfigError{Field: key, Message: err.Error()}
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "file", Message: err.Error()}
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch c.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "format", Message: fmt.Sprintf("unknown format %q (want text or json)", c.Format)}
	}
	if c.SuppressKey == "" {
		return &ConfigError{Field: "suppress_key", Message: "must not be empty"}
	}
	if c.Markers.NoAlloc == "" || c.Markers.MayAlloc == "" {
		return &ConfigError{Field: "markers", Message: "marker names must not be empty"}
	}
	if c.Markers.NoAlloc == c.Markers.MayAlloc {
		return &ConfigError{Field: "markers", Message: fmt.Sprintf("no_alloc and may_alloc are both %q", c.Markers.NoAlloc)}
	}
	return nil
}

// CheckerOptions returns the checker settings this configuration selects.
func (c *Config) CheckerOptions() checker.Options {
	return checker.Options{
		Trace:       c.Trace,
		SuppressKey: c.SuppressKey,
		Markers:     c.Markers,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
