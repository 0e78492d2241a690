package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/checker"
	"github.com/roach88/noalloc/internal/compiler"
	"github.com/roach88/noalloc/internal/config"
	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/frontend"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/model"
)

// ErrCodeConfig marks an unreadable or invalid configuration.
const ErrCodeConfig = "E008"

// loadConfig reads the configuration for a command working on paths.
// Without --config, a .noalloc file is looked up in the first path (or
// its directory, when it names a file).
func loadConfig(opts *RootOptions, paths []string, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Dir:   configDir(paths),
		File:  opts.Config,
		Flags: cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	// An explicit --format, or one set by a caller without the root
	// command, wins over the config file.
	if f := cmd.Flags().Lookup("format"); f == nil || f.Changed {
		cfg.Format = opts.Format
	}
	return cfg, nil
}

func configDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	info, err := os.Stat(paths[0])
	if err == nil && !info.IsDir() {
		return filepath.Dir(paths[0])
	}
	return paths[0]
}

// newLogger returns a text logger on w at Info level, or Debug when
// verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, format string, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// session is what every checking command starts from.
type session struct {
	cfg       *config.Config
	formatter *OutputFormatter
	logger    *slog.Logger
}

// startSession loads the configuration and sets up output. Config errors
// are reported and returned as command errors.
func startSession(opts *RootOptions, paths []string, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts, paths, cmd)
	if err != nil {
		formatter := newFormatter(opts, opts.Format, cmd)
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	formatter := newFormatter(opts, cfg.Format, cmd)
	s := &session{
		cfg:       cfg,
		formatter: formatter,
		logger:    newLogger(formatter.GetErrWriter(), opts.Verbose || cfg.Trace),
	}
	if cfg.File != "" {
		s.formatter.VerboseLog("Using config %s", cfg.File)
	}
	return s, nil
}

// load reads and validates the program under paths, reporting every
// error. A nil result means the errors were already written.
func (s *session) load(ctx context.Context, paths []string) (*frontend.Result, error) {
	result, errs := frontend.Load(ctx, paths, frontend.Options{
		Mode:   frontend.LoadModeCollectAll,
		Logger: s.logger,
	})
	if len(errs) > 0 {
		return nil, outputLoadErrors(s.formatter, errs)
	}
	s.formatter.VerboseLog("Loaded %d file(s): %d cue, %d java, %d ir",
		len(result.Files), result.CUEFiles, result.JavaFiles, result.IRFiles)
	return result, nil
}

// checked is one completed checking pass.
type checked struct {
	hierarchy   *model.Hierarchy
	checker     *checker.Checker
	diagnostics []diag.Diagnostic
}

// check runs one pass over p with the session's settings. Diagnostics
// are returned in position order.
func (s *session) check(p *ir.Program) checked {
	opts := s.cfg.CheckerOptions()
	opts.Logger = s.logger

	h := model.New(p, opts.Markers)
	collector := diag.NewCollector()
	c := checker.New(h, collector, opts)
	c.Check()

	return checked{hierarchy: h, checker: c, diagnostics: collector.Sorted()}
}

// describeLoadError extracts a code, message and position from a load
// or validation error.
func describeLoadError(err error) CLIError {
	var loadErr *frontend.LoadError
	if errors.As(err, &loadErr) {
		e := CLIError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.File != "" {
			e.Details = loadErr.Pos
		}
		return e
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		e := CLIError{Code: validationErr.Code, Message: fmt.Sprintf("%s: %s", validationErr.Field, validationErr.Message)}
		if validationErr.Pos.File != "" {
			e.Details = validationErr.Pos
		}
		return e
	}
	return CLIError{Code: frontend.ErrCodeGeneric, Message: err.Error()}
}

// outputLoadErrors reports load and validation errors. They are
// command-level errors (exit code 2).
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	described := make([]CLIError, len(errs))
	for i, err := range errs {
		described[i] = describeLoadError(err)
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Error:  &described[0],
			Data:   described,
		}
		if err := encodeResponse(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Loading failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range described {
		if pos, ok := e.Details.(ir.Pos); ok {
			fmt.Fprintln(formatter.Writer, pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("loading failed with %d error(s): %s", len(errs), described[0].Code))
}
