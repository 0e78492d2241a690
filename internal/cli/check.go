package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/frontend"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database    string // history database; overrides the config "db" key
	Watch       bool
	Trace       bool
	SuppressKey string
}

// CheckReport is the outcome of one check.
type CheckReport struct {
	Files       []string          `json:"files"`
	ProgramHash string            `json:"program_hash"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Failures    int               `json:"failures"`
	Warnings    int               `json:"warnings"`
	RunID       string            `json:"run_id,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <paths...>",
		Short: "Check allocation effects",
		Long: `Load, validate and check the given files and directories.

Directories are searched for .cue and .java files; .json programs written
by "noalloc compile" are read when named explicitly.

Exit codes:
  0 - No failures (warnings are allowed)
  1 - One or more failure diagnostics
  2 - Command error (invalid paths, load or validation errors, etc.)

Examples:
  noalloc check ./src
  noalloc check ./hierarchy.cue --db ./noalloc.db
  noalloc check ./src --watch
  noalloc check ./src --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-check whenever an input file changes")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "log every effect decision at debug level")
	cmd.Flags().StringVar(&opts.SuppressKey, "suppress-key", "", "suppression key recognised on local declarations")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	s, err := startSession(opts.RootOptions, paths, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Watch {
		return watchAndCheck(ctx, s, paths)
	}
	return s.checkOnce(ctx, paths)
}

// checkOnce loads, checks and reports paths once, recording the run when
// a database is configured.
func (s *session) checkOnce(ctx context.Context, paths []string) error {
	loaded, err := s.load(ctx, paths)
	if err != nil {
		return err
	}

	pass := s.check(loaded.Program)
	hash, err := ir.ProgramHash(loaded.Program)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}

	report := CheckReport{
		Files:       loaded.Files,
		ProgramHash: hash,
		Diagnostics: pass.diagnostics,
	}
	for _, d := range pass.diagnostics {
		if d.Severity == diag.SeverityWarning {
			report.Warnings++
		} else {
			report.Failures++
		}
	}

	if s.cfg.DB != "" {
		run, err := recordRun(ctx, s.cfg.DB, store.Run{ProgramHash: hash, Sources: loaded.Files}, pass.diagnostics)
		if err != nil {
			_ = s.formatter.Error(frontend.ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		report.RunID = run.ID
		s.logger.Debug("run recorded", "run", run.ID, "seq", run.Seq, "db", s.cfg.DB)
	}

	return outputCheckReport(s.formatter, report)
}

// recordRun stores one run in the database at path.
func recordRun(ctx context.Context, path string, run store.Run, diags []diag.Diagnostic) (store.Run, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Run{}, err
	}
	defer st.Close()
	return st.RecordRun(ctx, run, diags)
}

func outputCheckReport(formatter *OutputFormatter, report CheckReport) error {
	if report.Diagnostics == nil {
		report.Diagnostics = []diag.Diagnostic{}
	}

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: report, RunID: report.RunID}
		if report.Failures > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_CHECK_FAILED",
				Message: fmt.Sprintf("%d allocation effect failure(s)", report.Failures),
			}
		}
		if err := encodeResponse(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		printDiagnostics(formatter.Writer, report.Diagnostics)
		if report.RunID != "" {
			fmt.Fprintf(formatter.Writer, "Recorded run %s\n", report.RunID)
		}
	}

	if report.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d allocation effect failure(s)", report.Failures))
	}
	return nil
}
