package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Diff     string // earlier run to compare against
}

// ShowResult is one recorded run and its diagnostics.
type ShowResult struct {
	Run         store.Run         `json:"run"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Diff        *store.RunDiff    `json:"diff,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a recorded run",
		Long: `Show the diagnostics of a recorded run. The run may be named by any
unique prefix of its ID; without one the most recent run is shown.

With --diff, diagnostics are compared against an earlier run by identity:
"+" marks a diagnostic new in this run, "-" one that was resolved.

Examples:
  noalloc show --db ./noalloc.db
  noalloc show --db ./noalloc.db 0192f3
  noalloc show --db ./noalloc.db 0192f3 --diff 0192e1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return runShow(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database")
	cmd.Flags().StringVar(&opts.Diff, "diff", "", "compare against this earlier run")

	return cmd
}

func runShow(opts *ShowOptions, id string, cmd *cobra.Command) error {
	s, err := startSession(opts.RootOptions, nil, cmd)
	if err != nil {
		return err
	}

	st, err := openHistory(s.cfg)
	if err != nil {
		_ = s.formatter.Error(ErrCodeNoDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening history", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := findRun(ctx, st, id)
	if err != nil {
		_ = s.formatter.Error("E_RUN_NOT_FOUND", err.Error(), nil)
		return WrapExitError(ExitCommandError, "finding run", err)
	}

	diags, err := st.ReadDiagnostics(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read diagnostics", err)
	}
	result := ShowResult{Run: run, Diagnostics: diags}

	if opts.Diff != "" {
		from, err := findRun(ctx, st, opts.Diff)
		if err != nil {
			_ = s.formatter.Error("E_RUN_NOT_FOUND", err.Error(), nil)
			return WrapExitError(ExitCommandError, "finding run", err)
		}
		diff, err := st.Diff(ctx, from.ID, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to diff runs", err)
		}
		result.Diff = &diff
	}

	if s.formatter.Format == "json" {
		return encodeResponse(s.formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputShowText(s.formatter, result)
	return nil
}

// findRun resolves an ID prefix, or the latest run when id is empty.
func findRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		run, err := st.LastRun(ctx)
		if errors.Is(err, store.ErrRunNotFound) {
			return store.Run{}, errors.New("no runs recorded")
		}
		return run, err
	}
	full, err := st.ResolveRunID(ctx, id)
	if err != nil {
		return store.Run{}, err
	}
	return st.ReadRun(ctx, full)
}

func outputShowText(formatter *OutputFormatter, result ShowResult) {
	w := formatter.Writer
	run := result.Run

	fmt.Fprintf(w, "Run: %s (seq %d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "Program: %s\n", run.ProgramHash)
	fmt.Fprintf(w, "Checker: %s (IR %s)\n", run.CheckerVersion, run.IRVersion)
	fmt.Fprintf(w, "Status: %s\n", runStatus(run))
	if formatter.Verbose {
		for _, src := range run.Sources {
			fmt.Fprintf(w, "  source %s\n", src)
		}
	}
	fmt.Fprintln(w)

	if result.Diff == nil {
		printDiagnostics(w, result.Diagnostics)
		return
	}

	fmt.Fprintf(w, "=== Diff from %s ===\n", result.Diff.From)
	if result.Diff.Empty() {
		fmt.Fprintln(w, "  (no changes)")
		return
	}
	for _, d := range result.Diff.Added {
		fmt.Fprintf(w, "+ %s\n", d)
	}
	for _, d := range result.Diff.Resolved {
		fmt.Fprintf(w, "- %s\n", d)
	}
	fmt.Fprintf(w, "\n%d added, %d resolved\n", len(result.Diff.Added), len(result.Diff.Resolved))
}
