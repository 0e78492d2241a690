package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/config"
	"github.com/roach88/noalloc/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Program  string // program hash filter
}

// HistoryResult lists recorded runs.
type HistoryResult struct {
	Runs []store.Run `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded check runs",
		Long: `List the runs recorded by "noalloc check --db", oldest first.

Examples:
  noalloc history --db ./noalloc.db
  noalloc history --db ./noalloc.db --program 3f2a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only runs of the program with this hash")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
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
	var runs []store.Run
	if opts.Program != "" {
		runs, err = st.RunsForProgram(ctx, opts.Program)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if s.formatter.Format == "json" {
		return encodeResponse(s.formatter.Writer, CLIResponse{Status: "ok", Data: HistoryResult{Runs: runs}})
	}
	return outputHistoryText(s.formatter, runs)
}

// ErrCodeNoDatabase marks a missing or unset history database.
const ErrCodeNoDatabase = "E009"

// errNoDatabase is returned when no history database is configured.
var errNoDatabase = errors.New(`no history database: pass --db or set "db" in the config file`)

// openHistory opens the configured history database. Unlike check, which
// creates it, reading commands require it to exist.
func openHistory(cfg *config.Config) (*store.Store, error) {
	if cfg.DB == "" {
		return nil, errNoDatabase
	}
	if cfg.DB != store.MemoryPath {
		if _, err := os.Stat(cfg.DB); err != nil {
			return nil, fmt.Errorf("history database %s: %w", cfg.DB, err)
		}
	}
	return store.Open(cfg.DB)
}

func outputHistoryText(formatter *OutputFormatter, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tRUN\tPROGRAM\tFAILURES\tWARNINGS\tSTATUS")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\n",
			run.Seq, run.ID, shortHash(run.ProgramHash), run.Failures, run.Warnings, runStatus(run))
	}
	return w.Flush()
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}

func runStatus(run store.Run) string {
	if run.Passed() {
		return "passed"
	}
	return "failed"
}
