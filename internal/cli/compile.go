package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/frontend"
	"github.com/roach88/noalloc/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the program written by compile, with the hash
// that identifies it in run history.
type CompilationResult struct {
	IRVersion   string      `json:"ir_version"`
	ProgramHash string      `json:"program_hash"`
	Program     *ir.Program `json:"program"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <paths...>",
		Short: "Compile inputs to the program IR",
		Long: `Compile CUE hierarchy descriptions and Java sources to the
language-neutral program IR.

The written file can be passed back to check, validate or effects.

Examples:
  noalloc compile ./src -o program.json
  noalloc check program.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, paths []string, cmd *cobra.Command) error {
	s, err := startSession(opts.RootOptions, paths, cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	loaded, err := s.load(ctx, paths)
	if err != nil {
		return err
	}

	for _, t := range loaded.Program.Types {
		s.formatter.VerboseLog("Compiled %s %s: %d method(s)", t.Kind, t.Name, len(t.Methods))
	}

	hash, err := ir.ProgramHash(loaded.Program)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash program", err)
	}

	if opts.Output != "" {
		if err := writeIRToFile(loaded.Program, opts.Output); err != nil {
			_ = s.formatter.Error(frontend.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	result := &CompilationResult{
		IRVersion:   ir.IRVersion,
		ProgramHash: hash,
		Program:     loaded.Program,
	}
	return outputCompileSuccess(s.formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	summary := summarise(result.Program)
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d type(s), %d method(s)\n\n", summary.Types, summary.Methods)

	fmt.Fprintln(formatter.Writer, "Types:")
	for _, t := range result.Program.Types {
		suffix := ""
		if t.Local {
			suffix = " (local)"
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %d method(s)%s\n", t.Kind, t.Name, len(t.Methods), suffix)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Program hash: %s\n", result.ProgramHash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote program IR to %s\n", outputFile)
	}

	return nil
}

// writeIRToFile writes p as indented JSON. Canonical JSON without
// indentation is used only for hashing.
func writeIRToFile(p *ir.Program, filename string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
