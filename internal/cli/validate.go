package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/ir"
)

// ValidationResult summarises a valid program.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Files      []string `json:"files"`
	Types      int      `json:"types"`
	Interfaces int      `json:"interfaces"`
	Methods    int      `json:"methods"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <paths...>",
		Short: "Validate inputs without checking effects",
		Long: `Load the given files and validate the program they describe.

Reports syntax errors, duplicate types and methods, unknown supertypes,
inheritance cycles and malformed nodes without running the effect check.
Faster than check for development feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	s, err := startSession(opts, paths, cmd)
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

	result := summarise(loaded.Program)
	result.Files = loaded.Files
	return outputValidateSuccess(s.formatter, result)
}

// summarise counts the declarations of p.
func summarise(p *ir.Program) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, t := range p.Types {
		result.Types++
		if t.IsInterface() {
			result.Interfaces++
		}
		result.Methods += len(t.Methods)
	}
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Program valid: %d type(s) (%d interface(s)), %d method(s)\n",
		result.Types, result.Interfaces, result.Methods)
	return nil
}
