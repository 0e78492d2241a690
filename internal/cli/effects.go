package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/model"
	"github.com/roach88/noalloc/internal/resolver"
)

// EffectsOptions holds flags for the effects command.
type EffectsOptions struct {
	*RootOptions
	At     string // file:line[:col]
	Method string // Owner.name(params)
}

// EffectEntry explains the effect of one method.
type EffectEntry struct {
	Method    string   `json:"method"`
	Effect    string   `json:"effect"`
	Source    string   `json:"source"` // explicit, inherited or default
	Markers   string   `json:"markers"`
	Range     string   `json:"range,omitempty"`
	Overrides []string `json:"overrides,omitempty"`
	Pos       ir.Pos   `json:"pos"`
	Error     string   `json:"error,omitempty"`
}

// NewEffectsCommand creates the effects command.
func NewEffectsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EffectsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "effects <paths...>",
		Short: "Explain the effect of each method",
		Long: `Print the effective allocation effect of every method, and how it
was decided: an explicit marker, the effects of overridden methods, or
the MayAlloc default.

Examples:
  noalloc effects ./src
  noalloc effects ./src --method Buffer.fill()
  noalloc effects ./src --at src/Buffer.java:42`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEffects(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "only the method enclosing file:line[:col]")
	cmd.Flags().StringVar(&opts.Method, "method", "", "only the method with this ID")

	return cmd
}

func runEffects(opts *EffectsOptions, paths []string, cmd *cobra.Command) error {
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

	h := model.New(loaded.Program, s.cfg.Markers)
	r := resolver.New(h, diag.Discard, resolver.Options{Logger: s.logger, Trace: s.cfg.Trace})

	methods, err := selectMethods(h, opts)
	if err != nil {
		_ = s.formatter.Error("E_NO_METHOD", err.Error(), nil)
		return WrapExitError(ExitCommandError, "selecting methods", err)
	}

	entries := make([]EffectEntry, 0, len(methods))
	for _, m := range methods {
		entries = append(entries, explain(r, m))
	}
	return outputEffects(s.formatter, entries)
}

// selectMethods returns the methods the flags ask for, in declaration
// order.
func selectMethods(h *model.Hierarchy, opts *EffectsOptions) ([]*ir.Method, error) {
	switch {
	case opts.Method != "":
		m, ok := h.Method(opts.Method)
		if !ok {
			return nil, fmt.Errorf("no method %s", opts.Method)
		}
		return []*ir.Method{m}, nil
	case opts.At != "":
		pos, err := parsePos(opts.At)
		if err != nil {
			return nil, err
		}
		m, ok := h.EnclosingMethod(pos)
		if !ok {
			return nil, fmt.Errorf("no method encloses %s", opts.At)
		}
		return []*ir.Method{m}, nil
	}

	var methods []*ir.Method
	for _, t := range h.Types() {
		methods = append(methods, t.Methods...)
	}
	return methods, nil
}

// parsePos parses file:line or file:line:col.
func parsePos(s string) (ir.Pos, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return ir.Pos{}, fmt.Errorf("invalid position %q: want file:line[:col]", s)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line <= 0 {
		return ir.Pos{}, fmt.Errorf("invalid line in %q", s)
	}
	pos := ir.Pos{File: filepath.ToSlash(parts[0]), Line: line}
	if len(parts) == 3 {
		col, err := strconv.Atoi(parts[2])
		if err != nil || col <= 0 {
			return ir.Pos{}, fmt.Errorf("invalid column in %q", s)
		}
		pos.Column = col
	}
	return pos, nil
}

func explain(r *resolver.Resolver, m *ir.Method) EffectEntry {
	res, err := r.Explain(m)
	entry := EffectEntry{
		Method:  m.ID(),
		Effect:  res.Effect.String(),
		Markers: res.Markers.String(),
		Pos:     m.Pos,
	}
	switch {
	case res.Explicit:
		entry.Source = "explicit"
	case res.HasRange:
		entry.Source = "inherited"
	default:
		entry.Source = "default"
	}
	if res.HasRange {
		entry.Range = res.Range.String()
	}
	for _, o := range res.Overrides {
		entry.Overrides = append(entry.Overrides, fmt.Sprintf("%s (%s, %s)", o.ID, o.Via, o.Effect))
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

func outputEffects(formatter *OutputFormatter, entries []EffectEntry) error {
	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	w := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s", e.Method, e.Effect, e.Source)
		if e.Range != "" {
			fmt.Fprintf(w, " %s", e.Range)
		}
		if e.Error != "" {
			fmt.Fprintf(w, " (%s)", e.Error)
		}
		fmt.Fprintln(w)
		if formatter.Verbose {
			for _, o := range e.Overrides {
				fmt.Fprintf(w, "  overrides %s\t\t\n", o)
			}
		}
	}
	return w.Flush()
}
