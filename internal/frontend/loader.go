// Package frontend turns input files into one validated ir.Program.
//
// Three inputs are understood, by extension:
//
//	.cue   hierarchy descriptions, compiled one file at a time
//	.java  Java sources, parsed together so calls may cross files
//	.json  a program previously written by "noalloc compile"
//
// Programs from every file are merged in the order the files were found and
// validated as a whole.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/noalloc/internal/compiler"
	"github.com/roach88/noalloc/internal/ir"
	"github.com/roach88/noalloc/internal/javasrc"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants, shared by every command that loads input.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No input files found
	ErrCodeLoadFailed  = "E004" // File could not be read or parsed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE value could not be built or compiled
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     ir.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code of a load or validation error, or "" for
// any other error.
func ErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// Source is one named input held in memory.
type Source struct {
	Name string
	Data []byte
}

// Options configures a load.
type Options struct {
	Mode   LoadMode
	Logger *slog.Logger

	// SkipValidation returns the merged program without validating it.
	SkipValidation bool
}

// Result is a loaded program and what it was loaded from.
type Result struct {
	Program   *ir.Program
	Files     []string
	CUEFiles  int
	JavaFiles int
	IRFiles   int
}

// Extensions lists the file extensions Load picks up.
var Extensions = []string{".cue", ".java", ".json"}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads every supported file under paths and loads them as one
// program. A path may name a file or a directory; directories are walked
// recursively for .cue and .java files, skipping hidden directories.
func Load(ctx context.Context, paths []string, opts Options) (*Result, []error) {
	files, err := FindFiles(paths)
	if err != nil {
		return nil, []error{err}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no .cue, .java or .json files found in %s", strings.Join(paths, ", "))}}
	}

	sources := make([]Source, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", f, err)}}
		}
		sources = append(sources, Source{Name: filepath.ToSlash(f), Data: data})
	}
	return LoadSources(ctx, sources, opts)
}

// FindFiles expands paths into the sorted list of supported files.
func FindFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", root)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", root, err)}
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		var found []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			// IR files are only read when named explicitly.
			if supported(path) && !strings.EqualFold(filepath.Ext(path), ".json") {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning %s: %v", root, err)}
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// LoadSources loads in-memory sources as one program.
func LoadSources(ctx context.Context, sources []Source, opts Options) (*Result, []error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return opts.Mode == LoadModeFailFast
	}

	result := &Result{Program: &ir.Program{Types: []*ir.Type{}}}
	cueCtx := cuecontext.New()
	var java []javasrc.File

	for _, src := range sources {
		result.Files = append(result.Files, src.Name)
		switch strings.ToLower(filepath.Ext(src.Name)) {
		case ".cue":
			result.CUEFiles++
			p, err := compileCUE(cueCtx, src)
			if err != nil {
				if fail(err) {
					return result, errs
				}
				continue
			}
			merge(result.Program, p)
		case ".java":
			result.JavaFiles++
			java = append(java, javasrc.File{Name: src.Name, Source: src.Data})
		case ".json":
			result.IRFiles++
			var p ir.Program
			if err := json.Unmarshal(src.Data, &p); err != nil {
				if fail(&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decoding %s: %v", src.Name, err), Pos: ir.Pos{File: src.Name}}) {
					return result, errs
				}
				continue
			}
			merge(result.Program, &p)
		default:
			if fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported file type: %s", src.Name)}) {
				return result, errs
			}
		}
	}

	if len(java) > 0 {
		p, err := parseJava(ctx, java)
		if err != nil {
			if fail(err) {
				return result, errs
			}
		} else {
			merge(result.Program, p)
		}
	}

	logger.Debug("sources loaded",
		"cue", result.CUEFiles,
		"java", result.JavaFiles,
		"ir", result.IRFiles,
		"types", len(result.Program.Types))

	if len(errs) > 0 || opts.SkipValidation {
		return result, errs
	}

	// Java sources routinely extend library types that are not part of
	// the program.
	vopts := compiler.ValidateOptions{AllowUnknownSupertypes: result.JavaFiles > 0}
	for _, verr := range compiler.Validate(result.Program, vopts) {
		errs = append(errs, verr)
		if opts.Mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

func compileCUE(ctx *cue.Context, src Source) (*ir.Program, error) {
	v := ctx.CompileBytes(src.Data, cue.Filename(src.Name))
	p, err := compiler.CompileProgram(v)
	if err != nil {
		return nil, convertCompileError(err, src.Name)
	}
	p.Sources = []string{src.Name}
	return p, nil
}

func parseJava(ctx context.Context, files []javasrc.File) (*ir.Program, error) {
	if !javasrc.Available() {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: javasrc.ErrUnavailable.Error()}
	}
	p, err := javasrc.NewParser().Parse(ctx, files...)
	if err != nil {
		var pe *javasrc.ParseError
		if errors.As(err, &pe) {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: pe.Message, Pos: pe.Pos}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return p, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, file string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		le := &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     ir.Pos{File: file},
		}
		if compileErr.Pos.IsValid() {
			le.Pos = ir.Pos{File: compileErr.Pos.Filename(), Line: compileErr.Pos.Line(), Column: compileErr.Pos.Column()}
		}
		return le
	}
	return &LoadError{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("%s: %v", file, err),
		Pos:     ir.Pos{File: file},
	}
}

func merge(dst, src *ir.Program) {
	dst.Types = append(dst.Types, src.Types...)
	dst.Sources = append(dst.Sources, src.Sources...)
}
