package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/frontend"
	"github.com/roach88/noalloc/internal/model"
)

// Scenario defines one effect-checking test.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sources are inline input files keyed by file name. The extension
	// selects the front-end, as for files on disk.
	Sources map[string]string `yaml:"sources,omitempty"`

	// Files lists input files on disk, relative to the scenario file.
	Files []string `yaml:"files,omitempty"`

	// Options adjusts the checker.
	Options Options `yaml:"options,omitempty"`

	// Assertions validate the check's outcome.
	Assertions []Assertion `yaml:"assertions"`

	// BaseDir is the directory Files were resolved against.
	BaseDir string `yaml:"-"`
}

// Options are the checker settings a scenario may override.
type Options struct {
	SuppressKey string  `yaml:"suppress_key,omitempty"`
	Markers     Markers `yaml:"markers,omitempty"`
	Trace       bool    `yaml:"trace,omitempty"`
}

// Markers overrides the effect annotation names.
type Markers struct {
	NoAlloc  string `yaml:"no_alloc,omitempty"`
	MayAlloc string `yaml:"may_alloc,omitempty"`
}

// MarkerNames returns the names to check with, defaulting unset ones.
func (m Markers) MarkerNames() model.MarkerNames {
	names := model.DefaultMarkerNames()
	if m.NoAlloc != "" {
		names.NoAlloc = m.NoAlloc
	}
	if m.MayAlloc != "" {
		names.MayAlloc = m.MayAlloc
	}
	return names
}

// Assertion validates one aspect of a result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind filters diagnostics by kind key or display name
	// (diagnostic_count, diagnostic_at).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of diagnostics (diagnostic_count).
	Count int `yaml:"count,omitempty"`

	// File and Line locate a diagnostic (diagnostic_at).
	File string `yaml:"file,omitempty"`
	Line int    `yaml:"line,omitempty"`

	// Method is a method ID: the reporting method for diagnostic_at, the
	// method to resolve for effect.
	Method string `yaml:"method,omitempty"`

	// Message must be contained in the diagnostic's message (diagnostic_at).
	Message string `yaml:"message,omitempty"`

	// Effect is the expected resolved effect (effect).
	Effect string `yaml:"effect,omitempty"`

	// Code is the expected loader error code (load_error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertDiagnosticCount = "diagnostic_count"
	AssertDiagnosticAt    = "diagnostic_at"
	AssertNoDiagnostics   = "no_diagnostics"
	AssertEffect          = "effect"
	AssertLoadError       = "load_error"
)

// ExpectsLoadError reports whether the scenario asserts a load failure.
func (s *Scenario) ExpectsLoadError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertLoadError {
			return true
		}
	}
	return false
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving relative file paths
// against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.BaseDir = baseDir
	for i, f := range scenario.Files {
		if !filepath.IsAbs(f) && baseDir != "" {
			scenario.Files[i] = filepath.Join(baseDir, f)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Inputs returns the scenario's input files: inline sources sorted by name,
// then files from disk in the order listed.
func (s *Scenario) Inputs() ([]frontend.Source, error) {
	names := make([]string, 0, len(s.Sources))
	for name := range s.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	inputs := make([]frontend.Source, 0, len(names)+len(s.Files))
	for _, name := range names {
		inputs = append(inputs, frontend.Source{Name: name, Data: []byte(s.Sources[name])})
	}
	for _, f := range s.Files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		inputs = append(inputs, frontend.Source{Name: filepath.ToSlash(f), Data: data})
	}
	return inputs, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Sources) == 0 && len(s.Files) == 0 {
		return fmt.Errorf("sources or files are required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, f := range s.Files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", f)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Kind != "" {
		if _, err := diag.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}

	switch a.Type {
	case AssertDiagnosticCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic_count", index)
		}
	case AssertDiagnosticAt:
		if a.File == "" || a.Line <= 0 {
			return fmt.Errorf("assertions[%d]: file and line are required for diagnostic_at", index)
		}
	case AssertNoDiagnostics:
	case AssertEffect:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for effect", index)
		}
		if _, err := effect.Parse(a.Effect); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertLoadError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for load_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
