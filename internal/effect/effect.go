// Package effect implements the allocation effect lattice NoAlloc <: MayAlloc.
//
// This package has no internal imports. Every other package that reasons
// about effects depends on it, so it stays small and pure:
//   - Effect values are plain enumerations compared by value
//   - Range summarises the effects demanded by a method's ancestors
//   - Markers is the set of explicit effect annotations on a declaration
package effect

import (
	"fmt"
	"strings"
)

// Effect is the allocation effect of a method.
//
// The zero value is NoAlloc, the bottom of the lattice. MayAlloc is the top
// and the default for undeclared methods.
type Effect uint8

const (
	// NoAlloc means the method never allocates, directly or transitively.
	NoAlloc Effect = iota
	// MayAlloc means the method may allocate.
	MayAlloc
)

// String returns the annotation spelling of the effect.
func (e Effect) String() string {
	switch e {
	case NoAlloc:
		return "NoAlloc"
	case MayAlloc:
		return "MayAlloc"
	default:
		return fmt.Sprintf("Effect(%d)", uint8(e))
	}
}

// Valid reports whether e is one of the two lattice values.
func (e Effect) Valid() bool {
	return e == NoAlloc || e == MayAlloc
}

// Parse converts an annotation spelling ("NoAlloc", "MayAlloc") to an Effect.
// Matching is case-insensitive.
func Parse(s string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noalloc":
		return NoAlloc, nil
	case "mayalloc":
		return MayAlloc, nil
	default:
		return MayAlloc, fmt.Errorf("unknown effect %q", s)
	}
}

// MarshalText encodes the effect by name so JSON and YAML output is readable.
func (e Effect) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid effect %d", uint8(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText decodes an effect name.
func (e *Effect) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Compare orders effects totally: it returns -1 if a < b, 0 if a == b and
// 1 if a > b, with NoAlloc < MayAlloc.
func Compare(a, b Effect) int {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	default:
		return 1
	}
}

// Meet returns the more restrictive of a and b.
func Meet(a, b Effect) Effect {
	if Compare(a, b) <= 0 {
		return a
	}
	return b
}

// Range is the span of effects demanded by the methods a declaration overrides.
//
// Min <= Max always holds. When only one ancestor effect was observed,
// Min == Max.
type Range struct {
	Min Effect `json:"min"`
	Max Effect `json:"max"`
}

// NewRange builds a Range from optional bounds. A missing bound is filled
// from the other one. ok is false when both bounds are missing.
func NewRange(lo, hi *Effect) (r Range, ok bool) {
	switch {
	case lo == nil && hi == nil:
		return Range{}, false
	case lo == nil:
		return Range{Min: *hi, Max: *hi}, true
	case hi == nil:
		return Range{Min: *lo, Max: *lo}, true
	}
	return Range{Min: *lo, Max: *hi}, true
}

// Conflicting reports whether ancestors disagree.
func (r Range) Conflicting() bool {
	return r.Min != r.Max
}

// Default returns the effect an undeclared override receives from this range.
func (r Range) Default() Effect {
	return Meet(r.Min, r.Max)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}
