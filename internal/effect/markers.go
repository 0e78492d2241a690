package effect

import "strings"

// Markers is the set of explicit effect annotations found on a declaration.
type Markers uint8

const (
	// MarkNoAlloc is the "this method performs no allocation" marker.
	MarkNoAlloc Markers = 1 << iota
	// MarkMayAlloc is the "this method may allocate" marker.
	MarkMayAlloc
)

// None reports whether neither marker is present.
func (m Markers) None() bool {
	return m&(MarkNoAlloc|MarkMayAlloc) == 0
}

// Has reports whether every marker in o is present.
func (m Markers) Has(o Markers) bool {
	return m&o == o
}

// Conflicting reports whether both markers are present.
func (m Markers) Conflicting() bool {
	return m.Has(MarkNoAlloc | MarkMayAlloc)
}

// OnlyMayAlloc reports whether the declaration explicitly widens to MayAlloc
// without also carrying NoAlloc.
func (m Markers) OnlyMayAlloc() bool {
	return m.Has(MarkMayAlloc) && !m.Has(MarkNoAlloc)
}

// Explicit returns the declared effect, if any. NoAlloc wins when both
// markers are present.
func (m Markers) Explicit() (Effect, bool) {
	switch {
	case m.Has(MarkNoAlloc):
		return NoAlloc, true
	case m.Has(MarkMayAlloc):
		return MayAlloc, true
	default:
		return MayAlloc, false
	}
}

func (m Markers) String() string {
	var parts []string
	if m.Has(MarkNoAlloc) {
		parts = append(parts, NoAlloc.String())
	}
	if m.Has(MarkMayAlloc) {
		parts = append(parts, MayAlloc.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// MarshalText renders the marker set as in String.
func (m Markers) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
