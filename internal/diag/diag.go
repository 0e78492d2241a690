// Package diag defines the diagnostics reported by an effect-checking pass
// and the sinks that accumulate them.
//
// Reporting never fails and never stops a pass. Every diagnostic carries a
// content-addressed ID so identical findings on identical input compare
// equal across runs.
package diag

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/noalloc/internal/ir"
)

// Kind identifies a diagnostic category. The string values double as
// suppression sub-keys ("alloceffect:call.invalid.alloc").
type Kind string

const (
	AnnotationConflict   Kind = "annotations.conflicts"
	InvalidOverride      Kind = "override.effect.invalid"
	AmbiguousInheritance Kind = "override.effect.warning.inheritance"
	InvalidCall          Kind = "call.invalid.alloc"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{AnnotationConflict, InvalidOverride, AmbiguousInheritance, InvalidCall}

// Name returns the short display name of k.
func (k Kind) Name() string {
	switch k {
	case AnnotationConflict:
		return "AnnotationConflict"
	case InvalidOverride:
		return "InvalidOverride"
	case AmbiguousInheritance:
		return "AmbiguousInheritance"
	case InvalidCall:
		return "InvalidCall"
	default:
		return string(k)
	}
}

// ParseKind accepts either the key ("call.invalid.alloc") or the display
// name ("InvalidCall").
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Name() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown diagnostic kind %q", s)
}

// Severity returns the fixed severity of k.
func (k Kind) Severity() Severity {
	if k == AmbiguousInheritance {
		return SeverityWarning
	}
	return SeverityFailure
}

// Severity is failure or warning. Failures make a check unsuccessful;
// warnings do not.
type Severity string

const (
	SeverityFailure Severity = "failure"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding.
type Diagnostic struct {
	ID       string            `json:"id"`
	Seq      int64             `json:"seq"`
	Kind     Kind              `json:"kind"`
	Severity Severity          `json:"severity"`
	Method   string            `json:"method,omitempty"`
	Message  string            `json:"message"`
	Args     map[string]string `json:"args,omitempty"`
	Pos      ir.Pos            `json:"pos"`
}

// String formats d as file:line:col: severity: message [kind].
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Pos, d.Severity, d.Message, d.Kind.Name())
}

// MarshalJSON adds the display name next to the kind key.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	type plain Diagnostic
	return json.Marshal(struct {
		plain
		Name string `json:"name"`
	}{plain(d), d.Kind.Name()})
}

// Sink receives diagnostics. Implementations must not fail.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Diagnostic)

// Report calls f(d).
func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Collector accumulates diagnostics in report order, completing each one
// with a sequence number, severity, message and ID.
type Collector struct {
	diags []Diagnostic
	seq   int64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report completes d and appends it.
func (c *Collector) Report(d Diagnostic) {
	c.seq++
	d.Seq = c.seq
	if d.Severity == "" {
		d.Severity = d.Kind.Severity()
	}
	if d.Message == "" {
		d.Message = Message(d.Kind, d.Args)
	}
	if d.ID == "" {
		id, err := ir.DiagnosticID(string(d.Kind), d.Method, d.Pos, d.Args)
		if err == nil {
			d.ID = id
		}
	}
	c.diags = append(c.diags, d)
}

// Diagnostics returns the diagnostics in report order.
func (c *Collector) Diagnostics() []Diagnostic {
	return c.diags
}

// Len returns the number of diagnostics.
func (c *Collector) Len() int {
	return len(c.diags)
}

// Count returns how many diagnostics have severity s.
func (c *Collector) Count(s Severity) int {
	n := 0
	for _, d := range c.diags {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// CountKind returns how many diagnostics have kind k.
func (c *Collector) CountKind(k Kind) int {
	n := 0
	for _, d := range c.diags {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// HasFailures reports whether any failure was collected.
func (c *Collector) HasFailures() bool {
	return c.Count(SeverityFailure) > 0
}

// Sorted returns a copy ordered by position, then kind, then report order.
func (c *Collector) Sorted() []Diagnostic {
	return Sort(c.diags)
}

// Sort returns a copy of diags ordered by file, line, column, kind and
// sequence number.
func Sort(diags []Diagnostic) []Diagnostic {
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pos.File != b.Pos.File {
			return a.Pos.File < b.Pos.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Seq < b.Seq
	})
	return out
}
