package resolver

import (
	"github.com/roach88/noalloc/internal/effect"
	"github.com/roach88/noalloc/internal/ir"
)

// Resolution explains how a method's effect was decided.
type Resolution struct {
	Method    string         `json:"method"`
	Effect    effect.Effect  `json:"effect"`
	Explicit  bool           `json:"explicit"`
	Markers   effect.Markers `json:"markers"`
	Range     effect.Range   `json:"range"`
	HasRange  bool           `json:"has_range"`
	Overrides []Override     `json:"overrides,omitempty"`
}

// Explain resolves m and returns the inputs to the decision. Unlike
// DeclaredEffect it surfaces resolution failures as a *ResolutionError.
// No diagnostics are reported.
func (r *Resolver) Explain(m *ir.Method) (Resolution, error) {
	res := Resolution{Method: m.ID(), Markers: r.h.Markers(m)}

	in, err := r.inherit(m, false)
	if err != nil {
		if e, ok := res.Markers.Explicit(); ok {
			res.Effect, res.Explicit = e, true
		} else {
			res.Effect = effect.MayAlloc
		}
		return res, err
	}
	res.Overrides = in.overrides
	res.Range, res.HasRange = in.effectRange()

	e, err := r.declaredEffect(m)
	res.Effect = e
	_, res.Explicit = res.Markers.Explicit()
	return res, err
}
