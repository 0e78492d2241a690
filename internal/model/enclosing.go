package model

import "github.com/roach88/noalloc/internal/ir"

// EnclosingMethod returns the innermost method whose source span contains
// pos. Methods without an end position span only their declaration line.
// A zero column in pos matches any column on the line.
func (h *Hierarchy) EnclosingMethod(pos ir.Pos) (*ir.Method, bool) {
	var best *ir.Method
	for _, t := range h.program.Types {
		for _, m := range t.Methods {
			if !spans(m.Pos, m.End, pos) {
				continue
			}
			// later starts are nested deeper (anonymous class bodies)
			if best == nil || best.Pos.Before(m.Pos) {
				best = m
			}
		}
	}
	return best, best != nil
}

func spans(start, end, pos ir.Pos) bool {
	if !start.IsValid() || !pos.IsValid() || start.File != pos.File {
		return false
	}
	if !end.IsValid() {
		end = ir.Pos{File: start.File, Line: start.Line}
	}
	if pos.Line < start.Line || pos.Line > end.Line {
		return false
	}
	if pos.Column == 0 {
		return true
	}
	if pos.Line == start.Line && pos.Column < start.Column {
		return false
	}
	if pos.Line == end.Line && end.Column > 0 && pos.Column > end.Column {
		return false
	}
	return true
}
