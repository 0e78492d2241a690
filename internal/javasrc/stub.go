//go:build !cgo

package javasrc

import (
	"context"

	"github.com/roach88/noalloc/internal/ir"
)

// Parser is unavailable without cgo.
type Parser struct{}

// NewParser returns nil when cgo is not available.
func NewParser() *Parser {
	return nil
}

// Parse always fails with ErrUnavailable.
func (p *Parser) Parse(ctx context.Context, files ...File) (*ir.Program, error) {
	return nil, ErrUnavailable
}

// Available reports whether Java parsing is compiled in.
func Available() bool {
	return false
}
