// Package render draws 8-bit luma rasters on an output surface.
package render

import (
	"fmt"
	"io"
	"strings"
)

// Renderer is a drawing surface. Init reports the raster size the caller
// should resample to; Set fills it and Render flushes one frame.
type Renderer interface {
	Init() (width, height int, err error)
	Set(x, y int, v byte)
	Render() error
	Close() error
}

// Kinds of renderer accepted by New.
const (
	KindASCII = "ascii"
	KindPGM   = "pgm"
)

// Options selects and configures a renderer.
type Options struct {
	Kind    string
	Columns int
	Rows    int
	Output  io.Writer
	Path    string
}

// New builds the renderer named by opts.Kind.
func New(opts Options) (Renderer, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindASCII:
		return NewASCII(opts.Output, opts.Columns, opts.Rows), nil
	case KindPGM:
		if opts.Path == "" || opts.Path == "-" {
			return NewPGMWriter(opts.Output, opts.Columns, opts.Rows), nil
		}
		return NewPGMFile(opts.Path, opts.Columns, opts.Rows), nil
	default:
		return nil, fmt.Errorf("unknown renderer %q (want %s or %s)", opts.Kind, KindASCII, KindPGM)
	}
}
