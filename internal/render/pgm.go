package render

import (
	"errors"
	"io"

	"github.com/smazurov/termcam/internal/pgm"
)

// PGM renders each frame as a P5 graymap, either appended to a stream or
// replacing a file.
type PGM struct {
	out   io.Writer
	path  string
	img   *pgm.Image
	width int
	rows  int
}

// NewPGMWriter writes one graymap per frame to w.
func NewPGMWriter(w io.Writer, width, height int) *PGM {
	return &PGM{out: w, width: width, rows: height}
}

// NewPGMFile rewrites path with the latest frame.
func NewPGMFile(path string, width, height int) *PGM {
	return &PGM{path: path, width: width, rows: height}
}

// Init allocates the raster.
func (p *PGM) Init() (int, int, error) {
	if p.width <= 0 || p.rows <= 0 {
		return 0, 0, errors.New("render: image must be at least 1x1")
	}
	p.img = pgm.New(p.width, p.rows)
	return p.width, p.rows, nil
}

// Set stores one pixel.
func (p *PGM) Set(x, y int, v byte) {
	if p.img != nil {
		p.img.Set(x, y, v)
	}
}

// Render emits the current raster.
func (p *PGM) Render() error {
	if p.img == nil {
		return errors.New("render: not initialised")
	}
	if p.path != "" {
		return pgm.WriteFile(p.path, p.img)
	}
	return pgm.Encode(p.out, p.img)
}

// Close releases the raster.
func (p *PGM) Close() error {
	p.img = nil
	return nil
}
