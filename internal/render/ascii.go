package render

import (
	"bufio"
	"errors"
	"io"
)

// Ramp orders glyphs from dark to bright.
const Ramp = " .:-=+*#%@"

// FrameSeparator ends every rendered frame so a reader of the stream can
// split it back into frames.
const FrameSeparator = '\f'

// ASCII renders to a character grid. Each character covers a 2x2 block of
// the raster, so the raster is twice the grid in each direction.
type ASCII struct {
	out   *bufio.Writer
	cols  int
	rows  int
	pix   []byte
	ready bool
}

// NewASCII renders cols x rows characters to w.
func NewASCII(w io.Writer, cols, rows int) *ASCII {
	return &ASCII{
		out:  bufio.NewWriter(w),
		cols: cols,
		rows: rows,
	}
}

// Init allocates the raster.
func (a *ASCII) Init() (int, int, error) {
	if a.cols <= 0 || a.rows <= 0 {
		return 0, 0, errors.New("render: grid must be at least 1x1")
	}
	a.pix = make([]byte, a.cols*2*a.rows*2)
	a.ready = true
	return a.cols * 2, a.rows * 2, nil
}

// Set stores one raster pixel. Out of range coordinates are ignored.
func (a *ASCII) Set(x, y int, v byte) {
	w := a.cols * 2
	if !a.ready || x < 0 || y < 0 || x >= w || y >= a.rows*2 {
		return
	}
	a.pix[y*w+x] = v
}

// Glyph returns the ramp character for a brightness.
func Glyph(v byte) byte {
	return Ramp[int(v)*len(Ramp)/256]
}

// Render writes the grid followed by a form feed.
func (a *ASCII) Render() error {
	if !a.ready {
		return errors.New("render: not initialised")
	}
	w := a.cols * 2
	line := make([]byte, a.cols+1)
	line[a.cols] = '\n'
	for r := 0; r < a.rows; r++ {
		top := a.pix[r*2*w : (r*2+1)*w]
		bottom := a.pix[(r*2+1)*w : (r*2+2)*w]
		for c := 0; c < a.cols; c++ {
			sum := int(top[c*2]) + int(top[c*2+1]) + int(bottom[c*2]) + int(bottom[c*2+1])
			line[c] = Glyph(byte(sum / 4))
		}
		if _, err := a.out.Write(line); err != nil {
			return err
		}
	}
	if err := a.out.WriteByte(FrameSeparator); err != nil {
		return err
	}
	return a.out.Flush()
}

// Close flushes pending output.
func (a *ASCII) Close() error {
	a.ready = false
	return a.out.Flush()
}
