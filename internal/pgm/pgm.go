// Package pgm reads and writes binary (P5) portable graymaps with 8-bit
// samples.
package pgm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// MaxVal is the only sample range written and the largest one read.
const MaxVal = 255

// ErrFormat is wrapped by every header or payload decoding error.
var ErrFormat = errors.New("pgm: invalid format")

// Image is a row-major 8-bit grayscale raster.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a black image.
func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]byte, width*height)}
}

// At returns the sample at (x, y).
func (m *Image) At(x, y int) byte {
	return m.Pix[y*m.Width+x]
}

// Set stores v at (x, y). Out of range coordinates are ignored.
func (m *Image) Set(x, y int, v byte) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Encode writes m as a P5 file.
func Encode(w io.Writer, m *Image) error {
	if len(m.Pix) < m.Width*m.Height {
		return fmt.Errorf("pgm: image holds %d samples, need %d", len(m.Pix), m.Width*m.Height)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P5\n%d %d\n%d\n", m.Width, m.Height, MaxVal)
	if _, err := bw.Write(m.Pix[:m.Width*m.Height]); err != nil {
		return err
	}
	return bw.Flush()
}

// Decode reads a P5 file. Header fields may be separated by any whitespace
// and '#' comments are skipped. Samples are rescaled to 0-255 when the
// file's maxval is smaller.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 2)
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != "P5" {
		return nil, fmt.Errorf("%w: missing P5 magic", ErrFormat)
	}

	var fields [3]int
	for i := range fields {
		n, err := readHeaderInt(br)
		if err != nil {
			return nil, err
		}
		fields[i] = n
	}
	width, height, maxval := fields[0], fields[1], fields[2]
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bad size %dx%d", ErrFormat, width, height)
	}
	if maxval <= 0 || maxval > MaxVal {
		return nil, fmt.Errorf("%w: unsupported maxval %d", ErrFormat, maxval)
	}

	// exactly one whitespace byte separates the header from the raster
	if c, err := br.ReadByte(); err != nil || !isSpace(c) {
		return nil, fmt.Errorf("%w: header not terminated", ErrFormat)
	}

	m := New(width, height)
	if _, err := io.ReadFull(br, m.Pix); err != nil {
		return nil, fmt.Errorf("%w: short raster: %v", ErrFormat, err)
	}
	if maxval != MaxVal {
		for i, v := range m.Pix {
			m.Pix[i] = byte(min(int(v), maxval) * MaxVal / maxval)
		}
	}
	return m, nil
}

func readHeaderInt(br *bufio.Reader) (int, error) {
	var digits []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("%w: truncated header", ErrFormat)
		}
		switch {
		case c == '#' && len(digits) == 0:
			if _, err := br.ReadString('\n'); err != nil {
				return 0, fmt.Errorf("%w: truncated header", ErrFormat)
			}
		case isSpace(c) && len(digits) == 0:
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case isSpace(c):
			if err := br.UnreadByte(); err != nil {
				return 0, err
			}
			n, err := strconv.Atoi(string(digits))
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			return n, nil
		default:
			return 0, fmt.Errorf("%w: unexpected byte %q in header", ErrFormat, c)
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// ReadFile decodes the named file. "-" reads standard input.
func ReadFile(name string) (*Image, error) {
	if name == "-" {
		return Decode(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes m to the named file, replacing it atomically so a
// watcher never sees a partial image. "-" writes standard output.
func WriteFile(name string, m *Image) error {
	if name == "-" {
		return Encode(os.Stdout, m)
	}
	tmp := name + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}
