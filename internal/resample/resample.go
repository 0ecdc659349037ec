// Package resample maps a large luma frame onto a small raster by
// truncating nearest-neighbour sampling.
package resample

import (
	"errors"
	"fmt"
)

// Pixel strides for the supported source layouts.
const (
	StrideYUYV = 2 // luma is byte 0 of every 2-byte pixel
	StrideGray = 1
)

var (
	// ErrShortFrame is returned when a source frame holds fewer bytes than
	// the configured geometry samples from.
	ErrShortFrame = errors.New("resample: frame shorter than source geometry")
	// ErrInvalidGeometry is returned for zero or negative dimensions.
	ErrInvalidGeometry = errors.New("resample: invalid geometry")
)

// Canvas receives resampled pixels.
type Canvas interface {
	Set(x, y int, v byte)
}

// Scaler holds the scale factors for one source/destination geometry.
// The zero value is not usable; create one with New.
type Scaler struct {
	srcW, srcH int
	dstW, dstH int
	stride     int
	xScale     float32
	yScale     float32
	required   int
}

// Option configures a Scaler.
type Option func(*Scaler)

// WithStride sets the distance in bytes between source pixels.
func WithStride(n int) Option {
	return func(s *Scaler) {
		if n > 0 {
			s.stride = n
		}
	}
}

// New returns a scaler from a srcW x srcH YUYV frame to a dstW x dstH raster.
func New(srcW, srcH, dstW, dstH int, opts ...Option) (*Scaler, error) {
	s := &Scaler{stride: StrideYUYV}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.Configure(srcW, srcH, dstW, dstH); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure switches to a new geometry. Scale factors are only recomputed
// when the geometry differs; the result reports whether it did.
func (s *Scaler) Configure(srcW, srcH, dstW, dstH int) (bool, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return false, fmt.Errorf("%w: %dx%d to %dx%d", ErrInvalidGeometry, srcW, srcH, dstW, dstH)
	}
	if srcW == s.srcW && srcH == s.srcH && dstW == s.dstW && dstH == s.dstH {
		return false, nil
	}

	s.srcW, s.srcH = srcW, srcH
	s.dstW, s.dstH = dstW, dstH
	s.xScale = float32(srcW) / float32(dstW)
	s.yScale = float32(srcH) / float32(dstH)
	s.required = s.Offset(dstW-1, dstH-1) + 1
	return true, nil
}

// Scale returns the horizontal and vertical scale factors.
func (s *Scaler) Scale() (x, y float32) {
	return s.xScale, s.yScale
}

// Source returns the source geometry.
func (s *Scaler) Source() (w, h int) {
	return s.srcW, s.srcH
}

// Destination returns the destination geometry.
func (s *Scaler) Destination() (w, h int) {
	return s.dstW, s.dstH
}

// Required returns the minimum source length in bytes.
func (s *Scaler) Required() int {
	return s.required
}

// SourceCoord maps a destination pixel to the source pixel it samples.
func (s *Scaler) SourceCoord(x, y int) (sx, sy int) {
	return int(float32(x) * s.xScale), int(float32(y) * s.yScale)
}

// Offset returns the byte offset of the luma sample for destination pixel
// (x, y). Rows are addressed by width, not by the driver's line stride.
func (s *Scaler) Offset(x, y int) int {
	sx, sy := s.SourceCoord(x, y)
	return (sy*s.srcW + sx) * s.stride
}

// Resample writes dstW*dstH luma bytes into dst in row-major order.
func (s *Scaler) Resample(src, dst []byte) error {
	if len(dst) < s.dstW*s.dstH {
		return fmt.Errorf("resample: destination holds %d bytes, need %d", len(dst), s.dstW*s.dstH)
	}
	if len(src) < s.required {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortFrame, len(src), s.required)
	}
	for y := 0; y < s.dstH; y++ {
		row := dst[y*s.dstW : (y+1)*s.dstW]
		for x := range row {
			row[x] = src[s.Offset(x, y)]
		}
	}
	return nil
}

// ResampleInto sets every destination pixel on c.
func (s *Scaler) ResampleInto(src []byte, c Canvas) error {
	if len(src) < s.required {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortFrame, len(src), s.required)
	}
	for y := 0; y < s.dstH; y++ {
		for x := 0; x < s.dstW; x++ {
			c.Set(x, y, src[s.Offset(x, y)])
		}
	}
	return nil
}
