package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Geometry is a width/height pair in pixels.
type Geometry struct {
	Width  uint32
	Height uint32
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// ParseGeometry parses "<width>x<height>". Both sides must be positive
// decimal integers; anything else is rejected.
func ParseGeometry(s string) (Geometry, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Geometry{}, newError(ErrCodeInvalidGeometry, fmt.Sprintf("could not parse dimension %q", s), nil)
	}

	width, err := strconv.ParseUint(w, 10, 32)
	if err != nil || width == 0 {
		return Geometry{}, newError(ErrCodeInvalidGeometry, fmt.Sprintf("could not parse dimension %q", s), err)
	}
	height, err := strconv.ParseUint(h, 10, 32)
	if err != nil || height == 0 {
		return Geometry{}, newError(ErrCodeInvalidGeometry, fmt.Sprintf("could not parse dimension %q", s), err)
	}

	return Geometry{Width: uint32(width), Height: uint32(height)}, nil
}
