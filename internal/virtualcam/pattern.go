package virtualcam

import (
	"fmt"
	"strings"
)

// Pattern names a synthetic image.
type Pattern string

// Available patterns.
const (
	PatternBars     Pattern = "bars"
	PatternGradient Pattern = "gradient"
	PatternChecker  Pattern = "checker"
	PatternFlat     Pattern = "flat"
)

var patterns = []Pattern{PatternBars, PatternGradient, PatternChecker, PatternFlat}

// Patterns lists the pattern names accepted by ParsePattern.
func Patterns() []Pattern {
	return append([]Pattern(nil), patterns...)
}

// ParsePattern resolves a pattern name. Matching is case-insensitive and
// "pattern" or an empty name mean bars.
func ParsePattern(name string) (Pattern, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "pattern" {
		return PatternBars, nil
	}
	for _, p := range patterns {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown virtual pattern %q", name)
}

// fill writes one YUYV frame. Chroma is neutral so only luma carries the
// pattern; seq animates it.
func fill(buf []byte, width, height uint32, p Pattern, seq uint32) {
	w, h := int(width), int(height)
	for y := 0; y < h; y++ {
		row := buf[y*w*2 : (y+1)*w*2]
		for x := 0; x < w; x++ {
			row[x*2] = luma(p, x, y, w, h, int(seq))
			row[x*2+1] = 128
		}
	}
}

// Luma returns the pattern's brightness at (x, y) of a width x height frame.
func Luma(p Pattern, x, y, width, height int, seq uint32) byte {
	return luma(p, x, y, width, height, int(seq))
}

func luma(p Pattern, x, y, w, h, seq int) byte {
	switch p {
	case PatternGradient:
		return byte((x*255/max(w-1, 1) + seq) & 0xff)
	case PatternChecker:
		size := max(w/16, 1)
		if ((x+seq)/size+y/size)%2 == 0 {
			return 235
		}
		return 16
	case PatternFlat:
		return 128
	default:
		bar := (x + seq) % w * 8 / w
		return byte(16 + bar*(235-16)/7)
	}
}
