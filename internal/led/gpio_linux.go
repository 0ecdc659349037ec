//go:build linux

package led

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// chipLine releases the chip together with its line.
type chipLine struct {
	*gpiocdev.Line
	chip *gpiocdev.Chip
}

func (c chipLine) Close() error {
	lineErr := c.Line.Close()
	if err := c.chip.Close(); err != nil {
		return err
	}
	return lineErr
}

// newGPIO requests the named line as an output, initially low.
func newGPIO(name string) (*gpio, error) {
	chipName, offset, err := parseGPIO(name)
	if err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("termcam"))
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		_ = chip.Close()
		return nil, fmt.Errorf("failed to request line %d: %w", offset, err)
	}
	return newGPIOController(chipLine{Line: l, chip: chip}), nil
}
