package led

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// GPIOPrefix selects a GPIO line instead of a sysfs LED:
// "gpio:<chip>:<offset>", e.g. "gpio:gpiochip0:17".
const GPIOPrefix = "gpio:"

// parseGPIO splits a GPIOPrefix name into chip and line offset.
func parseGPIO(name string) (string, int, error) {
	rest, ok := strings.CutPrefix(name, GPIOPrefix)
	if !ok {
		return "", 0, fmt.Errorf("not a gpio LED: %q", name)
	}
	chip, offsetStr, ok := strings.Cut(rest, ":")
	if !ok || chip == "" {
		return "", 0, fmt.Errorf("gpio LED %q: want gpio:<chip>:<offset>", name)
	}
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		return "", 0, fmt.Errorf("gpio LED %q: bad line offset %q", name, offsetStr)
	}
	return chip, offset, nil
}

var errGPIOClosed = errors.New("gpio LED line already released")

// line is the part of a requested GPIO line the controller drives.
type line interface {
	SetValue(value int) error
	Close() error
}

// Blink timings as alternating on/off durations, starting with on.
var (
	blinkSteps     = []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}
	heartbeatSteps = []time.Duration{100 * time.Millisecond, 150 * time.Millisecond, 100 * time.Millisecond, 650 * time.Millisecond}
)

// gpio implements Controller on a single output line. GPIO has no kernel
// triggers, so blink patterns run on a goroutine.
type gpio struct {
	line line

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func newGPIOController(l line) *gpio {
	return &gpio{line: l}
}

func (g *gpio) Set(ledType string, enabled bool, pattern string) error {
	if ledType != StatusLED {
		return fmt.Errorf("LED type %q not supported on a gpio line", ledType)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errGPIOClosed
	}
	g.stopPatternLocked()

	if !enabled || pattern == PatternOff {
		return g.line.SetValue(0)
	}

	switch pattern {
	case "", PatternSolid:
		return g.line.SetValue(1)
	case PatternBlink:
		g.startPatternLocked(blinkSteps)
	case PatternHeartbeat:
		g.startPatternLocked(heartbeatSteps)
	default:
		return fmt.Errorf("pattern %q not supported on a gpio line", pattern)
	}
	return nil
}

func (g *gpio) startPatternLocked(steps []time.Duration) {
	g.stop = make(chan struct{})
	g.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		timer := time.NewTimer(0)
		defer timer.Stop()
		<-timer.C

		for i := 0; ; i = (i + 1) % len(steps) {
			_ = g.line.SetValue(1 - i%2)
			timer.Reset(steps[i])
			select {
			case <-stop:
				return
			case <-timer.C:
			}
		}
	}(g.stop, g.done)
}

func (g *gpio) stopPatternLocked() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	<-g.done
	g.stop, g.done = nil, nil
}

func (g *gpio) Available() []string { return []string{StatusLED} }

func (g *gpio) Patterns() []string { return slices.Clone(allPatterns) }

// Close stops any pattern, turns the LED off and releases the line.
// Closing twice is a no-op.
func (g *gpio) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.stopPatternLocked()
	_ = g.line.SetValue(0)
	return g.line.Close()
}
