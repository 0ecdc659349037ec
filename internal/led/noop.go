package led

import (
	"log/slog"
	"sync"
)

// noop stands in when no LED is usable. It only logs state changes so a
// frame-rate stream of identical requests stays quiet.
type noop struct {
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]string
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger, last: make(map[string]string)}
}

func (n *noop) Set(ledType string, enabled bool, pattern string) error {
	state := pattern
	if !enabled {
		state = "off"
	}

	n.mu.Lock()
	changed := n.last[ledType] != state
	n.last[ledType] = state
	n.mu.Unlock()

	if changed {
		n.logger.Debug("LED unavailable, ignoring", "led_type", ledType, "state", state)
	}
	return nil
}

func (n *noop) Available() []string { return nil }

func (n *noop) Patterns() []string { return nil }
