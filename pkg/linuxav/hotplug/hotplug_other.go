//go:build !linux

package hotplug

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by NewMonitor on platforms without netlink.
var ErrUnsupported = errors.New("hotplug: not supported on this platform")

// Monitor is a placeholder on platforms without netlink.
type Monitor struct{}

// NewMonitor reports ErrUnsupported.
func NewMonitor(...string) (*Monitor, error) {
	return nil, ErrUnsupported
}

// Close is a no-op.
func (m *Monitor) Close() error { return nil }

// Run closes events and reports ErrUnsupported.
func (m *Monitor) Run(_ context.Context, events chan<- Event) error {
	close(events)
	return ErrUnsupported
}
