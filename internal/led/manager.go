package led

import (
	"io"
	"log/slog"
	"sync"

	"github.com/smazurov/termcam/internal/events"
)

// Manager subscribes to capture events and drives the status LED:
// solid while streaming, blinking after a failure, off once stopped.
type Manager struct {
	controller Controller
	eventBus   *events.Bus
	unsubs     []func()
	logger     *slog.Logger

	mu      sync.Mutex
	failed  bool
	stopped bool
}

// NewManager creates a new LED manager that reacts to capture state changes
func NewManager(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Start begins listening for capture events
func (m *Manager) Start() {
	m.unsubs = append(m.unsubs,
		m.eventBus.Subscribe(m.handleState),
		m.eventBus.Subscribe(m.handleError),
	)
	m.logger.Debug("LED manager started")
}

// Stop unsubscribes from events. A sysfs LED keeps its last state; a
// controller that holds resources (a GPIO line) is closed.
// Events still queued on the bus are ignored once Stop returns.
func (m *Manager) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	if closer, ok := m.controller.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.logger.Warn("Failed to release status LED", "error", err)
		}
	}
	m.logger.Debug("LED manager stopped")
}

// Fail shows the failure pattern without waiting for the bus to deliver
// the matching CaptureErrorEvent.
func (m *Manager) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.failed = true
	m.logger.Debug("Capture failed, blinking status LED", "error", err)
	m.set(true, PatternBlink)
}

// handleState processes a single capture state change
func (m *Manager) handleState(event events.CaptureStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	m.logger.Debug("Capture state changed",
		"device", event.DevicePath,
		"from", event.From,
		"to", event.To)

	switch {
	case event.IsStreaming():
		m.failed = false
		m.set(true, PatternSolid)
	case event.To == "stopped" && !m.failed:
		m.set(false, PatternOff)
	}
}

// handleError latches the failure so a later stop does not clear it
func (m *Manager) handleError(event events.CaptureErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	m.failed = true
	m.logger.Debug("Capture failed, blinking status LED", "device", event.DevicePath, "error", event.Error)
	m.set(true, PatternBlink)
}

func (m *Manager) set(enabled bool, pattern string) {
	if err := m.controller.Set(StatusLED, enabled, pattern); err != nil {
		m.logger.Warn("Failed to set status LED", "pattern", pattern, "error", err)
	}
}

// GetController returns the underlying LED controller
func (m *Manager) GetController() Controller {
	return m.controller
}
