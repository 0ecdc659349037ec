// Package systemd reports capture progress to the service manager over the
// sd_notify protocol. Outside a Type=notify unit every call is a no-op.
package systemd

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/termcam/internal/capture"
)

// notifyFunc matches daemon.SdNotify.
type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier implements capture.Observer. READY=1 is sent when the stream
// starts, STOPPING=1 when it stops, and WATCHDOG=1 at half the watchdog
// interval for as long as frames keep arriving.
type Notifier struct {
	device string
	logger *slog.Logger
	notify notifyFunc
	now    func() time.Time

	mu          sync.Mutex
	watchdog    time.Duration
	lastPing    time.Time
	ready       bool
	frames      uint64
	statusEvery uint64
}

// NewNotifier reads WATCHDOG_USEC from the environment. A disabled or
// malformed watchdog only turns pinging off.
func NewNotifier(device string, logger *slog.Logger) *Notifier {
	n := newNotifier(device, logger, daemon.SdNotify, time.Now)

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Ignoring watchdog settings", "error", err)
	}
	n.watchdog = interval / 2
	return n
}

func newNotifier(device string, logger *slog.Logger, notify notifyFunc, now func() time.Time) *Notifier {
	return &Notifier{
		device:      device,
		logger:      logger,
		notify:      notify,
		now:         now,
		statusEvery: 300,
	}
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(false, state); err != nil {
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
	}
}

// StateChanged sends READY on streaming and STOPPING on stop.
func (n *Notifier) StateChanged(_, to capture.State) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch to {
	case capture.StateStreaming:
		n.ready = true
		n.lastPing = n.now()
		n.send(fmt.Sprintf("%s\nSTATUS=Streaming %s", daemon.SdNotifyReady, n.device))
	case capture.StateStopping:
		n.send(fmt.Sprintf("%s\nSTATUS=Stopping %s", daemon.SdNotifyStopping, n.device))
	case capture.StateStopped:
		n.ready = false
	}
}

// FrameHandled pings the watchdog and refreshes STATUS periodically.
func (n *Notifier) FrameHandled(capture.FrameReport) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.ready {
		return
	}
	n.frames++
	if n.statusEvery > 0 && n.frames%n.statusEvery == 0 {
		n.send(fmt.Sprintf("STATUS=Streaming %s, %d frames", n.device, n.frames))
	}
	if n.watchdog <= 0 {
		return
	}
	if now := n.now(); now.Sub(n.lastPing) >= n.watchdog {
		n.lastPing = now
		n.send(daemon.SdNotifyWatchdog)
	}
}

// Again is ignored.
func (n *Notifier) Again() {}

// Timeout reports the stall in STATUS. The watchdog is left to expire if
// frames never come back.
func (n *Notifier) Timeout() {
	n.send(fmt.Sprintf("STATUS=No frames from %s", n.device))
}
