package events

import (
	"time"

	"github.com/smazurov/termcam/internal/capture"
)

// DefaultStatsEvery is how many frames pass between FrameStatsEvents.
const DefaultStatsEvery = 30

// CaptureObserver turns capture loop notifications into bus events.
type CaptureObserver struct {
	bus        *Bus
	devicePath string
	every      uint64
}

// NewCaptureObserver publishes on bus on behalf of devicePath. every
// controls how often frame stats go out; zero selects DefaultStatsEvery.
func NewCaptureObserver(bus *Bus, devicePath string, every uint64) *CaptureObserver {
	if every == 0 {
		every = DefaultStatsEvery
	}
	return &CaptureObserver{bus: bus, devicePath: devicePath, every: every}
}

// StateChanged publishes a CaptureStateChangedEvent.
func (o *CaptureObserver) StateChanged(from, to capture.State) {
	o.bus.Publish(CaptureStateChangedEvent{
		DevicePath: o.devicePath,
		From:       string(from),
		To:         string(to),
		Timestamp:  now(),
	})
}

// FrameHandled publishes the loop's counters every few frames.
func (o *CaptureObserver) FrameHandled(r capture.FrameReport) {
	if r.Stats.Frames%o.every != 0 {
		return
	}
	o.bus.Publish(FrameStatsEvent{
		DevicePath:   o.devicePath,
		Frames:       r.Stats.Frames,
		Again:        r.Stats.Again,
		Dropped:      r.Stats.Dropped,
		LastSequence: r.Stats.LastSequence,
		Timestamp:    now(),
	})
}

// Again is already counted in the loop's stats.
func (o *CaptureObserver) Again() {}

// Timeout publishes a CaptureTimeoutEvent.
func (o *CaptureObserver) Timeout() {
	o.bus.Publish(CaptureTimeoutEvent{
		DevicePath: o.devicePath,
		Timestamp:  now(),
	})
}

// PublishError publishes a CaptureErrorEvent for a failed run.
func (b *Bus) PublishError(devicePath, message string, err error) {
	ev := CaptureErrorEvent{
		DevicePath: devicePath,
		Message:    message,
		Timestamp:  now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	b.Publish(ev)
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
