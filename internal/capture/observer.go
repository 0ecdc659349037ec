package capture

import (
	"time"

	"github.com/smazurov/termcam/internal/bufpool"
)

// FrameReport describes one handled frame. Gap and Stats come from the
// loop's own sequence accounting.
type FrameReport struct {
	Frame   bufpool.Frame
	Elapsed time.Duration // time spent in the handler
	Gap     uint64        // frames the driver skipped just before this one
	Stats   Stats         // counters including this frame
}

// Observer is notified of loop activity. Calls happen on the loop's
// goroutine and must not block.
type Observer interface {
	StateChanged(from, to State)
	FrameHandled(r FrameReport)
	Again()
	Timeout()
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State) {}
func (nopObserver) FrameHandled(FrameReport) {}
func (nopObserver) Again() {}
func (nopObserver) Timeout() {}

type multiObserver []Observer

// MultiObserver fans notifications out to every non-nil observer.
func MultiObserver(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m multiObserver) FrameHandled(r FrameReport) {
	for _, o := range m {
		o.FrameHandled(r)
	}
}

func (m multiObserver) Again() {
	for _, o := range m {
		o.Again()
	}
}

func (m multiObserver) Timeout() {
	for _, o := range m {
		o.Timeout()
	}
}
