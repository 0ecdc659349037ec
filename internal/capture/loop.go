// Package capture drives the streaming protocol: wait for the device to
// become readable, dequeue a filled buffer, hand it to a handler, and
// give it back.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"syscall"
	"time"

	"github.com/smazurov/termcam/internal/bufpool"
	"github.com/smazurov/termcam/internal/logging"
)

// Defaults for the readiness wait.
const (
	DefaultTimeout   = 2 * time.Second
	DefaultPollSlice = 200 * time.Millisecond
)

// Device is the part of a V4L2 node the loop drives directly.
type Device interface {
	StreamOn() error
	StreamOff() error
	WaitReadable(timeout time.Duration) (bool, error)
}

// Handler consumes a frame. The frame's memory is only valid until the
// handler returns.
type Handler func(frame bufpool.Frame) error

// Loop owns the streaming state of one device and its buffer pool.
// It is not safe for concurrent use.
type Loop struct {
	dev       Device
	pool      *bufpool.Pool
	timeout   time.Duration
	pollSlice time.Duration
	observer  Observer
	state     State
	stats     Stats
	logger    *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithTimeout sets how long the loop waits for a frame before failing.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithPollSlice bounds a single readiness wait so cancellation is noticed
// promptly.
func WithPollSlice(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.pollSlice = d
		}
	}
}

// WithObserver installs an observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observer = o
		}
	}
}

// New creates an idle loop over dev and pool.
func New(dev Device, pool *bufpool.Pool, opts ...Option) *Loop {
	l := &Loop{
		dev:       dev,
		pool:      pool,
		timeout:   DefaultTimeout,
		pollSlice: DefaultPollSlice,
		observer:  nopObserver{},
		state:     StateIdle,
		logger:    logging.GetLogger("capture"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current state.
func (l *Loop) State() State {
	return l.state
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return l.stats
}

func (l *Loop) setState(to State) {
	from := l.state
	if from == to {
		return
	}
	l.state = to
	l.logger.Debug("Capture state changed", "from", from, "to", to)
	l.observer.StateChanged(from, to)
}

// Start queues every buffer and turns the stream on. On failure the loop
// stays idle.
func (l *Loop) Start() error {
	if l.state != StateIdle {
		return newError(ErrCodeInvalidState, "cannot start from "+string(l.state), nil)
	}
	if err := l.pool.EnqueueAll(); err != nil {
		return newError(ErrCodeStartFailed, "queueing buffers failed", err)
	}
	if err := l.dev.StreamOn(); err != nil {
		l.pool.MarkStopped()
		return newError(ErrCodeStartFailed, "VIDIOC_STREAMON failed", err)
	}
	l.pool.MarkStreaming()
	l.stats = Stats{StartedAt: time.Now()}
	l.setState(StateStreaming)
	l.logger.Info("Capture started", "buffers", l.pool.Len(), "timeout", l.timeout)
	return nil
}

// Run delivers frames to handler until ctx is done or an error occurs. A
// cancelled context is an orderly shutdown and returns nil. Every buffer
// handed to handler is queued again before Run looks at the result.
func (l *Loop) Run(ctx context.Context, handler Handler) error {
	if l.state != StateStreaming {
		return newError(ErrCodeInvalidState, "cannot run from "+string(l.state), nil)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := l.next(ctx)
		if err != nil {
			if errors.Is(err, errCancelled) {
				return nil
			}
			return err
		}

		gap := l.account(frame)

		start := time.Now()
		herr := handler(frame)
		elapsed := time.Since(start)

		if err := l.pool.Enqueue(frame.Index); err != nil {
			return newError(ErrCodeRequeueFailed, "could not return buffer to device", errors.Join(err, herr))
		}
		l.observer.FrameHandled(FrameReport{Frame: frame, Elapsed: elapsed, Gap: gap, Stats: l.stats})
		if herr != nil {
			return newError(ErrCodeHandler, "frame handler failed", herr)
		}
	}
}

var errCancelled = errors.New("capture cancelled")

// next waits for and dequeues one frame. The wait is split into slices of
// at most pollSlice so ctx is checked regularly; the full timeout restarts
// whenever the device signals readiness.
func (l *Loop) next(ctx context.Context) (bufpool.Frame, error) {
	deadline := time.Now().Add(l.timeout)
	for {
		if ctx.Err() != nil {
			return bufpool.Frame{}, errCancelled
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.stats.Timeouts++
			l.observer.Timeout()
			return bufpool.Frame{}, newError(ErrCodeTimeout, "select timeout", nil)
		}

		ready, err := l.dev.WaitReadable(min(remaining, l.pollSlice))
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				l.stats.Interrupts++
				continue
			}
			return bufpool.Frame{}, newError(ErrCodeWaitFailed, "select failed", err)
		}
		if !ready {
			continue
		}

		frame, err := l.pool.Dequeue()
		if err != nil {
			if bufpool.HasCode(err, bufpool.ErrCodeAgain) {
				l.stats.Again++
				l.observer.Again()
				deadline = time.Now().Add(l.timeout)
				continue
			}
			return bufpool.Frame{}, newError(ErrCodeDequeueFailed, "dequeue failed", err)
		}

		return frame, nil
	}
}

// account records frame in the stats and returns how many sequence
// numbers the driver skipped before it.
func (l *Loop) account(frame bufpool.Frame) uint64 {
	var gap uint64
	if l.stats.Frames > 0 && frame.Sequence > l.stats.LastSequence+1 {
		gap = uint64(frame.Sequence - l.stats.LastSequence - 1)
		l.stats.Dropped += gap
	}
	l.stats.Frames++
	l.stats.LastSequence = frame.Sequence
	return gap
}

// Stop turns the stream off. Every buffer returns to the unqueued state
// and the loop ends in StateStopped even if the device reports an error.
// Calling Stop again returns nil.
func (l *Loop) Stop() error {
	switch l.state {
	case StateStopped:
		return nil
	case StateIdle:
		l.setState(StateStopped)
		return nil
	}

	l.setState(StateStopping)
	err := l.dev.StreamOff()
	l.pool.MarkStopped()
	l.setState(StateStopped)

	l.logger.Info("Capture stopped", "frames", l.stats.Frames, "dropped", l.stats.Dropped)
	if err != nil {
		return newError(ErrCodeStopFailed, "VIDIOC_STREAMOFF failed", err)
	}
	return nil
}
