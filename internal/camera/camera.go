// Package camera wires a device session, buffer pool, capture loop,
// resampler and renderer together and guarantees they are torn down in
// order: stream off, buffers released, device closed.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/termcam/internal/bufpool"
	"github.com/smazurov/termcam/internal/capture"
	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/render"
	"github.com/smazurov/termcam/internal/resample"
	"github.com/smazurov/termcam/internal/session"
	"github.com/smazurov/termcam/internal/virtualcam"
)

// Device is everything the pipeline needs from a capture node.
type Device interface {
	session.Device
	bufpool.Device
	capture.Device
}

// Opener opens path and returns its session together with the device
// behind it.
type Opener func(path string) (*session.Session, Device, error)

// Config describes one capture run.
type Config struct {
	Device    string
	Size      *session.Geometry
	Buffers   int
	Timeout   time.Duration
	PollSlice time.Duration
}

// Camera runs the capture pipeline for a single device.
type Camera struct {
	cfg      Config
	renderer render.Renderer
	observer capture.Observer
	open     Opener
	onFormat func(session.Format)
	logger   *slog.Logger

	format  session.Format
	stats   capture.Stats
	skipped uint64
}

// Option configures a Camera.
type Option func(*Camera)

// WithObserver receives capture loop notifications.
func WithObserver(o capture.Observer) Option {
	return func(c *Camera) {
		c.observer = o
	}
}

// WithOpener replaces how the device is opened.
func WithOpener(open Opener) Option {
	return func(c *Camera) {
		c.open = open
	}
}

// WithNegotiated is called once the device has settled on a format.
func WithNegotiated(fn func(session.Format)) Option {
	return func(c *Camera) {
		c.onFormat = fn
	}
}

// New creates a camera that draws on r.
func New(cfg Config, r render.Renderer, opts ...Option) *Camera {
	c := &Camera{
		cfg:      cfg,
		renderer: r,
		open:     OpenDevice,
		logger:   logging.GetLogger("camera"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenDevice opens a V4L2 node, or the virtual device for virtual:// paths.
func OpenDevice(path string) (*session.Session, Device, error) {
	if virtualcam.IsVirtual(path) {
		cam, err := virtualcam.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return session.New(path, cam), cam, nil
	}

	sess, err := session.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dev, ok := sess.Device().(Device)
	if !ok {
		sess.Close()
		return nil, nil, fmt.Errorf("%s does not support streaming on this platform", path)
	}
	return sess, dev, nil
}

// Format returns the format negotiated by the last Run.
func (c *Camera) Format() session.Format {
	return c.format
}

// Stats returns the loop counters of the last Run.
func (c *Camera) Stats() capture.Stats {
	return c.stats
}

// Skipped returns how many short frames were dropped by the last Run.
func (c *Camera) Skipped() uint64 {
	return c.skipped
}

// Run captures and renders frames until ctx is cancelled or a fatal error
// occurs. Cancellation is not an error. Every resource acquired is
// released before Run returns, and teardown errors are joined to the
// result.
func (c *Camera) Run(ctx context.Context) (err error) {
	sess, dev, err := c.open(c.cfg.Device)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, sess.Close())
	}()

	format, err := sess.Negotiate(c.cfg.Size)
	if err != nil {
		return err
	}
	c.format = format
	if c.onFormat != nil {
		c.onFormat(format)
	}

	pool, err := bufpool.Allocate(dev, c.cfg.Buffers)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, pool.Release())
	}()

	width, height, err := c.renderer.Init()
	if err != nil {
		return fmt.Errorf("renderer init: %w", err)
	}
	defer func() {
		err = errors.Join(err, c.renderer.Close())
	}()

	scaler, err := resample.New(int(format.Width), int(format.Height), width, height)
	if err != nil {
		return err
	}
	xs, ys := scaler.Scale()
	c.logger.Info("Resampling", "source", fmt.Sprintf("%dx%d", format.Width, format.Height),
		"raster", fmt.Sprintf("%dx%d", width, height), "xstep", xs, "ystep", ys)

	loop := capture.New(dev, pool,
		capture.WithTimeout(c.cfg.Timeout),
		capture.WithPollSlice(c.cfg.PollSlice),
		capture.WithObserver(c.observer),
	)
	if err := loop.Start(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, loop.Stop())
		c.stats = loop.Stats()
	}()

	c.skipped = 0
	return loop.Run(ctx, func(f bufpool.Frame) error {
		if err := scaler.ResampleInto(f.Data, c.renderer); err != nil {
			if errors.Is(err, resample.ErrShortFrame) {
				c.skipped++
				c.logger.Debug("Skipping short frame", "sequence", f.Sequence, "bytesused", f.BytesUsed)
				return nil
			}
			return err
		}
		return c.renderer.Render()
	})
}
