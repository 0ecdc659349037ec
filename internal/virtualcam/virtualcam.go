// Package virtualcam provides an in-process capture device that speaks the
// same buffer protocol as a V4L2 node. Frames carry a synthetic test
// pattern. The device backs the virtual:// device paths and is used as the
// device double in tests.
package virtualcam

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

// Scheme prefixes device paths that select the virtual device.
const Scheme = "virtual://"

// Limits applied by SetFormat, matching what small UVC bridges accept.
const (
	MinDimension = 16
	MaxDimension = 4096
	MaxBuffers   = 32
)

const pageSize = 4096

// Faults makes the device misbehave in a controlled way.
type Faults struct {
	QueryCapErr   error
	GetFormatErr  error
	SetFormatErr  error
	ForceFourCC   uint32
	AdjustSize    func(w, h uint32) (uint32, uint32)
	GrantLimit    uint32
	RequestErr    error
	QueryBufErr   error
	MapErr        error
	MapErrIndex   uint32
	StreamOnErr   error
	StreamOffErr  error
	NeverReady    bool
	AgainCount    int
	InterruptWait int
	SequenceStep  uint32 // sequence increment per frame; >1 simulates driver drops
}

// Stats counts protocol calls made against the device.
type Stats struct {
	Requests  int
	Maps      int
	Unmaps    int
	Queued    int
	Dequeued  int
	Waits     int
	Timeouts  int
	StreamOns int
}

type slot struct {
	mem    []byte
	mapped bool
	queued bool
}

// Camera is the virtual device. Its methods are safe for concurrent use.
type Camera struct {
	mu        sync.Mutex
	path      string
	pattern   Pattern
	interval  time.Duration
	format    v4l2.PixFormat
	faults    Faults
	slots     []*slot
	incoming  []uint32
	streaming bool
	closed    bool
	sequence  uint32
	lastFrame time.Time
	stats     Stats
}

// Option configures a Camera.
type Option func(*Camera)

// WithSize sets the initial frame size.
func WithSize(width, height uint32) Option {
	return func(c *Camera) {
		c.setSize(width, height)
	}
}

// WithPattern selects the generated test pattern.
func WithPattern(p Pattern) Option {
	return func(c *Camera) {
		c.pattern = p
	}
}

// WithFrameInterval paces frame delivery. Zero delivers frames as fast as
// they are dequeued.
func WithFrameInterval(d time.Duration) Option {
	return func(c *Camera) {
		c.interval = d
	}
}

// WithFaults installs fault injection.
func WithFaults(f Faults) Option {
	return func(c *Camera) {
		c.faults = f
	}
}

// New creates a virtual camera producing 640x480 YUYV frames at 30fps.
func New(opts ...Option) *Camera {
	c := &Camera{
		path:     Scheme + string(PatternBars),
		pattern:  PatternBars,
		interval: time.Second / 30,
	}
	c.setSize(640, 480)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsVirtual reports whether path selects the virtual device.
func IsVirtual(path string) bool {
	return strings.HasPrefix(path, Scheme)
}

// Open creates a camera for a virtual:// path. The part after the scheme
// names the pattern; an empty name selects bars.
func Open(path string, opts ...Option) (*Camera, error) {
	if !IsVirtual(path) {
		return nil, fmt.Errorf("not a virtual device path: %q", path)
	}
	name := strings.TrimPrefix(path, Scheme)
	p, err := ParsePattern(name)
	if err != nil {
		return nil, err
	}
	c := New(append([]Option{WithPattern(p)}, opts...)...)
	c.path = path
	return c, nil
}

// Path returns the path the camera was opened with.
func (c *Camera) Path() string {
	return c.path
}

// Stats returns a snapshot of the call counters.
func (c *Camera) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Mapped returns how many buffers are currently mapped.
func (c *Camera) Mapped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s.mapped {
			n++
		}
	}
	return n
}

// Streaming reports whether the queue is started.
func (c *Camera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Closed reports whether Close has been called.
func (c *Camera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// QueryCapability reports a streaming capture device.
func (c *Camera) QueryCapability() (v4l2.Capability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.Capability{}, v4l2.ErrClosed
	}
	if c.faults.QueryCapErr != nil {
		return v4l2.Capability{}, c.faults.QueryCapErr
	}
	return v4l2.Capability{
		Driver:       "virtualcam",
		Card:         "Virtual Camera (" + string(c.pattern) + ")",
		BusInfo:      "platform:virtualcam",
		Capabilities: v4l2.CapVideoCapture | v4l2.CapStreaming | v4l2.CapDeviceCaps,
		DeviceCaps:   v4l2.CapVideoCapture | v4l2.CapStreaming,
	}, nil
}

// GetFormat returns the current format.
func (c *Camera) GetFormat() (v4l2.PixFormat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.PixFormat{}, v4l2.ErrClosed
	}
	if c.faults.GetFormatErr != nil {
		return v4l2.PixFormat{}, c.faults.GetFormatErr
	}
	return c.format, nil
}

// SetFormat adjusts the request to what the device supports and applies it.
// Only YUYV is produced; other pixel formats are replaced.
func (c *Camera) SetFormat(want v4l2.PixFormat) (v4l2.PixFormat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.PixFormat{}, v4l2.ErrClosed
	}
	if c.faults.SetFormatErr != nil {
		return v4l2.PixFormat{}, c.faults.SetFormatErr
	}
	if len(c.slots) > 0 {
		return v4l2.PixFormat{}, syscall.EBUSY
	}

	w, h := want.Width, want.Height
	if c.faults.AdjustSize != nil {
		w, h = c.faults.AdjustSize(w, h)
	}
	c.setSize(w, h)
	if c.faults.ForceFourCC != 0 {
		f := c.format
		f.PixelFormat = c.faults.ForceFourCC
		return f, nil
	}
	return c.format, nil
}

func (c *Camera) setSize(w, h uint32) {
	w = min(max(w, MinDimension), MaxDimension) &^ 1
	h = min(max(h, MinDimension), MaxDimension)
	c.format = v4l2.PixFormat{
		Width:        w,
		Height:       h,
		PixelFormat:  v4l2.PixFmtYUYV,
		Field:        v4l2.FieldNone,
		BytesPerLine: w * 2,
		SizeImage:    w * 2 * h,
	}
}

// RequestBuffers allocates count buffers, or frees them all when count is 0.
func (c *Camera) RequestBuffers(count uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, v4l2.ErrClosed
	}
	c.stats.Requests++
	if c.faults.RequestErr != nil {
		return 0, c.faults.RequestErr
	}
	if c.streaming {
		return 0, syscall.EBUSY
	}
	for _, s := range c.slots {
		if s.mapped {
			return 0, syscall.EBUSY
		}
	}

	c.slots = nil
	c.incoming = nil
	if count == 0 {
		return 0, nil
	}

	limit := uint32(MaxBuffers)
	if c.faults.GrantLimit > 0 {
		limit = c.faults.GrantLimit
	}
	granted := min(count, limit)
	for range granted {
		c.slots = append(c.slots, &slot{mem: make([]byte, c.format.SizeImage)})
	}
	return granted, nil
}

// QueryBuffer describes slot index.
func (c *Camera) QueryBuffer(index uint32) (v4l2.BufferInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.BufferInfo{}, v4l2.ErrClosed
	}
	if c.faults.QueryBufErr != nil {
		return v4l2.BufferInfo{}, c.faults.QueryBufErr
	}
	if int(index) >= len(c.slots) {
		return v4l2.BufferInfo{}, syscall.EINVAL
	}
	return v4l2.BufferInfo{
		Index:  index,
		Offset: index * c.stride(),
		Length: uint32(len(c.slots[index].mem)),
	}, nil
}

func (c *Camera) stride() uint32 {
	return (c.format.SizeImage + pageSize - 1) / pageSize * pageSize
}

// MapBuffer returns the memory of the slot at info.Offset.
func (c *Camera) MapBuffer(info v4l2.BufferInfo) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, v4l2.ErrClosed
	}
	index := info.Offset / c.stride()
	if info.Offset%c.stride() != 0 || int(index) >= len(c.slots) {
		return nil, syscall.EINVAL
	}
	if c.faults.MapErr != nil && index == c.faults.MapErrIndex {
		return nil, c.faults.MapErr
	}
	s := c.slots[index]
	if int(info.Length) > len(s.mem) {
		return nil, syscall.EINVAL
	}
	s.mapped = true
	c.stats.Maps++
	return s.mem[:info.Length], nil
}

// UnmapBuffer releases a mapping returned by MapBuffer.
func (c *Camera) UnmapBuffer(mem []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(mem) == 0 {
		return syscall.EINVAL
	}
	for _, s := range c.slots {
		if s.mapped && &s.mem[0] == &mem[0] {
			s.mapped = false
			c.stats.Unmaps++
			return nil
		}
	}
	return syscall.EINVAL
}

// QueueBuffer hands slot index to the device.
func (c *Camera) QueueBuffer(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.ErrClosed
	}
	if int(index) >= len(c.slots) || c.slots[index].queued {
		return syscall.EINVAL
	}
	c.slots[index].queued = true
	c.incoming = append(c.incoming, index)
	c.stats.Queued++
	return nil
}

// DequeueBuffer fills the oldest queued slot with the next frame. It
// returns EAGAIN when nothing is queued or the next frame is not due.
func (c *Camera) DequeueBuffer() (v4l2.Dequeued, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.Dequeued{}, v4l2.ErrClosed
	}
	if !c.streaming {
		return v4l2.Dequeued{}, syscall.EINVAL
	}
	if c.faults.AgainCount > 0 {
		c.faults.AgainCount--
		return v4l2.Dequeued{}, syscall.EAGAIN
	}
	if len(c.incoming) == 0 || c.faults.NeverReady || c.untilNextFrame() > 0 {
		return v4l2.Dequeued{}, syscall.EAGAIN
	}

	index := c.incoming[0]
	c.incoming = c.incoming[1:]
	s := c.slots[index]
	s.queued = false

	fill(s.mem, c.format.Width, c.format.Height, c.pattern, c.sequence)
	d := v4l2.Dequeued{
		Index:     index,
		BytesUsed: c.format.SizeImage,
		Sequence:  c.sequence,
	}
	c.sequence += max(c.faults.SequenceStep, 1)
	c.lastFrame = time.Now()
	c.stats.Dequeued++
	return d, nil
}

func (c *Camera) untilNextFrame() time.Duration {
	if c.interval <= 0 || c.lastFrame.IsZero() {
		return 0
	}
	return time.Until(c.lastFrame.Add(c.interval))
}

// StreamOn starts the queue.
func (c *Camera) StreamOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.ErrClosed
	}
	if c.faults.StreamOnErr != nil {
		return c.faults.StreamOnErr
	}
	if len(c.slots) == 0 {
		return syscall.EINVAL
	}
	c.streaming = true
	c.stats.StreamOns++
	return nil
}

// StreamOff stops the queue and drops every queued slot.
func (c *Camera) StreamOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return v4l2.ErrClosed
	}
	if c.faults.StreamOffErr != nil {
		return c.faults.StreamOffErr
	}
	c.streaming = false
	c.incoming = nil
	for _, s := range c.slots {
		s.queued = false
	}
	return nil
}

// WaitReadable sleeps until a queued slot can be dequeued or timeout elapses.
func (c *Camera) WaitReadable(timeout time.Duration) (bool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, v4l2.ErrClosed
	}
	c.stats.Waits++
	if c.faults.InterruptWait > 0 {
		c.faults.InterruptWait--
		c.mu.Unlock()
		return false, syscall.EINTR
	}
	ready := c.streaming && len(c.incoming) > 0 && !c.faults.NeverReady
	wait := timeout
	if ready {
		wait = c.untilNextFrame()
	}
	if !ready || wait > timeout {
		c.stats.Timeouts++
		c.mu.Unlock()
		time.Sleep(timeout)
		return false, nil
	}
	c.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return true, nil
}

// Close marks the device closed. Closing twice is a no-op.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
