// Package bufpool manages a set of driver-allocated, memory-mapped capture
// buffers and tracks which side currently owns each one.
package bufpool

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

// MinBuffers is the smallest pool the capture loop can keep streaming with.
const MinBuffers = 2

// Device is the subset of a V4L2 node the pool drives.
type Device interface {
	RequestBuffers(count uint32) (uint32, error)
	QueryBuffer(index uint32) (v4l2.BufferInfo, error)
	MapBuffer(info v4l2.BufferInfo) ([]byte, error)
	UnmapBuffer(mem []byte) error
	QueueBuffer(index uint32) error
	DequeueBuffer() (v4l2.Dequeued, error)
}

// State says who may touch a buffer's memory.
type State string

// Buffer ownership states.
const (
	StateUnqueued    State = "unqueued"
	StateDeviceOwned State = "device_owned"
	StateAppOwned    State = "app_owned"
)

// Buffer is one mapped slot of the pool.
type Buffer struct {
	Index  uint32
	Length uint32
	Data   []byte
	state  State
}

// Frame is a dequeued buffer. Data aliases the mapping and is only valid
// until the buffer is enqueued again.
type Frame struct {
	Index     uint32
	BytesUsed uint32
	Sequence  uint32
	Data      []byte
}

// Pool is an ordered set of mapped buffers. It is not safe for concurrent use.
type Pool struct {
	dev       Device
	buffers   []*Buffer
	streaming bool
	released  bool
	logger    *slog.Logger
}

// Allocate requests count mmap buffers from dev and maps each one. On any
// failure every mapping made so far is undone and the driver pool is freed.
func Allocate(dev Device, count int) (*Pool, error) {
	if count < MinBuffers {
		return nil, newError(ErrCodeInvalidCount, fmt.Sprintf("need at least %d buffers, got %d", MinBuffers, count), nil)
	}

	p := &Pool{
		dev:    dev,
		logger: logging.GetLogger("bufpool"),
	}

	granted, err := dev.RequestBuffers(uint32(count))
	if err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return nil, newError(ErrCodeUnsupported, "device does not support memory mapping", err)
		}
		return nil, newError(ErrCodeRequestFailed, "VIDIOC_REQBUFS failed", err)
	}

	if granted < MinBuffers {
		p.freeDevicePool()
		return nil, newError(ErrCodeInsufficientBuffers,
			fmt.Sprintf("insufficient buffer memory: requested %d, granted %d", count, granted), nil)
	}
	if int(granted) != count {
		p.logger.Info("Driver adjusted buffer count", "requested", count, "granted", granted)
	}

	p.buffers = make([]*Buffer, 0, granted)
	for i := uint32(0); i < granted; i++ {
		info, err := dev.QueryBuffer(i)
		if err != nil {
			p.unwind()
			return nil, newError(ErrCodeQueryFailed, fmt.Sprintf("VIDIOC_QUERYBUF %d failed", i), err)
		}

		mem, err := dev.MapBuffer(info)
		if err != nil {
			p.unwind()
			return nil, newError(ErrCodeMapFailed, fmt.Sprintf("mmap of buffer %d failed", i), err)
		}

		p.buffers = append(p.buffers, &Buffer{
			Index:  i,
			Length: info.Length,
			Data:   mem,
			state:  StateUnqueued,
		})
	}

	p.logger.Debug("Buffers mapped", "count", len(p.buffers), "length", p.buffers[0].Length)
	return p, nil
}

// Len returns the number of buffers in the pool.
func (p *Pool) Len() int {
	return len(p.buffers)
}

// State returns the ownership state of buffer i.
func (p *Pool) State(i uint32) State {
	if int(i) >= len(p.buffers) {
		return ""
	}
	return p.buffers[i].state
}

// Count returns how many buffers are in state s.
func (p *Pool) Count(s State) int {
	n := 0
	for _, b := range p.buffers {
		if b.state == s {
			n++
		}
	}
	return n
}

// Enqueue hands buffer i to the device.
func (p *Pool) Enqueue(i uint32) error {
	if p.released {
		return newError(ErrCodeInvalidState, "pool is released", nil)
	}
	if int(i) >= len(p.buffers) {
		return newError(ErrCodeOwnership, fmt.Sprintf("buffer index %d out of range", i), nil)
	}

	b := p.buffers[i]
	if b.state == StateDeviceOwned {
		return newError(ErrCodeOwnership, fmt.Sprintf("buffer %d is already queued", i), nil)
	}
	if err := p.dev.QueueBuffer(i); err != nil {
		return newError(ErrCodeQueueFailed, fmt.Sprintf("VIDIOC_QBUF %d failed", i), err)
	}
	b.state = StateDeviceOwned
	return nil
}

// EnqueueAll hands every buffer not already queued to the device.
func (p *Pool) EnqueueAll() error {
	for _, b := range p.buffers {
		if b.state == StateDeviceOwned {
			continue
		}
		if err := p.Enqueue(b.Index); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue takes a filled buffer back from the device. It returns an
// ErrCodeAgain error when no frame is ready yet.
func (p *Pool) Dequeue() (Frame, error) {
	if p.released {
		return Frame{}, newError(ErrCodeInvalidState, "pool is released", nil)
	}

	d, err := p.dev.DequeueBuffer()
	if err != nil {
		if errors.Is(err, syscall.EAGAIN) {
			return Frame{}, newError(ErrCodeAgain, "no frame ready", err)
		}
		return Frame{}, newError(ErrCodeDequeueFailed, "VIDIOC_DQBUF failed", err)
	}

	if int(d.Index) >= len(p.buffers) {
		return Frame{}, newError(ErrCodeOwnership, fmt.Sprintf("device returned unknown buffer %d", d.Index), nil)
	}
	b := p.buffers[d.Index]
	if b.state != StateDeviceOwned {
		return Frame{}, newError(ErrCodeOwnership,
			fmt.Sprintf("device returned buffer %d which is %s", d.Index, b.state), nil)
	}
	b.state = StateAppOwned

	used := d.BytesUsed
	if int(used) > len(b.Data) {
		used = uint32(len(b.Data))
	}
	return Frame{
		Index:     d.Index,
		BytesUsed: used,
		Sequence:  d.Sequence,
		Data:      b.Data[:used],
	}, nil
}

// MarkStreaming records that the device queue has been started.
func (p *Pool) MarkStreaming() {
	p.streaming = true
}

// MarkStopped records that the device queue has been stopped. The driver
// drops every queued buffer on stream off, so all of them become unqueued.
func (p *Pool) MarkStopped() {
	p.streaming = false
	for _, b := range p.buffers {
		b.state = StateUnqueued
	}
}

// Streaming reports whether the device queue is running.
func (p *Pool) Streaming() bool {
	return p.streaming
}

// Release unmaps every buffer and frees the driver pool. It refuses while
// the queue is streaming, whoever owns the buffers. Calling it again
// returns nil.
func (p *Pool) Release() error {
	if p.released {
		return nil
	}
	if p.streaming {
		return newError(ErrCodeInvalidState, "cannot release buffers while streaming", nil)
	}

	err := p.unmapAll()
	p.freeDevicePool()
	p.released = true
	p.streaming = false
	p.logger.Debug("Buffers released")
	return err
}

func (p *Pool) unmapAll() error {
	var errs []error
	for _, b := range p.buffers {
		if b.Data == nil {
			continue
		}
		if err := p.dev.UnmapBuffer(b.Data); err != nil {
			errs = append(errs, fmt.Errorf("munmap buffer %d: %w", b.Index, err))
		}
		b.Data = nil
		b.state = StateUnqueued
	}
	return errors.Join(errs...)
}

func (p *Pool) unwind() {
	if err := p.unmapAll(); err != nil {
		p.logger.Warn("Failed to unmap buffers", "error", err)
	}
	p.buffers = nil
	p.freeDevicePool()
}

func (p *Pool) freeDevicePool() {
	if _, err := p.dev.RequestBuffers(0); err != nil {
		p.logger.Warn("Failed to free driver buffers", "error", err)
	}
}
