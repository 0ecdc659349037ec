//go:build !linux

package v4l2

import "time"

// Device is a placeholder on platforms without V4L2; Open always fails.
type Device struct{}

// Open reports ErrUnsupported.
func Open(path string) (*Device, error) {
	return nil, ErrUnsupported
}

func (d *Device) Path() string                             { return "" }
func (d *Device) Close() error                             { return nil }
func (d *Device) QueryCapability() (Capability, error)     { return Capability{}, ErrUnsupported }
func (d *Device) GetFormat() (PixFormat, error)            { return PixFormat{}, ErrUnsupported }
func (d *Device) SetFormat(PixFormat) (PixFormat, error)   { return PixFormat{}, ErrUnsupported }
func (d *Device) RequestBuffers(uint32) (uint32, error)    { return 0, ErrUnsupported }
func (d *Device) QueryBuffer(uint32) (BufferInfo, error)   { return BufferInfo{}, ErrUnsupported }
func (d *Device) MapBuffer(BufferInfo) ([]byte, error)     { return nil, ErrUnsupported }
func (d *Device) UnmapBuffer([]byte) error                 { return ErrUnsupported }
func (d *Device) QueueBuffer(uint32) error                 { return ErrUnsupported }
func (d *Device) DequeueBuffer() (Dequeued, error)         { return Dequeued{}, ErrUnsupported }
func (d *Device) StreamOn() error                          { return ErrUnsupported }
func (d *Device) StreamOff() error                         { return ErrUnsupported }
func (d *Device) WaitReadable(time.Duration) (bool, error) { return false, ErrUnsupported }
