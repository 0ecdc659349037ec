//go:build linux

package v4l2

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is an open V4L2 node. It translates the streaming calls into
// ioctls on a single descriptor and is not safe for concurrent use.
type Device struct {
	path string
	fd   int
}

// Open opens a device node for non-blocking read/write access.
func Open(path string) (*Device, error) {
	fd, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, fd: fd}, nil
}

// Path returns the node the device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Close releases the descriptor. Closing twice is a no-op.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return closeFd(fd)
}

// QueryCapability issues VIDIOC_QUERYCAP.
func (d *Device) QueryCapability() (Capability, error) {
	if d.fd < 0 {
		return Capability{}, ErrClosed
	}
	raw := v4l2Capability{}
	if err := ioctl(d.fd, vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, err
	}
	return decodeCapability(&raw), nil
}

// GetFormat issues VIDIOC_G_FMT for the capture queue.
func (d *Device) GetFormat() (PixFormat, error) {
	if d.fd < 0 {
		return PixFormat{}, ErrClosed
	}
	f := v4l2Format{typ: bufTypeVideoCapture}
	if err := ioctl(d.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return decodePixFormat(f.pix()), nil
}

// SetFormat issues VIDIOC_S_FMT and returns what the driver actually chose,
// which may differ from the request.
func (d *Device) SetFormat(want PixFormat) (PixFormat, error) {
	if d.fd < 0 {
		return PixFormat{}, ErrClosed
	}
	f := v4l2Format{typ: bufTypeVideoCapture}
	pix := f.pix()
	pix.width = want.Width
	pix.height = want.Height
	pix.pixelformat = want.PixelFormat
	pix.field = want.Field
	pix.bytesperline = want.BytesPerLine
	pix.sizeimage = want.SizeImage
	pix.colorspace = want.Colorspace
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return PixFormat{}, err
	}
	return decodePixFormat(pix), nil
}

// RequestBuffers issues VIDIOC_REQBUFS for mmap buffers and returns the
// number granted. A count of zero frees the driver's pool.
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	if d.fd < 0 {
		return 0, ErrClosed
	}
	req := v4l2RequestBuffers{
		count:  count,
		typ:    bufTypeVideoCapture,
		memory: memoryMMap,
	}
	if err := ioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, err
	}
	return req.count, nil
}

// QueryBuffer issues VIDIOC_QUERYBUF for one pool slot.
func (d *Device) QueryBuffer(index uint32) (BufferInfo, error) {
	if d.fd < 0 {
		return BufferInfo{}, ErrClosed
	}
	buf := v4l2Buffer{
		index:  index,
		typ:    bufTypeVideoCapture,
		memory: memoryMMap,
	}
	if err := ioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
		return BufferInfo{}, err
	}
	return BufferInfo{Index: buf.index, Offset: buf.offset, Length: buf.length}, nil
}

// MapBuffer maps a queried buffer into the process as a shared mapping.
func (d *Device) MapBuffer(info BufferInfo) ([]byte, error) {
	if d.fd < 0 {
		return nil, ErrClosed
	}
	return unix.Mmap(d.fd, int64(info.Offset), int(info.Length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// UnmapBuffer releases a mapping returned by MapBuffer.
func (d *Device) UnmapBuffer(mem []byte) error {
	return unix.Munmap(mem)
}

// QueueBuffer hands a buffer to the driver (VIDIOC_QBUF).
func (d *Device) QueueBuffer(index uint32) error {
	if d.fd < 0 {
		return ErrClosed
	}
	buf := v4l2Buffer{
		index:  index,
		typ:    bufTypeVideoCapture,
		memory: memoryMMap,
	}
	return ioctl(d.fd, vidiocQbuf, unsafe.Pointer(&buf))
}

// DequeueBuffer takes a filled buffer back from the driver (VIDIOC_DQBUF).
// EAGAIN is returned unchanged when no frame is ready.
func (d *Device) DequeueBuffer() (Dequeued, error) {
	if d.fd < 0 {
		return Dequeued{}, ErrClosed
	}
	buf := v4l2Buffer{
		typ:    bufTypeVideoCapture,
		memory: memoryMMap,
	}
	if err := ioctl(d.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return Dequeued{}, err
	}
	return Dequeued{
		Index:     buf.index,
		BytesUsed: buf.bytesused,
		Sequence:  buf.sequence,
		Flags:     buf.flags,
	}, nil
}

// StreamOn starts the capture queue.
func (d *Device) StreamOn() error {
	if d.fd < 0 {
		return ErrClosed
	}
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ))
}

// StreamOff stops the capture queue. The driver drops every queued buffer.
func (d *Device) StreamOff() error {
	if d.fd < 0 {
		return ErrClosed
	}
	typ := uint32(bufTypeVideoCapture)
	return ioctl(d.fd, vidiocStreamoff, unsafe.Pointer(&typ))
}

// WaitReadable blocks in poll(2) until a buffer is ready or the timeout
// expires. EINTR is returned to the caller, which decides whether to retry.
// POLLERR also counts as ready so the following DQBUF reports the error.
func (d *Device) WaitReadable(timeout time.Duration) (bool, error) {
	if d.fd < 0 {
		return false, ErrClosed
	}
	fds := []unix.PollFd{{Fd: int32(d.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, PollTimeout(timeout))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PollTimeout converts a wait to poll(2) milliseconds, rounding up so a
// short positive wait never becomes a non-blocking poll.
func PollTimeout(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int((timeout + time.Millisecond - 1) / time.Millisecond)
}

func decodePixFormat(pix *v4l2PixFormat) PixFormat {
	return PixFormat{
		Width:        pix.width,
		Height:       pix.height,
		PixelFormat:  pix.pixelformat,
		Field:        pix.field,
		BytesPerLine: pix.bytesperline,
		SizeImage:    pix.sizeimage,
		Colorspace:   pix.colorspace,
	}
}
