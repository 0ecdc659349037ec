// Package session opens a V4L2 capture node, checks that it can stream and
// negotiates a packed YUYV format on it.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

// Device is the subset of a V4L2 node a session needs.
type Device interface {
	QueryCapability() (v4l2.Capability, error)
	GetFormat() (v4l2.PixFormat, error)
	SetFormat(v4l2.PixFormat) (v4l2.PixFormat, error)
	Close() error
}

// Format is the geometry agreed with the driver. BytesPerLine and SizeImage
// are never smaller than what Width and Height imply for YUYV.
type Format struct {
	PixelFormat  uint32
	Width        uint32
	Height       uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Session owns an open capture device.
type Session struct {
	path   string
	dev    Device
	format Format
	closed bool
	logger *slog.Logger
}

// Open validates path and opens it for non-blocking read/write access.
func Open(path string) (*Session, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, newError(ErrCodeNotFound, fmt.Sprintf("cannot identify %q", path), err)
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		return nil, newError(ErrCodeNotCharDevice, fmt.Sprintf("%s is no device", path), nil)
	}

	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, newError(ErrCodeOpenFailed, fmt.Sprintf("cannot open %q", path), err)
	}
	return New(path, dev), nil
}

// New wraps a device that is already open.
func New(path string, dev Device) *Session {
	return &Session{
		path:   path,
		dev:    dev,
		logger: logging.GetLogger("session").With("device", path),
	}
}

// Path returns the node the session was opened from.
func (s *Session) Path() string {
	return s.path
}

// Device returns the underlying device.
func (s *Session) Device() Device {
	return s.dev
}

// Format returns the negotiated format. It is the zero value before Negotiate.
func (s *Session) Format() Format {
	return s.format
}

// Negotiate checks capabilities and configures the device for YUYV capture.
// When req is nil the device's current geometry is kept. The returned format
// always reflects what the driver chose, not what was requested.
func (s *Session) Negotiate(req *Geometry) (Format, error) {
	if s.closed {
		return Format{}, newError(ErrCodeClosed, "session is closed", nil)
	}

	caps, err := s.dev.QueryCapability()
	if err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return Format{}, newError(ErrCodeQueryFailed, fmt.Sprintf("%s is no V4L2 device", s.path), err)
		}
		return Format{}, newError(ErrCodeQueryFailed, "VIDIOC_QUERYCAP failed", err)
	}

	effective := caps.Effective()
	if effective&v4l2.CapVideoCapture == 0 {
		return Format{}, newError(ErrCodeNotVideoCapable, fmt.Sprintf("%s is no video capture device", s.path), nil)
	}
	if effective&v4l2.CapStreaming == 0 {
		return Format{}, newError(ErrCodeNoStreamingSupport, fmt.Sprintf("%s does not support streaming i/o", s.path), nil)
	}
	s.logger.Debug("Device capabilities", "driver", caps.Driver, "card", caps.Card, "caps", fmt.Sprintf("0x%08x", effective))

	pix, err := s.dev.GetFormat()
	if err != nil {
		return Format{}, newError(ErrCodeQueryFailed, "VIDIOC_G_FMT failed", err)
	}

	if req != nil {
		pix.Width = req.Width
		pix.Height = req.Height
		pix.Field = v4l2.FieldAny
	}

	if pix.PixelFormat != v4l2.PixFmtYUYV || req != nil {
		pix.PixelFormat = v4l2.PixFmtYUYV
		got, err := s.dev.SetFormat(pix)
		if err != nil {
			return Format{}, newError(ErrCodeFormatRejected, "VIDIOC_S_FMT failed", err)
		}
		if got.PixelFormat != v4l2.PixFmtYUYV {
			return Format{}, newError(ErrCodeFormatRejected,
				fmt.Sprintf("device chose %s instead of YUYV", v4l2.FormatFourCC(got.PixelFormat)), nil)
		}
		pix = got
	}

	if pix.Width == 0 || pix.Height == 0 {
		return Format{}, newError(ErrCodeFormatRejected, "device reported an empty frame size", nil)
	}

	s.format = clampFormat(Format{
		PixelFormat:  pix.PixelFormat,
		Width:        pix.Width,
		Height:       pix.Height,
		BytesPerLine: pix.BytesPerLine,
		SizeImage:    pix.SizeImage,
	})

	if req != nil && (req.Width != s.format.Width || req.Height != s.format.Height) {
		s.logger.Info("Device adjusted requested size", "requested", req.String(),
			"actual", fmt.Sprintf("%dx%d", s.format.Width, s.format.Height))
	}
	s.logger.Info("Format negotiated", "width", s.format.Width, "height", s.format.Height,
		"bytesperline", s.format.BytesPerLine, "sizeimage", s.format.SizeImage)

	return s.format, nil
}

// Close releases the device. Calling it again returns nil.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.dev.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	s.logger.Debug("Device closed")
	return nil
}

// clampFormat works around drivers that report a short line stride or image
// size for packed YUYV.
func clampFormat(f Format) Format {
	minLine := f.Width * 2
	if f.BytesPerLine < minLine {
		f.BytesPerLine = minLine
	}
	minSize := f.BytesPerLine * f.Height
	if f.SizeImage < minSize {
		f.SizeImage = minSize
	}
	return f
}
