// Package devices lists capture devices and what they can produce.
package devices

import (
	"errors"
	"sort"

	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

// ErrUnsupported is returned on platforms without V4L2.
var ErrUnsupported = errors.New("devices: V4L2 is not available on this platform")

// DeviceInfo represents information about a V4L2 capture device
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string
	Caps       uint32
}

// Streaming reports whether the device supports mmap streaming.
func (d DeviceInfo) Streaming() bool {
	return d.Caps&v4l2.CapStreaming != 0
}

// FormatInfo represents information about a video format
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// FourCC returns the format's four character code.
func (f FormatInfo) FourCC() string {
	return v4l2.FormatFourCC(f.PixelFormat)
}

// Resolution represents a video resolution
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a video framerate
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// DeviceDetector provides platform-specific device detection
type DeviceDetector interface {
	// FindDevices returns all currently available V4L2 capture devices
	FindDevices() ([]DeviceInfo, error)

	// GetDeviceFormats returns supported formats for a device
	GetDeviceFormats(devicePath string) ([]FormatInfo, error)

	// GetDevicePathByID returns the device path for a given device ID
	GetDevicePathByID(deviceID string) (string, error)

	// GetDeviceResolutions returns supported resolutions for a format
	GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)

	// GetDeviceFramerates returns supported framerates for a resolution
	GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error)
}

// NewDetector creates a platform-specific device detector
func NewDetector() DeviceDetector {
	return newDetector()
}

// FormatReport is one pixel format with the sizes the driver lists for it.
type FormatReport struct {
	FormatInfo
	Resolutions []Resolution
	Err         error
}

// Report describes one device for the devices listing.
type Report struct {
	Device  DeviceInfo
	Formats []FormatReport
	Err     error
}

// Describe enumerates the formats and resolutions of every device the
// detector finds. Per-device and per-format failures are recorded in the
// report rather than aborting the listing.
func Describe(d DeviceDetector) ([]Report, error) {
	found, err := d.FindDevices()
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool { return found[i].DevicePath < found[j].DevicePath })

	reports := make([]Report, 0, len(found))
	for _, dev := range found {
		report := Report{Device: dev}

		formats, fmtErr := d.GetDeviceFormats(dev.DevicePath)
		if fmtErr != nil {
			report.Err = fmtErr
			reports = append(reports, report)
			continue
		}

		for _, f := range formats {
			fr := FormatReport{FormatInfo: f}
			fr.Resolutions, fr.Err = d.GetDeviceResolutions(dev.DevicePath, f.PixelFormat)
			report.Formats = append(report.Formats, fr)
		}
		reports = append(reports, report)
	}
	return reports, nil
}
