//go:build linux

package devices

import (
	"log/slog"

	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

type linuxDetector struct {
	logger *slog.Logger
}

func newDetector() DeviceDetector {
	return &linuxDetector{
		logger: logging.GetLogger("devices"),
	}
}

// FindDevices returns all currently available V4L2 capture devices.
func (d *linuxDetector) FindDevices() ([]DeviceInfo, error) {
	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, len(found))
	for i, dev := range found {
		devices[i] = DeviceInfo{
			DevicePath: dev.DevicePath,
			DeviceName: dev.DeviceName,
			DeviceID:   dev.DeviceID,
			Caps:       dev.Caps,
		}
	}
	d.logger.Debug("Enumerated capture devices", "count", len(devices))

	return devices, nil
}

// GetDeviceFormats returns supported formats for a device.
func (d *linuxDetector) GetDeviceFormats(devicePath string) ([]FormatInfo, error) {
	found, err := v4l2.GetFormats(devicePath)
	if err != nil {
		return nil, err
	}

	formats := make([]FormatInfo, len(found))
	for i, f := range found {
		formats[i] = FormatInfo{
			PixelFormat: f.PixelFormat,
			FormatName:  f.FormatName,
			Emulated:    f.Emulated,
		}
	}

	return formats, nil
}

// GetDevicePathByID returns the device path for a given device ID.
func (d *linuxDetector) GetDevicePathByID(deviceID string) (string, error) {
	return v4l2.GetDevicePathByID(deviceID)
}

// GetDeviceResolutions returns supported resolutions for a format.
func (d *linuxDetector) GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error) {
	found, err := v4l2.GetResolutions(devicePath, pixelFormat)
	if err != nil {
		return nil, err
	}

	resolutions := make([]Resolution, len(found))
	for i, r := range found {
		resolutions[i] = Resolution{Width: r.Width, Height: r.Height}
	}

	return resolutions, nil
}

// GetDeviceFramerates returns supported framerates for a resolution.
func (d *linuxDetector) GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error) {
	found, err := v4l2.GetFramerates(devicePath, pixelFormat, width, height)
	if err != nil {
		return nil, err
	}

	framerates := make([]Framerate, len(found))
	for i, f := range found {
		framerates[i] = Framerate{Numerator: f.Numerator, Denominator: f.Denominator}
	}

	return framerates, nil
}
