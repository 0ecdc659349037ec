package devices

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directories udev populates with stable symlinks. Overridden in tests.
var (
	byIDDir   = "/dev/v4l/by-id"
	byPathDir = "/dev/v4l/by-path"
)

// ResolveDevicePath converts a device argument to a path that can be opened.
// Absolute paths are returned unchanged; stable IDs ("usb-...",
// "platform-...") are looked up under /dev/v4l.
func ResolveDevicePath(deviceID string) (string, error) {
	if filepath.IsAbs(deviceID) {
		return deviceID, nil
	}

	// Try by-id first (for USB devices)
	if strings.HasPrefix(deviceID, "usb-") {
		devicePath := filepath.Join(byIDDir, deviceID)
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Try by-path (for platform devices and USB devices without by-id)
	if strings.HasPrefix(deviceID, "platform-") || strings.HasPrefix(deviceID, "usb-") || strings.HasPrefix(deviceID, "pci-") {
		devicePath := filepath.Join(byPathDir, deviceID)
		if _, err := os.Stat(devicePath); err == nil {
			return devicePath, nil
		}
	}

	// Bare node names such as "video0"
	if strings.HasPrefix(deviceID, "video") {
		return filepath.Join("/dev", deviceID), nil
	}

	return "", fmt.Errorf("no stable symlink found for device ID: %s", deviceID)
}
