//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Roots scanned during enumeration. Variables so tests can point them at a
// fake tree.
var (
	sysfsClassDir = "/sys/class/video4linux"
	byIDDir       = "/dev/v4l/by-id"
	devDir        = "/dev"
)

// FindDevices lists the nodes under /sys/class/video4linux that can capture
// frames. Metadata and output nodes are skipped, as are nodes that cannot
// be opened.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysfsClassDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", sysfsClassDir, err)
	}

	logger := slog.With("component", "v4l2")
	var found []DeviceInfo
	for _, entry := range entries {
		node := entry.Name()
		path := filepath.Join(devDir, node)

		c, err := probe(path)
		if err != nil {
			logger.Debug("Skipping video node", "path", path, "error", err)
			continue
		}
		caps := c.Effective()
		if caps&CapVideoCapture == 0 {
			continue
		}

		index := sysfsIndex(node)
		id := stableID(node, index)
		if id == "" {
			id = syntheticID(c.BusInfo, index)
		}

		found = append(found, DeviceInfo{
			DevicePath: path,
			DeviceName: c.Card,
			DeviceID:   id,
			Caps:       caps,
		})
	}
	return found, nil
}

func probe(path string) (Capability, error) {
	dev, err := Open(path)
	if err != nil {
		return Capability{}, err
	}
	defer func() { _ = dev.Close() }()
	return dev.QueryCapability()
}

// GetDevicePathByID returns the node whose stable id is deviceID.
func GetDevicePathByID(deviceID string) (string, error) {
	found, err := FindDevices()
	if err != nil {
		return "", err
	}
	for _, d := range found {
		if d.DeviceID == deviceID {
			return d.DevicePath, nil
		}
	}
	return "", fmt.Errorf("no video device with id %q", deviceID)
}

// stableID returns the /dev/v4l/by-id link that points at node and carries
// the node's index suffix, or "".
func stableID(node string, index int) string {
	entries, err := os.ReadDir(byIDDir)
	if err != nil {
		return ""
	}
	suffix := "-video-index" + strconv.Itoa(index)
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		target, err := os.Readlink(filepath.Join(byIDDir, entry.Name()))
		if err == nil && filepath.Base(target) == node {
			return entry.Name()
		}
	}
	return ""
}

// syntheticID builds an id for nodes udev did not link, such as platform
// ISPs and vivid.
func syntheticID(busInfo string, index int) string {
	if strings.HasPrefix(busInfo, "usb-") {
		return fmt.Sprintf("%s-video-index%d", busInfo, index)
	}
	return fmt.Sprintf("platform-%s-video-index%d", busInfo, index)
}

// sysfsIndex reads the node's index attribute. Missing or unreadable
// attributes count as index 0.
func sysfsIndex(node string) int {
	data, err := os.ReadFile(filepath.Join(sysfsClassDir, node, "index"))
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return n
}

// cstr trims a fixed-size kernel string at its first NUL.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func decodeCapability(raw *v4l2Capability) Capability {
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}
}
