//go:build linux

package v4l2

import (
	"os"
	"path/filepath"
	"testing"
)

func withRoots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	oldSysfs, oldByID, oldDev := sysfsClassDir, byIDDir, devDir
	sysfsClassDir = filepath.Join(dir, "sys")
	byIDDir = filepath.Join(dir, "by-id")
	devDir = filepath.Join(dir, "dev")
	t.Cleanup(func() { sysfsClassDir, byIDDir, devDir = oldSysfs, oldByID, oldDev })
	return dir
}

func TestSyntheticID(t *testing.T) {
	tests := []struct {
		busInfo string
		index   int
		want    string
	}{
		{"usb-0000:00:14.0-2", 0, "usb-0000:00:14.0-2-video-index0"},
		{"platform:vivid-000", 1, "platform-platform:vivid-000-video-index1"},
		{"", 0, "platform--video-index0"},
	}
	for _, tt := range tests {
		if got := syntheticID(tt.busInfo, tt.index); got != tt.want {
			t.Errorf("syntheticID(%q, %d) = %q, want %q", tt.busInfo, tt.index, got, tt.want)
		}
	}
}

func TestStableID(t *testing.T) {
	withRoots(t)
	if err := os.MkdirAll(byIDDir, 0755); err != nil {
		t.Fatal(err)
	}
	links := map[string]string{
		"usb-Logitech_C920-video-index0": "../../video0",
		"usb-Logitech_C920-video-index1": "../../video1",
		"usb-Other_Cam-video-index0":     "../../video4",
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(byIDDir, name)); err != nil {
			t.Fatal(err)
		}
	}
	// Regular files are never ids
	if err := os.WriteFile(filepath.Join(byIDDir, "stray-video-index0"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		node  string
		index int
		want  string
	}{
		{"video0", 0, "usb-Logitech_C920-video-index0"},
		{"video1", 1, "usb-Logitech_C920-video-index1"},
		{"video4", 0, "usb-Other_Cam-video-index0"},
		{"video1", 0, ""},
		{"video9", 0, ""},
	}
	for _, tt := range tests {
		if got := stableID(tt.node, tt.index); got != tt.want {
			t.Errorf("stableID(%q, %d) = %q, want %q", tt.node, tt.index, got, tt.want)
		}
	}
}

func TestStableIDMissingDir(t *testing.T) {
	withRoots(t)
	if got := stableID("video0", 0); got != "" {
		t.Errorf("stableID() = %q, want empty", got)
	}
}

func TestSysfsIndex(t *testing.T) {
	withRoots(t)
	for node, content := range map[string]string{"video0": "0\n", "video1": "1\n", "video2": "junk"} {
		dir := filepath.Join(sysfsClassDir, node)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := map[string]int{"video0": 0, "video1": 1, "video2": 0, "video3": 0}
	for node, want := range tests {
		if got := sysfsIndex(node); got != want {
			t.Errorf("sysfsIndex(%q) = %d, want %d", node, got, want)
		}
	}
}

func TestFindDevicesWithoutSysfs(t *testing.T) {
	withRoots(t)
	found, err := FindDevices()
	if err != nil {
		t.Fatalf("FindDevices() error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindDevices() = %v, want none", found)
	}
}

func TestFindDevicesSkipsUnopenableNodes(t *testing.T) {
	withRoots(t)
	if err := os.MkdirAll(filepath.Join(sysfsClassDir, "video0"), 0755); err != nil {
		t.Fatal(err)
	}
	// devDir has no video0, so the open fails and the node is skipped
	found, err := FindDevices()
	if err != nil {
		t.Fatalf("FindDevices() error: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindDevices() = %v, want none", found)
	}
	if _, err := GetDevicePathByID("usb-anything-video-index0"); err == nil {
		t.Error("GetDevicePathByID() should fail when nothing is found")
	}
}
