//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func checkEvent(t *testing.T, got, want *Event) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Errorf("got %+v, want nil", got)
		}
		return
	}
	if got == nil {
		t.Fatalf("got nil, want %+v", want)
	}
	if got.Action != want.Action || got.KObj != want.KObj {
		t.Errorf("header = %q@%q, want %q@%q", got.Action, got.KObj, want.Action, want.KObj)
	}
	if got.Subsystem != want.Subsystem || got.DevName != want.DevName {
		t.Errorf("subsystem/devname = %q/%q, want %q/%q", got.Subsystem, got.DevName, want.Subsystem, want.DevName)
	}
	if got.DevType != want.DevType || got.DevPath != want.DevPath {
		t.Errorf("devtype/devpath = %q/%q, want %q/%q", got.DevType, got.DevPath, want.DevType, want.DevPath)
	}
	if want.Env == nil {
		return
	}
	if len(got.Env) != len(want.Env) {
		t.Errorf("env = %v, want %v", got.Env, want.Env)
	}
	for k, v := range want.Env {
		if got.Env[k] != v {
			t.Errorf("env[%s] = %q, want %q", k, got.Env[k], v)
		}
	}
}

func TestParseUEvent(t *testing.T) {
	const usbCam = "/devices/pci0000:00/0000:00:14.0/usb1/1-2/1-2:1.0/video4linux/video0"
	long := "/devices/" + strings.Repeat("x", 400)

	tests := []struct {
		name string
		msg  string
		want *Event
	}{
		{"empty", "", nil},
		{"nul bytes only", "\x00\x00\x00", nil},
		{"no separator", "video0 attached", nil},
		{"no action", "@" + usbCam, nil},
		{
			name: "camera plugged",
			msg:  "add@" + usbCam + "\x00ACTION=add\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00MAJOR=81\x00MINOR=0\x00",
			want: &Event{
				Action:    ActionAdd,
				KObj:      usbCam,
				Subsystem: SubsystemVideo4Linux,
				DevName:   "video0",
				Env: map[string]string{
					"ACTION": "add", "SUBSYSTEM": "video4linux", "DEVNAME": "video0", "MAJOR": "81", "MINOR": "0",
				},
			},
		},
		{
			name: "camera unplugged",
			msg:  "remove@" + usbCam + "\x00SUBSYSTEM=video4linux\x00DEVNAME=/dev/video0\x00DEVPATH=" + usbCam + "\x00",
			want: &Event{
				Action:    ActionRemove,
				KObj:      usbCam,
				Subsystem: SubsystemVideo4Linux,
				DevName:   "/dev/video0",
				DevPath:   usbCam,
			},
		},
		{
			name: "usb interface",
			msg:  "bind@/devices/usb1/1-2\x00SUBSYSTEM=usb\x00DEVTYPE=usb_interface\x00\x00\x00",
			want: &Event{Action: "bind", KObj: "/devices/usb1/1-2", Subsystem: "usb", DevType: "usb_interface"},
		},
		{
			name: "header without kobj",
			msg:  "change@\x00",
			want: &Event{Action: "change", Env: map[string]string{}},
		},
		{
			name: "long kobj",
			msg:  "add@" + long + "\x00",
			want: &Event{Action: ActionAdd, KObj: long, Env: map[string]string{}},
		},
		{
			name: "malformed and empty fields skipped",
			msg:  "add@/devices/v\x00\x00garbage\x00=nokey\x00ID_V4L_CAPABILITIES=:capture:\x00ID_PATH=\x00",
			want: &Event{
				Action: ActionAdd,
				KObj:   "/devices/v",
				Env:    map[string]string{"ID_V4L_CAPABILITIES": ":capture:", "ID_PATH": ""},
			},
		},
		{
			name: "value containing equals",
			msg:  "add@/devices/v\x00ID_SERIAL=Cam_A=B\x00RAW=\xff\xfe\x00",
			want: &Event{
				Action: ActionAdd,
				KObj:   "/devices/v",
				Env:    map[string]string{"ID_SERIAL": "Cam_A=B", "RAW": "\xff\xfe"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkEvent(t, ParseUEvent([]byte(tt.msg)), tt.want)
		})
	}

	if ParseUEvent(nil) != nil {
		t.Error("ParseUEvent(nil) should be nil")
	}
}

func TestEventNode(t *testing.T) {
	tests := []struct {
		devName string
		want    string
	}{
		{"video0", "/dev/video0"},
		{"v4l/by-id/usb-cam", "/dev/v4l/by-id/usb-cam"},
		{"/dev/video3", "/dev/video3"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := (Event{DevName: tt.devName}).Node(); got != tt.want {
			t.Errorf("Node(%q) = %q, want %q", tt.devName, got, tt.want)
		}
	}
}

func TestParseUEventLibudevHeader(t *testing.T) {
	msg := append([]byte("libudev\x00\xfe\xed\xca\xfe\x00"), []byte("add@/devices/usb/video4linux/video2\x00SUBSYSTEM=video4linux\x00DEVNAME=video2\x00")...)
	event := ParseUEvent(msg)
	if event == nil {
		t.Fatal("expected event after libudev header")
	}
	if event.Action != ActionAdd || event.Node() != "/dev/video2" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestMonitorWants(t *testing.T) {
	all := &Monitor{subsystems: map[string]struct{}{}}
	v4l := &Monitor{subsystems: map[string]struct{}{SubsystemVideo4Linux: {}}}

	video := &Event{Subsystem: SubsystemVideo4Linux}
	usb := &Event{Subsystem: "usb"}

	if !all.wants(video) || !all.wants(usb) {
		t.Error("monitor without filters should accept everything")
	}
	if !v4l.wants(video) {
		t.Error("video4linux monitor rejected a video4linux event")
	}
	if v4l.wants(usb) {
		t.Error("video4linux monitor accepted a usb event")
	}
}

func newMonitor(t *testing.T, subsystems ...string) *Monitor {
	t.Helper()
	m, err := NewMonitor(subsystems...)
	if err != nil {
		t.Skipf("uevent socket unavailable: %v", err)
	}
	return m
}

func TestMonitorClose(t *testing.T) {
	m := newMonitor(t)

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}
	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("second Close() error: %v", closeErr)
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m := newMonitor(t, SubsystemVideo4Linux)
	defer func() { _ = m.Close() }()

	// Use already-cancelled context - Run() should return immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 10)
	runErr := m.Run(ctx, events)

	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", runErr)
	}
	if _, open := <-events; open {
		t.Error("events channel should be closed when Run returns")
	}
}

func TestMonitorRunDeadline(t *testing.T) {
	m := newMonitor(t, "termcam-test-subsystem")
	defer func() { _ = m.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Run(ctx, make(chan Event, 1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*pollInterval {
		t.Errorf("Run took %v to notice the deadline", elapsed)
	}
}
