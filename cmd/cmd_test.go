package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/termcam/internal/devices"
	"github.com/smazurov/termcam/internal/pgm"
	"github.com/smazurov/termcam/pkg/linuxav/hotplug"
	"github.com/smazurov/termcam/pkg/linuxav/v4l2"
)

// Mock writer for testing; the watcher draws from its own goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func halves(width, height int) *pgm.Image {
	img := pgm.New(width, height)
	for y := 0; y < height; y++ {
		for x := width / 2; x < width; x++ {
			img.Set(x, y, 255)
		}
	}
	return img
}

func TestRenderImage(t *testing.T) {
	var out bytes.Buffer
	if err := RenderImage(&out, halves(40, 20), 4, 2); err != nil {
		t.Fatalf("RenderImage() error = %v", err)
	}

	want := "  @@\n  @@\n\f"
	if out.String() != want {
		t.Errorf("RenderImage() = %q, want %q", out.String(), want)
	}
}

func TestRenderImageShort(t *testing.T) {
	img := &pgm.Image{Width: 10, Height: 10, Pix: make([]byte, 50)}
	if err := RenderImage(&bytes.Buffer{}, img, 4, 2); err == nil {
		t.Error("expected error for truncated pixel data")
	}
}

func TestViewCommandStdin(t *testing.T) {
	var in bytes.Buffer
	if err := pgm.Encode(&in, halves(8, 4)); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := CreateViewCmd()
	cmd.SetArgs([]string{"--grid", "2x1", "-"})
	cmd.SetIn(&in)
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("view error = %v", err)
	}
	if out.String() != " @\n\f" {
		t.Errorf("view output = %q", out.String())
	}
}

func TestViewCommandBadGrid(t *testing.T) {
	cmd := CreateViewCmd()
	cmd.SetArgs([]string{"--grid", "wide", "image.pgm"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for malformed grid")
	}
}

func TestDump(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFrames int
		wantFile   string
	}{
		{"single frame", "ab\ncd\n\f", 1, "ab\ncd\n"},
		{"keeps the last frame", "one\n\ftwo\n\fthree\n\f", 3, "three\n"},
		{"trailing partial frame", "one\n\fpart", 2, "part"},
		{"empty input", "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "frame.txt")

			frames, err := Dump(strings.NewReader(tt.input), path)
			if err != nil {
				t.Fatalf("Dump() error = %v", err)
			}
			if frames != tt.wantFrames {
				t.Errorf("frames = %d, want %d", frames, tt.wantFrames)
			}
			if tt.wantFrames == 0 {
				if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
					t.Error("file should not exist when no frame was read")
				}
				return
			}
			got, _ := os.ReadFile(path)
			if string(got) != tt.wantFile {
				t.Errorf("file = %q, want %q", got, tt.wantFile)
			}
		})
	}
}

func TestDumpNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	if _, err := Dump(strings.NewReader("a\fb\fc\f"), filepath.Join(dir, "frame.txt")); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the frame file, found %d entries", len(entries))
	}
}

func TestDumpUnwritable(t *testing.T) {
	if _, err := Dump(strings.NewReader("a\f"), filepath.Join(t.TempDir(), "missing", "frame.txt")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestFrameLoader(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "frame.txt")
	if err := os.WriteFile(text, []byte("..::\n\f"), 0644); err != nil {
		t.Fatal(err)
	}
	image := filepath.Join(dir, "frame.pgm")
	if err := pgm.WriteFile(image, halves(16, 8)); err != nil {
		t.Fatal(err)
	}

	load := frameLoader(2, 1)

	got, err := load(text)
	if err != nil || string(got) != "..::\n" {
		t.Errorf("text frame = %q, %v", got, err)
	}

	got, err = load(image)
	if err != nil || string(got) != " @\n" {
		t.Errorf("pgm frame = %q, %v", got, err)
	}

	if _, err := load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatchRedraws(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.txt")
	if err := os.WriteFile(path, []byte("first\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, frameLoader(2, 1), 10*time.Millisecond, out)
	}()

	// Wait for the initial draw before changing the file
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "first") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := Dump(strings.NewReader("second\n\f"), path); err != nil {
		t.Fatal(err)
	}

	for !strings.Contains(out.String(), "second") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	got := out.String()
	if !strings.HasPrefix(got, clearScreen+cursorHome+"first\n") {
		t.Errorf("initial draw = %q", got)
	}
	if !strings.Contains(got, cursorHome+"second\n") {
		t.Errorf("redraw missing from %q", got)
	}
	if strings.Count(got, clearScreen) != 1 {
		t.Errorf("screen cleared %d times, want 1", strings.Count(got, clearScreen))
	}
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"), frameLoader(2, 1), time.Millisecond, &bytes.Buffer{})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintDevices(t *testing.T) {
	reports := []devices.Report{
		{
			Device: devices.DeviceInfo{
				DevicePath: "/dev/video0",
				DeviceName: "USB Camera",
				DeviceID:   "usb-Camera-video-index0",
				Caps:       v4l2.CapVideoCapture | v4l2.CapStreaming,
			},
			Formats: []devices.FormatReport{
				{
					FormatInfo:  devices.FormatInfo{PixelFormat: v4l2.PixFmtYUYV, FormatName: "YUYV 4:2:2"},
					Resolutions: []devices.Resolution{{Width: 640, Height: 480}},
				},
				{
					FormatInfo: devices.FormatInfo{PixelFormat: v4l2.PixFmtMJPEG, FormatName: "Motion-JPEG", Emulated: true},
					Err:        errors.New("busy"),
				},
			},
		},
		{
			Device: devices.DeviceInfo{DevicePath: "/dev/video1", DeviceName: "Grabber", Caps: v4l2.CapVideoCapture},
			Err:    errors.New("permission denied"),
		},
	}

	var out bytes.Buffer
	PrintDevices(&out, reports)
	got := out.String()

	for _, want := range []string{
		"/dev/video0: USB Camera\n",
		"  id: usb-Camera-video-index0\n",
		"  YUYV YUYV 4:2:2\n",
		"    640x480\n",
		"  MJPG Motion-JPEG [emulated]\n",
		"    sizes unavailable: busy\n",
		"/dev/video1: Grabber (no streaming I/O)\n",
		"  formats unavailable: permission denied\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPrintDevicesEmpty(t *testing.T) {
	var out bytes.Buffer
	PrintDevices(&out, nil)
	if out.String() != "No capture devices found\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintHotplug(t *testing.T) {
	events := make(chan hotplug.Event, 4)
	events <- hotplug.Event{Action: hotplug.ActionAdd, DevName: "video2"}
	events <- hotplug.Event{Action: "change", DevName: "video2"}
	events <- hotplug.Event{Action: hotplug.ActionAdd}
	events <- hotplug.Event{Action: hotplug.ActionRemove, DevName: "video2"}
	close(events)

	var out bytes.Buffer
	PrintHotplug(&out, events)

	want := "+ /dev/video2\n- /dev/video2\n"
	if out.String() != want {
		t.Errorf("PrintHotplug() = %q, want %q", out.String(), want)
	}
}
