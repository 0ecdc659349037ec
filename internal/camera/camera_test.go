package camera

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/smazurov/termcam/internal/bufpool"
	"github.com/smazurov/termcam/internal/capture"
	"github.com/smazurov/termcam/internal/render"
	"github.com/smazurov/termcam/internal/session"
	"github.com/smazurov/termcam/internal/virtualcam"
)

// Mock device recording teardown calls
type tracingDevice struct {
	*virtualcam.Camera
	mu    sync.Mutex
	calls []string
}

func (d *tracingDevice) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
}

func (d *tracingDevice) StreamOff() error {
	d.record("streamoff")
	return d.Camera.StreamOff()
}

func (d *tracingDevice) RequestBuffers(count uint32) (uint32, error) {
	if count == 0 {
		d.record("reqbufs0")
	}
	return d.Camera.RequestBuffers(count)
}

func (d *tracingDevice) Close() error {
	d.record("close")
	return d.Camera.Close()
}

func opener(dev *tracingDevice) Opener {
	return func(path string) (*session.Session, Device, error) {
		return session.New(path, dev), dev, nil
	}
}

func newDevice(faults virtualcam.Faults) *tracingDevice {
	return &tracingDevice{Camera: virtualcam.New(
		virtualcam.WithSize(160, 120),
		virtualcam.WithFrameInterval(0),
		virtualcam.WithFaults(faults),
	)}
}

// Mock observer cancelling after a number of frames
type cancelAfter struct {
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) StateChanged(capture.State, capture.State) {}
func (c *cancelAfter) Again() {}
func (c *cancelAfter) Timeout() {}

func (c *cancelAfter) FrameHandled(capture.FrameReport) {
	c.n--
	if c.n == 0 {
		c.cancel()
	}
}

func TestRunRendersUntilCancelled(t *testing.T) {
	dev := newDevice(virtualcam.Faults{})
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cam := New(Config{Device: "virtual://bars", Buffers: 4, Timeout: time.Second},
		render.NewASCII(&out, 8, 4),
		WithOpener(opener(dev)),
		WithObserver(&cancelAfter{n: 5, cancel: cancel}),
	)
	if err := cam.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if frames := strings.Count(out.String(), "\f"); frames != 5 {
		t.Errorf("Expected 5 rendered frames, got %d", frames)
	}
	if cam.Stats().Frames != 5 {
		t.Errorf("Expected 5 frames in stats, got %d", cam.Stats().Frames)
	}
	want := []string{"streamoff", "reqbufs0", "close"}
	if strings.Join(dev.calls, ",") != strings.Join(want, ",") {
		t.Errorf("Teardown order %v, want %v", dev.calls, want)
	}
	if dev.Mapped() != 0 {
		t.Errorf("Expected no mappings after run, got %d", dev.Mapped())
	}
}

func TestRunAdoptsDeviceGeometry(t *testing.T) {
	dev := newDevice(virtualcam.Faults{
		AdjustSize: func(uint32, uint32) (uint32, uint32) { return 352, 288 },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var announced session.Format
	cam := New(Config{
		Device:  "/dev/video0",
		Size:    &session.Geometry{Width: 640, Height: 480},
		Buffers: 2,
		Timeout: time.Second,
	}, render.NewASCII(&bytes.Buffer{}, 4, 2),
		WithOpener(opener(dev)),
		WithObserver(&cancelAfter{n: 1, cancel: cancel}),
		WithNegotiated(func(f session.Format) { announced = f }),
	)
	if err := cam.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if f := cam.Format(); f.Width != 352 || f.Height != 288 {
		t.Errorf("Expected 352x288, got %dx%d", f.Width, f.Height)
	}
	if announced != cam.Format() {
		t.Errorf("Negotiated hook got %+v, want %+v", announced, cam.Format())
	}
}

func TestRunFailuresStillTearDown(t *testing.T) {
	tests := []struct {
		name   string
		faults virtualcam.Faults
		check  func(error) bool
		want   []string
	}{
		{
			name:   "not capture capable",
			faults: virtualcam.Faults{QueryCapErr: syscall.EINVAL},
			check:  func(err error) bool { return session.HasCode(err, session.ErrCodeQueryFailed) },
			want:   []string{"close"},
		},
		{
			name:   "insufficient buffers",
			faults: virtualcam.Faults{GrantLimit: 1},
			check:  func(err error) bool { return bufpool.HasCode(err, bufpool.ErrCodeInsufficientBuffers) },
			want:   []string{"reqbufs0", "close"},
		},
		{
			name:   "stream on rejected",
			faults: virtualcam.Faults{StreamOnErr: syscall.EIO},
			check:  func(err error) bool { return capture.HasCode(err, capture.ErrCodeStartFailed) },
			want:   []string{"reqbufs0", "close"},
		},
		{
			name:   "select timeout",
			faults: virtualcam.Faults{NeverReady: true},
			check:  func(err error) bool { return capture.HasCode(err, capture.ErrCodeTimeout) },
			want:   []string{"streamoff", "reqbufs0", "close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newDevice(tt.faults)
			cam := New(Config{Device: "/dev/video0", Buffers: 4, Timeout: 50 * time.Millisecond, PollSlice: 10 * time.Millisecond},
				render.NewASCII(&bytes.Buffer{}, 4, 2),
				WithOpener(opener(dev)),
			)

			err := cam.Run(context.Background())
			if !tt.check(err) {
				t.Fatalf("Unexpected error %v", err)
			}
			if strings.Join(dev.calls, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Teardown calls %v, want %v", dev.calls, tt.want)
			}
			if dev.Mapped() != 0 {
				t.Errorf("Mappings left behind: %d", dev.Mapped())
			}
		})
	}
}

func TestRunOpenError(t *testing.T) {
	boom := errors.New("no such camera")
	cam := New(Config{Device: "/dev/video7"}, render.NewASCII(&bytes.Buffer{}, 4, 2),
		WithOpener(func(string) (*session.Session, Device, error) { return nil, nil, boom }))
	if err := cam.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected open error, got %v", err)
	}
}

func TestOpenDeviceVirtual(t *testing.T) {
	sess, dev, err := OpenDevice("virtual://checker")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	if _, ok := dev.(*virtualcam.Camera); !ok {
		t.Errorf("Expected virtual camera, got %T", dev)
	}
	if _, _, err := OpenDevice("virtual://nonsense"); err == nil {
		t.Error("Expected error for unknown pattern")
	}
}
