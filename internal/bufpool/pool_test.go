package bufpool

import (
	"errors"
	"syscall"
	"testing"

	"github.com/smazurov/termcam/internal/virtualcam"
)

func newCamera(faults virtualcam.Faults) *virtualcam.Camera {
	return virtualcam.New(
		virtualcam.WithSize(64, 48),
		virtualcam.WithFrameInterval(0),
		virtualcam.WithFaults(faults),
	)
}

func TestAllocateUnqueued(t *testing.T) {
	for _, n := range []int{2, 3, 4, 8} {
		cam := newCamera(virtualcam.Faults{})
		p, err := Allocate(cam, n)
		if err != nil {
			t.Fatalf("Allocate(%d) failed: %v", n, err)
		}
		if p.Len() != n {
			t.Errorf("Allocate(%d): got %d buffers", n, p.Len())
		}
		if got := p.Count(StateUnqueued); got != n {
			t.Errorf("Allocate(%d): %d unqueued, want %d", n, got, n)
		}
		if cam.Mapped() != n {
			t.Errorf("Allocate(%d): %d mapped, want %d", n, cam.Mapped(), n)
		}
	}
}

func TestAllocateErrors(t *testing.T) {
	tests := []struct {
		name   string
		count  int
		faults virtualcam.Faults
		code   ErrorCode
	}{
		{name: "count below minimum", count: 1, faults: virtualcam.Faults{}, code: ErrCodeInvalidCount},
		{name: "mmap unsupported", count: 4, faults: virtualcam.Faults{RequestErr: syscall.EINVAL}, code: ErrCodeUnsupported},
		{name: "request io error", count: 4, faults: virtualcam.Faults{RequestErr: syscall.EIO}, code: ErrCodeRequestFailed},
		{name: "granted one", count: 4, faults: virtualcam.Faults{GrantLimit: 1}, code: ErrCodeInsufficientBuffers},
		{name: "querybuf fails", count: 4, faults: virtualcam.Faults{QueryBufErr: syscall.EIO}, code: ErrCodeQueryFailed},
		{name: "third mmap fails", count: 4, faults: virtualcam.Faults{MapErr: syscall.ENOMEM, MapErrIndex: 2}, code: ErrCodeMapFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := newCamera(tt.faults)
			p, err := Allocate(cam, tt.count)
			if p != nil {
				t.Error("Expected nil pool on error")
			}
			if !HasCode(err, tt.code) {
				t.Fatalf("Expected %s, got %v", tt.code, err)
			}
			if cam.Mapped() != 0 {
				t.Errorf("Expected no mappings left behind, got %d", cam.Mapped())
			}
		})
	}
}

func TestInsufficientBuffersCreatesNoMappings(t *testing.T) {
	cam := newCamera(virtualcam.Faults{GrantLimit: 1})

	_, err := Allocate(cam, 4)
	if !HasCode(err, ErrCodeInsufficientBuffers) {
		t.Fatalf("Expected INSUFFICIENT_BUFFERS, got %v", err)
	}
	stats := cam.Stats()
	if stats.Maps != 0 {
		t.Errorf("Expected zero mmap calls, got %d", stats.Maps)
	}
	if stats.Requests != 2 {
		t.Errorf("Expected the granted buffers to be handed back, got %d requests", stats.Requests)
	}
}

func TestOwnershipTransitions(t *testing.T) {
	cam := newCamera(virtualcam.Faults{})
	p, err := Allocate(cam, 3)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Dequeue(); err == nil {
		t.Fatal("Expected dequeue to fail before streaming")
	}

	if err := p.EnqueueAll(); err != nil {
		t.Fatal(err)
	}
	if p.Count(StateDeviceOwned) != 3 {
		t.Fatalf("Expected 3 device owned, got %d", p.Count(StateDeviceOwned))
	}
	if err := p.Enqueue(1); !HasCode(err, ErrCodeOwnership) {
		t.Errorf("Expected OWNERSHIP_VIOLATION on double enqueue, got %v", err)
	}
	if err := p.Enqueue(9); !HasCode(err, ErrCodeOwnership) {
		t.Errorf("Expected OWNERSHIP_VIOLATION for bad index, got %v", err)
	}

	if err := cam.StreamOn(); err != nil {
		t.Fatal(err)
	}
	p.MarkStreaming()

	f, err := p.Dequeue()
	if err != nil {
		t.Fatal(err)
	}
	if p.State(f.Index) != StateAppOwned {
		t.Errorf("Expected app owned after dequeue, got %s", p.State(f.Index))
	}
	if len(f.Data) != int(f.BytesUsed) || f.BytesUsed != 64*2*48 {
		t.Errorf("Unexpected frame size: data=%d used=%d", len(f.Data), f.BytesUsed)
	}

	if err := p.Release(); !HasCode(err, ErrCodeInvalidState) {
		t.Errorf("Expected INVALID_STATE releasing while streaming, got %v", err)
	}

	if err := p.Enqueue(f.Index); err != nil {
		t.Fatal(err)
	}
	if p.State(f.Index) != StateDeviceOwned {
		t.Errorf("Expected device owned after enqueue, got %s", p.State(f.Index))
	}

	if err := cam.StreamOff(); err != nil {
		t.Fatal(err)
	}
	p.MarkStopped()
	if p.Count(StateUnqueued) != 3 {
		t.Errorf("Expected all unqueued after stop, got %d", p.Count(StateUnqueued))
	}

	if err := p.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
	if cam.Mapped() != 0 {
		t.Errorf("Expected all buffers unmapped, got %d", cam.Mapped())
	}
	if err := p.Enqueue(0); !HasCode(err, ErrCodeInvalidState) {
		t.Errorf("Expected INVALID_STATE after release, got %v", err)
	}
}

func TestNoDoubleDequeue(t *testing.T) {
	cam := newCamera(virtualcam.Faults{})
	p, err := Allocate(cam, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.EnqueueAll(); err != nil {
		t.Fatal(err)
	}
	if err := cam.StreamOn(); err != nil {
		t.Fatal(err)
	}
	p.MarkStreaming()

	seen := map[uint32]bool{}
	for range 2 {
		f, err := p.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if seen[f.Index] {
			t.Fatalf("Buffer %d dequeued twice without requeue", f.Index)
		}
		seen[f.Index] = true
	}

	if _, err := p.Dequeue(); !HasCode(err, ErrCodeAgain) {
		t.Errorf("Expected AGAIN with every buffer app owned, got %v", err)
	}
}

func TestDequeueUnqueuedBuffer(t *testing.T) {
	cam := newCamera(virtualcam.Faults{})
	p, err := Allocate(cam, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := cam.QueueBuffer(0); err != nil {
		t.Fatal(err)
	}
	if err := cam.StreamOn(); err != nil {
		t.Fatal(err)
	}

	_, err = p.Dequeue()
	if !HasCode(err, ErrCodeOwnership) {
		t.Fatalf("Expected OWNERSHIP_VIOLATION, got %v", err)
	}
	if p.State(0) != StateUnqueued {
		t.Errorf("State changed on rejected dequeue: %s", p.State(0))
	}
}

func TestDequeueErrors(t *testing.T) {
	cam := newCamera(virtualcam.Faults{AgainCount: 1})
	p, err := Allocate(cam, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Dequeue(); !HasCode(err, ErrCodeDequeueFailed) || !errors.Is(err, syscall.EINVAL) {
		t.Errorf("Expected DEQUEUE_FAILED wrapping EINVAL when not streaming, got %v", err)
	}

	if err := p.EnqueueAll(); err != nil {
		t.Fatal(err)
	}
	if err := cam.StreamOn(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Dequeue(); !HasCode(err, ErrCodeAgain) {
		t.Errorf("Expected AGAIN, got %v", err)
	}
	if _, err := p.Dequeue(); err != nil {
		t.Errorf("Expected a frame after EAGAIN, got %v", err)
	}
}

func TestReleaseRefusedWhileStreamingWithAppOwnedBuffers(t *testing.T) {
	cam := newCamera(virtualcam.Faults{})
	p, err := Allocate(cam, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.EnqueueAll(); err != nil {
		t.Fatal(err)
	}
	if err := cam.StreamOn(); err != nil {
		t.Fatal(err)
	}
	p.MarkStreaming()

	for range 2 {
		if _, err := p.Dequeue(); err != nil {
			t.Fatal(err)
		}
	}
	if p.Count(StateDeviceOwned) != 0 {
		t.Fatalf("Expected no device owned buffers, got %d", p.Count(StateDeviceOwned))
	}

	if err := p.Release(); !HasCode(err, ErrCodeInvalidState) {
		t.Errorf("Expected INVALID_STATE releasing under STREAMON, got %v", err)
	}
	if cam.Mapped() != 2 {
		t.Errorf("Expected mappings kept after refused release, got %d", cam.Mapped())
	}

	if err := cam.StreamOff(); err != nil {
		t.Fatal(err)
	}
	p.MarkStopped()
	if err := p.Release(); err != nil {
		t.Fatalf("Release after stop failed: %v", err)
	}
	if cam.Mapped() != 0 {
		t.Errorf("Expected all buffers unmapped, got %d", cam.Mapped())
	}
}
