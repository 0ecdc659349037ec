package events

// Event type constants for kelindar/event.
const (
	TypeCaptureStateChanged uint32 = iota + 1
	TypeCaptureError
	TypeCaptureTimeout
	TypeFrameStats
	TypeFormatNegotiated
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureStateChangedEvent is published on every capture loop transition.
// Used for LED control and other reactive subsystems.
type CaptureStateChangedEvent struct {
	DevicePath string `json:"device_path"`
	From       string `json:"from"`
	To         string `json:"to"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureStateChangedEvent.
func (e CaptureStateChangedEvent) Type() uint32 { return TypeCaptureStateChanged }

// IsStreaming reports whether the loop entered the streaming state.
func (e CaptureStateChangedEvent) IsStreaming() bool {
	return e.To == "streaming"
}

// CaptureErrorEvent is published when a capture run ends in failure.
type CaptureErrorEvent struct {
	DevicePath string `json:"device_path"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// CaptureTimeoutEvent is published when a readiness wait expires.
type CaptureTimeoutEvent struct {
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for CaptureTimeoutEvent.
func (e CaptureTimeoutEvent) Type() uint32 { return TypeCaptureTimeout }

// FrameStatsEvent carries running frame counters, published every few frames.
type FrameStatsEvent struct {
	DevicePath   string `json:"device_path"`
	Frames       uint64 `json:"frames"`
	Again        uint64 `json:"again"`
	Dropped      uint64 `json:"dropped"`
	LastSequence uint32 `json:"last_sequence"`
	Timestamp    string `json:"timestamp"`
}

// Type returns the event type identifier for FrameStatsEvent.
func (e FrameStatsEvent) Type() uint32 { return TypeFrameStats }

// FormatNegotiatedEvent records the geometry the device settled on.
type FormatNegotiatedEvent struct {
	DevicePath   string `json:"device_path"`
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	BytesPerLine uint32 `json:"bytes_per_line"`
	SizeImage    uint32 `json:"size_image"`
	Timestamp    string `json:"timestamp"`
}

// Type returns the event type identifier for FormatNegotiatedEvent.
func (e FormatNegotiatedEvent) Type() uint32 { return TypeFormatNegotiated }
