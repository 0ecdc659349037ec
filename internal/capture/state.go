package capture

import "time"

// State represents where the loop is in its lifecycle.
type State string

// Loop states.
const (
	StateIdle      State = "idle"      // Buffers allocated, not streaming
	StateStreaming State = "streaming" // Device filling buffers
	StateStopping  State = "stopping"  // Stream off in progress
	StateStopped   State = "stopped"   // Terminal
)

// Stats counts what the loop has seen since Start.
type Stats struct {
	Frames       uint64
	Again        uint64
	Timeouts     uint64
	Interrupts   uint64
	Dropped      uint64
	LastSequence uint32
	StartedAt    time.Time
}
