// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation and memory-mapped streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Streaming
//
// Open a device and drive the mmap buffer protocol directly:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	defer dev.Close()
//	granted, _ := dev.RequestBuffers(4)
//	info, _ := dev.QueryBuffer(0)
//	mem, _ := dev.MapBuffer(info)
//	_ = dev.QueueBuffer(0)
//	_ = dev.StreamOn()
//	ready, _ := dev.WaitReadable(2 * time.Second)
//	if ready {
//	    buf, _ := dev.DequeueBuffer()
//	    frame := mem[:buf.BytesUsed]
//	    _ = dev.QueueBuffer(buf.Index)
//	}
//
// Higher level ownership rules (which buffer may be read when) live in the
// callers; this package only translates calls into ioctls.
package v4l2
