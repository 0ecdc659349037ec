package api

import (
	"github.com/smazurov/termcam/internal/metrics"
)

// HealthData reports whether the capture loop is streaming.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Capture status"`
	Message string `json:"message,omitempty" example:"streaming" doc:"Status message"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Body HealthData
}

// VersionData describes the running binary.
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit,omitempty" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date,omitempty" example:"2026-01-02T03:04:05Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Platform"`
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	Body VersionData
}

// CaptureResponse carries the capture counters of every device.
type CaptureResponse struct {
	Body struct {
		Devices map[string]*metrics.CaptureMetrics `json:"devices" doc:"Capture counters keyed by device path"`
	}
}

// DeviceFormat is one pixel format a device offers.
type DeviceFormat struct {
	FourCC      string   `json:"fourcc" example:"YUYV" doc:"Pixel format code"`
	Name        string   `json:"name" example:"YUYV 4:2:2" doc:"Driver description"`
	Emulated    bool     `json:"emulated,omitempty" doc:"Converted in software by the driver"`
	Resolutions []string `json:"resolutions,omitempty" example:"[\"640x480\"]" doc:"Discrete frame sizes"`
}

// Device is one capture node.
type Device struct {
	Path      string         `json:"path" example:"/dev/video0" doc:"Device node"`
	Name      string         `json:"name" example:"USB Camera" doc:"Card name"`
	ID        string         `json:"id,omitempty" example:"usb-046d_0825-video-index0" doc:"Stable identifier"`
	Streaming bool           `json:"streaming" doc:"Supports streaming I/O"`
	Formats   []DeviceFormat `json:"formats,omitempty" doc:"Supported formats"`
	Error     string         `json:"error,omitempty" doc:"Why formats could not be listed"`
}

// DevicesResponse is the body of GET /api/devices.
type DevicesResponse struct {
	Body struct {
		Devices []Device `json:"devices" doc:"Capture devices"`
		Count   int      `json:"count" example:"1" doc:"Number of devices"`
	}
}

// LEDRequest sets an LED state.
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"status" doc:"LED type"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be on or off"`
		Pattern *string `json:"pattern,omitempty" example:"solid" doc:"Optional pattern (solid, blink, heartbeat)"`
	}
}

// LEDCapabilitiesResponse lists LED types and patterns.
type LEDCapabilitiesResponse struct {
	Body struct {
		AvailableTypes    []string `json:"available_types" doc:"LED types on this board"`
		AvailablePatterns []string `json:"available_patterns" doc:"Patterns the controller supports"`
	}
}
