// Package api registers the JSON endpoints served next to /metrics.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/smazurov/termcam/internal/devices"
	"github.com/smazurov/termcam/internal/events"
	"github.com/smazurov/termcam/internal/led"
	"github.com/smazurov/termcam/internal/metrics"
	"github.com/smazurov/termcam/internal/version"
)

// Options selects which routes are registered. Nil fields skip their
// routes.
type Options struct {
	Health   func() error
	Detector devices.DeviceDetector
	LED      led.Controller
	Events   *events.Bus
}

type server struct {
	api     huma.API
	options Options
}

// Register mounts the API on r and returns it. The OpenAPI document is
// served at /openapi.json and browsable docs at /docs.
func Register(r chi.Router, opts Options) huma.API {
	config := huma.DefaultConfig("termcam API", version.Version)
	config.Info.Description = "Capture status for a termcam instance"
	config.Servers = []*huma.Server{}

	s := &server{api: humachi.New(r, config), options: opts}
	s.api.UseMiddleware(loggingMiddleware)
	s.registerRoutes()
	return s.api
}

func (s *server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Reports 503 while the capture loop is not streaming",
		Tags:        []string{"capture"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		if s.options.Health != nil {
			if err := s.options.Health(); err != nil {
				return nil, huma.Error503ServiceUnavailable(err.Error())
			}
		}
		return &HealthResponse{Body: HealthData{Status: "ok", Message: "streaming"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*VersionResponse, error) {
		info := version.Get()
		return &VersionResponse{Body: VersionData{
			Version:   info.Version,
			GitCommit: info.GitCommit,
			BuildDate: info.BuildDate,
			GoVersion: info.GoVersion,
			Platform:  info.Platform,
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-capture",
		Method:      http.MethodGet,
		Path:        "/api/capture",
		Summary:     "Capture counters",
		Description: "Frames, timeouts, drops and frame rate per device",
		Tags:        []string{"capture"},
	}, func(_ context.Context, _ *struct{}) (*CaptureResponse, error) {
		resp := &CaptureResponse{}
		resp.Body.Devices = metrics.GetAllCaptureMetrics()
		return resp, nil
	})

	if s.options.Detector != nil {
		s.registerDeviceRoutes()
	}
	if s.options.LED != nil {
		s.registerLEDRoutes()
	}
	if s.options.Events != nil {
		s.registerEventRoutes()
	}
}

func (s *server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List capture devices",
		Tags:        []string{"devices"},
		Errors:      []int{500},
	}, func(_ context.Context, _ *struct{}) (*DevicesResponse, error) {
		reports, err := devices.Describe(s.options.Detector)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list devices", err)
		}
		resp := &DevicesResponse{}
		resp.Body.Devices = toDevices(reports)
		resp.Body.Count = len(resp.Body.Devices)
		return resp, nil
	})
}

func toDevices(reports []devices.Report) []Device {
	out := make([]Device, 0, len(reports))
	for _, r := range reports {
		d := Device{
			Path:      r.Device.DevicePath,
			Name:      r.Device.DeviceName,
			ID:        r.Device.DeviceID,
			Streaming: r.Device.Streaming(),
		}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		for _, f := range r.Formats {
			df := DeviceFormat{FourCC: f.FourCC(), Name: f.FormatName, Emulated: f.Emulated}
			for _, res := range f.Resolutions {
				df.Resolutions = append(df.Resolutions, fmt.Sprintf("%dx%d", res.Width, res.Height))
			}
			d.Formats = append(d.Formats, df)
		}
		out = append(out, d)
	}
	return out
}

func (s *server) registerLEDRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Overrides an LED until the next capture state change",
		Tags:        []string{"leds"},
		Errors:      []int{400},
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		pattern := ""
		if input.Body.Pattern != nil {
			pattern = *input.Body.Pattern
		}
		if err := s.options.LED.Set(input.Body.Type, input.Body.Enabled, pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "LED capabilities",
		Tags:        []string{"leds"},
	}, func(_ context.Context, _ *struct{}) (*LEDCapabilitiesResponse, error) {
		resp := &LEDCapabilitiesResponse{}
		resp.Body.AvailableTypes = s.options.LED.Available()
		resp.Body.AvailablePatterns = s.options.LED.Patterns()
		return resp, nil
	})
}
