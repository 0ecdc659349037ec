package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/termcam/cmd"
	"github.com/smazurov/termcam/internal/api"
	"github.com/smazurov/termcam/internal/camera"
	"github.com/smazurov/termcam/internal/capture"
	"github.com/smazurov/termcam/internal/config"
	"github.com/smazurov/termcam/internal/devices"
	"github.com/smazurov/termcam/internal/events"
	"github.com/smazurov/termcam/internal/led"
	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/metrics"
	"github.com/smazurov/termcam/internal/metrics/collectors"
	"github.com/smazurov/termcam/internal/metrics/exporters"
	"github.com/smazurov/termcam/internal/render"
	"github.com/smazurov/termcam/internal/session"
	"github.com/smazurov/termcam/internal/systemd"
	"github.com/smazurov/termcam/internal/version"
	"github.com/smazurov/termcam/internal/virtualcam"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"termcam.toml"`

	// Capture settings
	Buffers   int           `help:"Number of mmap buffers to request (at least 2)" short:"b" default:"4" toml:"capture.buffers" env:"CAPTURE_BUFFERS"`
	Timeout   time.Duration `help:"Fail when no frame arrives for this long" short:"t" default:"2s" toml:"capture.timeout" env:"CAPTURE_TIMEOUT"`
	PollSlice time.Duration `help:"Longest single readiness wait" default:"200ms" toml:"capture.poll_slice" env:"CAPTURE_POLL_SLICE"`

	// Render settings
	Renderer string `help:"Renderer (ascii, pgm)" short:"r" default:"ascii" toml:"render.renderer" env:"RENDER_RENDERER"`
	Grid     string `help:"Renderer surface, WxH (characters for ascii, pixels for pgm)" short:"g" default:"80x40" toml:"render.grid" env:"RENDER_GRID"`
	Output   string `help:"Output file, - for stdout" short:"o" default:"-" toml:"render.output" env:"RENDER_OUTPUT"`

	// Features settings
	MetricsAddr     string        `help:"Serve Prometheus metrics and the JSON API on this address, empty disables" toml:"metrics.addr" env:"METRICS_ADDR"`
	MetricsInterval time.Duration `help:"Frame rate sampling interval" default:"5s" toml:"metrics.interval" env:"METRICS_INTERVAL"`
	StatusLed       string        `help:"Drive a status LED: auto, a /sys/class/leds name or gpio:<chip>:<offset>; empty disables" toml:"features.status_led" env:"FEATURES_STATUS_LED"`

	// Logging settings
	LogLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LogFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LogCapture string `help:"Capture loop logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LogSession string `help:"Device session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LogCamera  string `help:"Pipeline logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LogMetrics string `help:"Metrics logging level" default:"info" toml:"logging.metrics" env:"LOGGING_METRICS"`
}

func (o *Options) loggingConfig() logging.Config {
	return logging.Config{
		Level:  o.LogLevel,
		Format: o.LogFormat,
		Modules: map[string]string{
			"capture": o.LogCapture,
			"session": o.LogSession,
			"camera":  o.LogCamera,
			"metrics": o.LogMetrics,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		logging.GetLogger("main").Error("termcam failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "termcam [flags] <device> [WxH]",
		Short: "Render a V4L2 capture device on the terminal",
		Long: `Captures frames from a memory-mapped V4L2 device and renders their luma as ASCII ` +
			`art or PGM images until interrupted. <device> is a node such as /dev/video0, a ` +
			`stable id from "termcam devices", or virtual://<pattern> for a built-in test source. ` +
			`WxH asks the driver for a capture size; the size it grants is used.`,
		Version:       version.Get().String(),
		Args:          validateArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, c); err != nil {
				return err
			}
			logging.Initialize(opts.loggingConfig())
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			var size *session.Geometry
			if len(args) == 2 {
				g, err := session.ParseGeometry(args[1])
				if err != nil {
					return err
				}
				size = &g
			}
			c.SilenceUsage = true
			return run(c.Context(), opts, args[0], size, stdout)
		},
	}

	if err := config.BindFlags(opts, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(cmd.CreateDevicesCmd())
	root.AddCommand(cmd.CreateViewCmd())
	root.AddCommand(cmd.CreateDumpCmd())
	root.AddCommand(cmd.CreateWatchCmd())

	return root
}

// validateArgs rejects a malformed size before anything touches the device.
func validateArgs(c *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(1, 2)(c, args); err != nil {
		return err
	}
	if len(args) == 2 {
		if _, err := session.ParseGeometry(args[1]); err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}
	}
	return nil
}

func run(ctx context.Context, opts *Options, device string, size *session.Geometry, stdout io.Writer) (err error) {
	logger := logging.GetLogger("main")

	path, err := resolveDevice(device)
	if err != nil {
		return err
	}

	grid, err := session.ParseGeometry(opts.Grid)
	if err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}

	out := stdout
	outPath := ""
	if opts.Output != "" && opts.Output != "-" {
		outPath = opts.Output
		if opts.Renderer != render.KindPGM {
			f, createErr := os.Create(opts.Output)
			if createErr != nil {
				return createErr
			}
			defer func() {
				err = errors.Join(err, f.Close())
			}()
			out = f
		}
	}

	renderer, err := render.New(render.Options{
		Kind:    opts.Renderer,
		Columns: int(grid.Width),
		Rows:    int(grid.Height),
		Output:  out,
		Path:    outPath,
	})
	if err != nil {
		return err
	}

	// Create event bus for in-process event handling
	eventBus := events.New()
	observers := []capture.Observer{
		events.NewCaptureObserver(eventBus, path, 0),
		systemd.NewNotifier(path, logging.GetLogger("systemd")),
	}

	unsubStats := eventBus.Subscribe(func(e events.FrameStatsEvent) {
		logger.Debug("Capture progress", "frames", e.Frames, "dropped", e.Dropped, "again", e.Again)
	})
	defer unsubStats()

	unsubFormat := eventBus.Subscribe(func(e events.FormatNegotiatedEvent) {
		logger.Info("Format negotiated", "device", e.DevicePath,
			"size", fmt.Sprintf("%dx%d", e.Width, e.Height),
			"bytesperline", e.BytesPerLine, "sizeimage", e.SizeImage)
	})
	defer unsubFormat()

	var (
		ledCtrl    led.Controller
		ledManager *led.Manager
	)
	if opts.StatusLed != "" {
		name := opts.StatusLed
		if name == "auto" {
			name = ""
		}
		ledCtrl = led.New(name, logger)
		ledManager = led.NewManager(ledCtrl, eventBus, logger)
		ledManager.Start()
		defer ledManager.Stop()
	}

	if opts.MetricsAddr != "" {
		stopMetrics, metricsErr := startMetrics(ctx, opts, path, ledCtrl, eventBus, logger)
		if metricsErr != nil {
			return metricsErr
		}
		defer stopMetrics()
		observers = append(observers, metrics.NewCaptureObserver(path))
	}

	cam := camera.New(camera.Config{
		Device:    path,
		Size:      size,
		Buffers:   opts.Buffers,
		Timeout:   opts.Timeout,
		PollSlice: opts.PollSlice,
	}, renderer,
		camera.WithObserver(capture.MultiObserver(observers...)),
		camera.WithNegotiated(func(f session.Format) {
			eventBus.Publish(events.FormatNegotiatedEvent{
				DevicePath:   path,
				Width:        f.Width,
				Height:       f.Height,
				BytesPerLine: f.BytesPerLine,
				SizeImage:    f.SizeImage,
				Timestamp:    time.Now().Format(time.RFC3339),
			})
		}),
	)

	logger.Info("Starting capture", "version", version.Version, "device", path, "renderer", opts.Renderer, "grid", grid.String())
	runErr := cam.Run(ctx)

	stats := cam.Stats()
	logger.Info("Capture finished",
		"frames", stats.Frames,
		"dropped", stats.Dropped,
		"timeouts", stats.Timeouts,
		"skipped", cam.Skipped())

	if runErr != nil {
		if ledManager != nil {
			ledManager.Fail(runErr)
		}
		eventBus.PublishError(path, "capture failed", runErr)
	}
	return runErr
}

// resolveDevice maps stable ids and bare node names to a path. Virtual
// paths pass through.
func resolveDevice(device string) (string, error) {
	if virtualcam.IsVirtual(device) {
		return device, nil
	}
	return devices.ResolveDevicePath(device)
}

func startMetrics(ctx context.Context, opts *Options, device string, ledCtrl led.Controller, bus *events.Bus, logger *slog.Logger) (func(), error) {
	health := func() error {
		m := metrics.GetCaptureMetrics(device)
		if m == nil || m.State != string(capture.StateStreaming) {
			return errors.New("capture is not streaming")
		}
		return nil
	}

	router := exporters.NewRouter(health)
	api.Register(router, api.Options{
		Health:   health,
		Detector: devices.NewDetector(),
		LED:      ledCtrl,
		Events:   bus,
	})
	server := exporters.NewServer(opts.MetricsAddr, router)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}

	frames := func() uint64 {
		if m := metrics.GetCaptureMetrics(device); m != nil {
			return m.Frames
		}
		return 0
	}
	rate := collectors.NewRateCollector(device, frames, opts.MetricsInterval)
	if err := rate.Start(ctx); err != nil {
		logger.Warn("Failed to start frame rate collector", "error", err)
	}

	return func() {
		_ = rate.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping metrics server", "error", err)
		}
	}, nil
}
