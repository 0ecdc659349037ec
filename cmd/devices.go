package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/smazurov/termcam/internal/devices"
	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/virtualcam"
	"github.com/smazurov/termcam/pkg/linuxav/hotplug"
	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var showVirtual, follow bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices with their formats and sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			reports, err := devices.Describe(devices.NewDetector())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			PrintDevices(out, reports)
			if showVirtual {
				printVirtual(out)
			}
			if !follow {
				return nil
			}
			return followDevices(cmd.Context(), out)
		},
	}

	cmd.Flags().BoolVar(&showVirtual, "virtual", false, "Also list the built-in virtual:// test patterns")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep running and report capture devices as they are plugged or unplugged")
	return cmd
}

func followDevices(ctx context.Context, w io.Writer) error {
	logger := logging.GetLogger("devices")

	monitor, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("hotplug monitor: %w", err)
	}
	defer func() {
		if closeErr := monitor.Close(); closeErr != nil {
			logger.Warn("Failed to close hotplug monitor", "error", closeErr)
		}
	}()

	events := make(chan hotplug.Event, 16)
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx, events) }()

	PrintHotplug(w, events)

	err = <-done
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// PrintHotplug writes one line per add/remove event until events is closed.
func PrintHotplug(w io.Writer, events <-chan hotplug.Event) {
	for e := range events {
		node := e.Node()
		if node == "" {
			continue
		}
		switch e.Action {
		case hotplug.ActionAdd:
			fmt.Fprintf(w, "+ %s\n", node)
		case hotplug.ActionRemove:
			fmt.Fprintf(w, "- %s\n", node)
		}
	}
}

// PrintDevices writes a human readable listing of reports.
func PrintDevices(w io.Writer, reports []devices.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No capture devices found")
		return
	}
	for _, r := range reports {
		streaming := ""
		if !r.Device.Streaming() {
			streaming = " (no streaming I/O)"
		}
		fmt.Fprintf(w, "%s: %s%s\n", r.Device.DevicePath, r.Device.DeviceName, streaming)
		if r.Device.DeviceID != "" {
			fmt.Fprintf(w, "  id: %s\n", r.Device.DeviceID)
		}
		if r.Err != nil {
			fmt.Fprintf(w, "  formats unavailable: %v\n", r.Err)
			continue
		}
		for _, f := range r.Formats {
			emulated := ""
			if f.Emulated {
				emulated = " [emulated]"
			}
			fmt.Fprintf(w, "  %s %s%s\n", f.FourCC(), f.FormatName, emulated)
			if f.Err != nil {
				fmt.Fprintf(w, "    sizes unavailable: %v\n", f.Err)
				continue
			}
			for _, res := range f.Resolutions {
				fmt.Fprintf(w, "    %dx%d\n", res.Width, res.Height)
			}
		}
	}
}

func printVirtual(w io.Writer) {
	for _, p := range virtualcam.Patterns() {
		fmt.Fprintf(w, "%s%s: virtual test pattern\n", virtualcam.Scheme, p)
	}
}
