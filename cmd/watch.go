package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/smazurov/termcam/internal/filewatch"
	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/pgm"
	"github.com/smazurov/termcam/internal/render"
	"github.com/smazurov/termcam/internal/session"
	"github.com/spf13/cobra"
)

// Terminal control sequences used by watch.
const (
	clearScreen = "\033[2J"
	cursorHome  = "\033[H"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	var grid string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Redraw a file on the terminal whenever it changes",
		Long: `Clears the screen, draws <file>, then redraws it in place on every change. ` +
			`PGM images are rendered as ASCII art; anything else is shown as text.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := session.ParseGeometry(grid)
			if err != nil {
				return fmt.Errorf("invalid grid: %w", err)
			}
			cmd.SilenceUsage = true

			loader := frameLoader(int(size.Width), int(size.Height))
			return Watch(cmd.Context(), args[0], loader, debounce, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&grid, "grid", "g", DefaultGrid, "Character grid for PGM files, WxH")
	cmd.Flags().DurationVar(&debounce, "debounce", filewatch.DefaultDebounce, "Wait this long after a change before redrawing")
	return cmd
}

// Watch draws path once and again after every change until ctx is done.
func Watch(ctx context.Context, path string, loader func(string) ([]byte, error), debounce time.Duration, out io.Writer) error {
	logger := logging.GetLogger("watch")

	first, err := loader(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, clearScreen); err != nil {
		return err
	}
	if err := draw(out, first); err != nil {
		return err
	}

	w := filewatch.New(path, loader, logger, filewatch.WithDebounce[[]byte](debounce))
	redrawErr := make(chan error, 1)
	w.OnChange(func(frame []byte) {
		if err := draw(out, frame); err != nil {
			select {
			case redrawErr <- err:
			default:
			}
		}
	})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-redrawErr:
		return err
	case <-w.Done():
		return fmt.Errorf("watcher for %s stopped", path)
	}
}

func draw(out io.Writer, frame []byte) error {
	if _, err := io.WriteString(out, cursorHome); err != nil {
		return err
	}
	_, err := out.Write(frame)
	return err
}

// frameLoader reads a watched file. PGM images are rendered onto a
// cols x rows grid; other content is returned without its frame separator.
func frameLoader(cols, rows int) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(data, []byte("P5")) {
			return bytes.TrimSuffix(data, []byte{render.FrameSeparator}), nil
		}

		img, err := pgm.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := RenderImage(&buf, img, cols, rows); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{render.FrameSeparator}), nil
	}
}
