package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/smazurov/termcam/internal/logging"
	"github.com/smazurov/termcam/internal/render"
	"github.com/spf13/cobra"
)

// CreateDumpCmd creates the dump command.
func CreateDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Keep a file holding the latest frame from stdin",
		Long: `Reads a rendered frame stream from stdin and rewrites <file> with each complete ` +
			`frame as it arrives. Frames are delimited by form feeds, as written by the ASCII ` +
			`renderer. Pair with "watch" to view a capture from another terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			logger := logging.GetLogger("dump")

			frames, err := Dump(cmd.InOrStdin(), args[0])
			logger.Debug("Dump finished", "file", args[0], "frames", frames)
			return err
		},
	}
}

// Dump copies frames from r into path, replacing the file at every form
// feed. A trailing partial frame is written when r ends. It returns the
// number of frames written.
func Dump(r io.Reader, path string) (int, error) {
	br := bufio.NewReader(r)
	frames := 0
	for {
		chunk, err := br.ReadBytes(render.FrameSeparator)
		if len(chunk) > 0 {
			frame := bytes.TrimSuffix(chunk, []byte{render.FrameSeparator})
			if len(frame) > 0 || err == nil {
				if writeErr := replaceFile(path, frame); writeErr != nil {
					return frames, writeErr
				}
				frames++
			}
		}
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
	}
}

// replaceFile swaps data into path with a rename so readers never see a
// half written frame.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
