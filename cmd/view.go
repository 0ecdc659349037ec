package cmd

import (
	"fmt"
	"io"

	"github.com/smazurov/termcam/internal/pgm"
	"github.com/smazurov/termcam/internal/render"
	"github.com/smazurov/termcam/internal/resample"
	"github.com/smazurov/termcam/internal/session"
	"github.com/spf13/cobra"
)

// DefaultGrid is the character grid used when none is given.
const DefaultGrid = "80x40"

// CreateViewCmd creates the view command.
func CreateViewCmd() *cobra.Command {
	var grid string

	cmd := &cobra.Command{
		Use:   "view <file.pgm>",
		Short: "Render a PGM image as ASCII art",
		Long: `Reads a binary PGM (P5) image and draws it on the terminal through the same ` +
			`nearest-neighbour resampler the capture pipeline uses. "-" reads stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := session.ParseGeometry(grid)
			if err != nil {
				return fmt.Errorf("invalid grid: %w", err)
			}
			cmd.SilenceUsage = true

			var img *pgm.Image
			if args[0] == "-" {
				img, err = pgm.Decode(cmd.InOrStdin())
			} else {
				img, err = pgm.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return RenderImage(cmd.OutOrStdout(), img, int(size.Width), int(size.Height))
		},
	}

	cmd.Flags().StringVarP(&grid, "grid", "g", DefaultGrid, "Character grid, WxH")
	return cmd
}

// RenderImage draws img on a cols x rows ASCII grid.
func RenderImage(w io.Writer, img *pgm.Image, cols, rows int) error {
	r := render.NewASCII(w, cols, rows)
	width, height, err := r.Init()
	if err != nil {
		return err
	}

	scaler, err := resample.New(img.Width, img.Height, width, height, resample.WithStride(resample.StrideGray))
	if err != nil {
		return err
	}
	if err := scaler.ResampleInto(img.Pix, r); err != nil {
		return err
	}
	if err := r.Render(); err != nil {
		return err
	}
	return r.Close()
}
