package cli

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"visearch/internal/adapter/normalize"
	"visearch/internal/adapter/pixels"
)

var cropOutput string

var cropCmd = &cobra.Command{
	Use:   "crop <image>",
	Short: "Write the normalized crop the model sees",
	Long: `Write the 224x224 center crop used for searching as a PNG, to check framing.

Examples:
  visearch crop shelf.jpg
  visearch crop shelf.jpg -o /tmp/crop.png`,
	Args: cobra.ExactArgs(1),
	RunE: runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)
	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "output file (default <image>.crop.png)")
}

func runCrop(cmd *cobra.Command, args []string) error {
	frame, err := pixels.DecodeFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	rect, err := normalize.CropRect(frame.Width(), frame.Height())
	if err != nil {
		return err
	}
	crop, err := normalize.Normalize(frame)
	if err != nil {
		return err
	}

	out := cropOutput
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".crop.png"
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, crop); err != nil {
		return fmt.Errorf("failed to encode crop: %w", err)
	}

	maxX, maxY := rect.Max()
	fmt.Printf("Source:  %dx%d\n", frame.Width(), frame.Height())
	fmt.Printf("Crop:    x=[%g,%g] y=[%g,%g] (side %g)\n", rect.X, maxX, rect.Y, maxY, rect.Size)
	fmt.Printf("Written: %s (%dx%d)\n", out, normalize.OutputSize, normalize.OutputSize)
	return nil
}
