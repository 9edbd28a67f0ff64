package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"visearch/internal/adapter/camera"
	"visearch/internal/logging"
	"visearch/internal/port"
	"visearch/internal/tui"
)

var (
	captureFrames    string
	captureLimitFlag int
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Live camera preview with on-demand search",
	Long: `Open the camera, preview the crop the model will see, and search when space is
pressed. The camera stops after a successful search; press r to retake.

Examples:
  visearch capture
  visearch capture --frames 'testdata/frames/*.jpg'`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureFrames, "frames", "", "play image files matching this glob instead of a camera")
	captureCmd.Flags().IntVarP(&captureLimitFlag, "limit", "k", 0, "number of results (default from config)")
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx, cancel := commandContext(cmd)
	defer cancel()

	camCfg := cfg.Camera
	if captureFrames != "" {
		camCfg.Backend = "frames"
		camCfg.Frames = captureFrames
	}
	cam, err := camera.Open(camCfg)
	if err != nil {
		return err
	}

	// stderr would draw over the capture screen
	logger = logging.Discard()
	slog.SetDefault(logger)

	pipeline, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Dispose()

	var resolve tui.Resolver
	if resolver := newResolver(); resolver != nil {
		resolve = func(code string) string {
			p, err := resolver.Resolve(context.Background(), code)
			if err != nil {
				return ""
			}
			return p
		}
	}

	results, err := tui.Run(ctx, pipeline, cam, tui.RunOptions{
		Limit:       searchLimit(captureLimitFlag),
		FPS:         camCfg.PreviewFPS,
		Constraints: port.Constraints{Width: camCfg.Width, Height: camCfg.Height},
		Resolve:     resolve,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	for i, r := range results {
		fmt.Printf("%3d. %-20s %3d%%\n", i+1, r.Code, r.Percent())
	}
	return nil
}
