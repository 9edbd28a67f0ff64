package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"visearch/config"
	"visearch/internal/adapter/cache"
	"visearch/internal/adapter/embedding"
	"visearch/internal/adapter/refsource"
	"visearch/internal/adapter/refstore"
	"visearch/internal/domain"
	"visearch/internal/logging"
	"visearch/internal/usecase"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	timeout  time.Duration
	logLevel string
	logger   = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "visearch",
	Short: "Visual product search - find catalog products from a photo",
	Long: `visearch matches a photo or camera frame against a catalog of precomputed
image embeddings and lists the closest products by visual similarity.

Example usage:
  visearch search shelf.jpg           # Rank the catalog against a photo
  visearch capture                    # Live camera preview, press space to search
  visearch refs                       # Describe the reference dataset
  visearch assets verify              # Check every product has a display image`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logger, err = logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./visearch.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abort the command after this long (0 = no limit)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// commandContext applies --timeout to the command context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// openPipeline wires the configured model, reference source, and match cache.
func openPipeline(ctx context.Context, cfg *config.Config) (*usecase.Pipeline, error) {
	src, key, err := refsource.Open(ctx, cfg.References)
	if err != nil {
		return nil, &domain.DataLoadError{Source: cfg.References.Source, Err: err}
	}

	storeOpts := []refstore.Option{refstore.WithLogger(logger)}
	if cfg.Model.Dimension > 0 {
		storeOpts = append(storeOpts, refstore.WithDimension(cfg.Model.Dimension))
	}
	store := refstore.New(src, key, storeOpts...)

	opts := []usecase.PipelineOption{usecase.WithLogger(logger)}
	if cfg.Search.CacheSize > 0 {
		opts = append(opts, usecase.WithMatchCache(cache.NewMatchCache(cfg.Search.CacheSize, cfg.Search.CacheTTL)))
	}

	return usecase.NewPipeline(embedding.Loader(cfg.Model), store, opts...), nil
}

func searchLimit(flag int) int {
	if flag > 0 {
		return flag
	}
	if cfg.Search.Limit > 0 {
		return cfg.Search.Limit
	}
	return 10
}

// userMessage turns a pipeline failure into a sentence for the user,
// keeping the cause for diagnosis.
func userMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out: %v", err)
	}

	var msg string
	switch domain.KindOf(err) {
	case domain.KindModelNotLoaded:
		msg = "the recognition model could not be loaded"
	case domain.KindDataUnavailable:
		msg = "the product reference data could not be loaded"
	case domain.KindInvalidFrame:
		msg = "the image could not be used, try another frame"
	case domain.KindCameraUnavailable:
		msg = "no camera is available"
		var camErr *domain.CameraAccessError
		if errors.As(err, &camErr) && camErr.Permission {
			msg = "camera access was denied, check device permissions"
		}
	case domain.KindInferenceFailed:
		msg = "image analysis failed, try again"
	default:
		return err.Error()
	}
	return msg + " (" + err.Error() + ")"
}
