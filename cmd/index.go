package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/jobmatch/internal/catalog"
	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/pipeline"
	"github.com/spigell/jobmatch/internal/render"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the persisted job index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index, reusing a current persisted copy unless --force is set",
	Run: func(cmd *cobra.Command, _ []string) {
		buildIndex(cmd)
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the persisted index matches the catalog and embedder",
	Run: func(cmd *cobra.Command, _ []string) {
		indexStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd, indexStatusCmd)

	indexBuildCmd.Flags().BoolP("force", "f", false, "rebuild even if the persisted index is current")
}

func buildIndex(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, cfg := setup()

	app, err := pipeline.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrapping", zap.Error(err))
	}

	if flagBool(cmd, "force") {
		err = app.Rebuild(ctx)
	} else {
		err = app.Init(ctx)
	}
	if err != nil {
		logger.Fatal("building the index", zap.Error(err))
	}

	stats := app.IndexStats()
	logger.Info("index ready",
		zap.Int("records", stats.Records),
		zap.String("embedder", stats.Embedder),
		zap.Int("dimension", stats.Dimension),
		zap.String("path", cfg.Index.Path),
	)
}

// IndexStatus is the report printed by "index status".
type IndexStatus struct {
	Path        string `json:"path"`
	Persisted   bool   `json:"persisted"`
	Compatible  bool   `json:"compatible"`
	Current     bool   `json:"current"`
	Records     int    `json:"records"`
	Embedder    string `json:"embedder,omitempty"`
	Dimension   int    `json:"dimension,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

func indexStatus(cmd *cobra.Command) {
	ctx := context.Background()

	logger, cfg := setup()

	app, err := pipeline.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrapping", zap.Error(err))
	}
	configured := app.IndexStats()

	records, err := catalog.Load(cfg.Dataset, logger)
	if err != nil {
		logger.Fatal("loading the catalog", zap.Error(err))
	}

	status := IndexStatus{Path: cfg.Index.Path}
	m, _, err := index.NewStore(cfg.Index.Path).Load()
	switch {
	case err == nil:
		status.Persisted = true
		status.Records = len(m.Records)
		status.Embedder = m.Embedder
		status.Dimension = m.Dimension
		status.Fingerprint = m.Fingerprint
		status.Compatible = m.Embedder == configured.Embedder && m.Dimension == configured.Dimension
		status.Current = status.Compatible && m.Fingerprint == catalog.Fingerprint(records)
	case errors.Is(err, index.ErrIndexNotFound):
	default:
		status.Persisted = true
		status.Error = err.Error()
	}

	if viper.GetBool("json") {
		if err := render.JSON(cmd.OutOrStdout(), status); err != nil {
			logger.Fatal("rendering status", zap.Error(err))
		}
		return
	}

	logger.Info("index status",
		zap.String("path", status.Path),
		zap.Bool("persisted", status.Persisted),
		zap.Bool("compatible", status.Compatible),
		zap.Bool("current", status.Current),
		zap.Int("records", status.Records),
		zap.String("embedder", status.Embedder),
		zap.String("configured_embedder", configured.Embedder),
		zap.Int("catalog_records", len(records)),
		zap.String("error", status.Error),
	)
}
