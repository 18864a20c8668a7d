package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/pixelcast-dev/pixelcast/internal/config"
	"github.com/pixelcast-dev/pixelcast/internal/errors"
	"github.com/pixelcast-dev/pixelcast/pkg/archive"
	"github.com/pixelcast-dev/pixelcast/pkg/pipeline"
	"github.com/pixelcast-dev/pixelcast/pkg/preview"
	"github.com/pixelcast-dev/pixelcast/pkg/source"
	"github.com/pixelcast-dev/pixelcast/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the configured pipelines",
		Long: `Start every pipeline from pixelcast.json plus the HTTP side
(metrics, health and debug endpoints).

Examples:
  pixelcast serve
  pixelcast serve --config /etc/pixelcast/pixelcast.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ./pixelcast.json)")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)
	logger := slog.Default().With("component", "serve")

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	var store *archive.Store
	if cfg.Archive != nil {
		store = archive.NewStore(newS3Client(cfg.Archive), cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	// Build every pipeline before starting any: a config error should
	// stop the process up front, not after half the displays connected.
	type entry struct {
		pipe *pipeline.Pipeline
		hub  *preview.Hub
	}
	entries := make(map[string]entry, len(cfg.Pipelines))
	for _, pc := range cfg.Pipelines {
		src, err := source.Build(pc.Source.Kind, pc.Width, pc.Height, pc.Source.Options)
		if err != nil {
			return errors.New("E202").WithDetail("pipeline " + pc.Name).Wrap(err)
		}
		hub := preview.NewHub()
		entries[pc.Name] = entry{
			pipe: pipeline.New(pc.PipelineConfig(), src, metrics.ForPipeline(pc.Name), hub),
			hub:  hub,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for name, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.pipe.Run(ctx); err != nil {
				logger.Error("pipeline failed", "pipeline", name, "error", err)
				cancel()
			}
		}()
	}

	pipes := make(map[string]*pipeline.Pipeline, len(entries))
	hubs := make(map[string]*preview.Hub, len(entries))
	for name, e := range entries {
		pipes[name] = e.pipe
		hubs[name] = e.hub
	}
	httpSrv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           newRouter(registry, pipes, hubs, store),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http listening", "addr", cfg.MetricsAddress)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("pixelcast running", "pipelines", len(entries), "version", version)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer sdCancel()
	httpSrv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(dir)
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// newS3Client builds the archive client from the config block plus the
// standard AWS credential environment variables.
func newS3Client(ac *config.ArchiveConfig) *s3.Client {
	opts := s3.Options{
		Region: ac.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			}, nil
		}),
	}
	if ac.Endpoint != "" {
		opts.BaseEndpoint = aws.String(ac.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}
