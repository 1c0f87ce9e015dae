package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/docstream/pkg/config"
	"github.com/cuemby/docstream/pkg/events"
	"github.com/cuemby/docstream/pkg/extractor"
	"github.com/cuemby/docstream/pkg/gateway"
	"github.com/cuemby/docstream/pkg/log"
	"github.com/cuemby/docstream/pkg/metrics"
	"github.com/cuemby/docstream/pkg/processor"
	"github.com/cuemby/docstream/pkg/queue"
	"github.com/cuemby/docstream/pkg/storage"
	"github.com/cuemby/docstream/pkg/submit"
	"github.com/cuemby/docstream/pkg/tools"
	"github.com/cuemby/docstream/pkg/types"
	"github.com/cuemby/docstream/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion pipeline",
	Long: `Start the docstream pipeline: document store, work queue, event bus,
model gateway, and worker pool. Runs until interrupted.

With --watch-dir set, files dropped into the directory are submitted
for processing and removed once their content is safely staged.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML config file")
	serveCmd.Flags().String("watch-dir", "", "Directory to poll for dropped files")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	watchDir, _ := cmd.Flags().GetString("watch-dir")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	logger := log.WithComponent("serve")
	logger.Info().Str("version", Version).Msg("starting docstream")

	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	q, err := buildQueue(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to open queue: %w", err)
	}
	defer q.Close()

	bus := events.NewBus()
	bus.Start()
	defer bus.Stop()

	gw := buildGateway(cfg)
	toolset, toolRegistry := tools.NewToolset(gw)
	logger.Info().Strs("providers", gw.Providers()).
		Int("tools", len(toolRegistry.Names())).Msg("model gateway ready")

	extractors := buildExtractors(toolset)

	proc := processor.New(store, q, extractors, gw, toolset, bus)
	pool := worker.NewPool(q, proc, bus,
		cfg.Queue.MaxConcurrentWorkers,
		cfg.Queue.ProcessingTimeout,
		cfg.Queue.StaleJobCheckInterval,
	)
	pool.Start()

	service := submit.NewService(store, q, extractors, bus)

	watchStop := make(chan struct{})
	if watchDir != "" {
		go watchLoop(service, watchDir, logger, watchStop)
	}

	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	close(watchStop)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)
	pool.Stop()

	logger.Info().Msg("shutdown complete")
	return nil
}

// watchLoop polls a drop directory and submits every regular file it
// finds. A file is removed only after its content has been staged and
// the job enqueued.
func watchLoop(service *submit.Service, dir string, logger zerolog.Logger, stop <-chan struct{}) {
	logger.Info().Str("dir", dir).Msg("watching drop directory")
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ingestDropped(service, dir, logger)
		case <-stop:
			return
		}
	}
}

func ingestDropped(service *submit.Service, dir string, logger zerolog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("failed to read drop directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to read dropped file")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		doc, err := service.Upload(ctx, entry.Name(), content, "")
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to submit dropped file")
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove dropped file")
		}
		logger.Info().Str("document_id", doc.ID).Str("file", entry.Name()).Msg("dropped file submitted")
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		return storage.NewRedisStoreFromURL(ctx, cfg.Store.RedisURL)
	default:
		return storage.NewBoltStore(cfg.Store.DataDir)
	}
}

func buildQueue(cfg *config.Config, store storage.Store) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Queue.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid queue redis url: %w", err)
		}
		return queue.NewRedisQueue(queue.RedisQueueConfig{
			Client:            redis.NewClient(opts),
			Store:             store,
			MaxRetries:        cfg.Queue.RetryMaxAttempts,
			ProcessingTimeout: cfg.Queue.ProcessingTimeout,
		}), nil
	default:
		return queue.NewMemoryQueue(queue.MemoryQueueConfig{
			Store:             store,
			MaxRetries:        cfg.Queue.RetryMaxAttempts,
			ProcessingTimeout: cfg.Queue.ProcessingTimeout,
		}), nil
	}
}

// buildGateway registers the configured providers. The local provider is
// always present so enrichment degrades instead of disappearing when no
// API-backed provider is configured.
func buildGateway(cfg *config.Config) *gateway.Gateway {
	gw := gateway.New(gateway.Config{
		Strategy:           gateway.Strategy(cfg.Gateway.SelectionStrategy),
		TaskModelOverrides: cfg.Gateway.TaskModelOverrides,
		FallbackChain:      cfg.Gateway.FallbackChain,
		DefaultProvider:    cfg.Gateway.DefaultProvider,
	})

	if pc, ok := cfg.Gateway.Providers["anthropic"]; ok {
		gw.Register(gateway.NewAnthropicProvider(gateway.AnthropicConfig{
			APIKey:       pc.APIKey,
			ModelID:      pc.ModelID,
			Enabled:      pc.Enabled && pc.APIKey != "",
			Cost:         costProfile(pc),
			PreferredFor: pc.PreferredFor,
		}))
	}
	gw.Register(gateway.NewLocalProvider())
	return gw
}

func costProfile(pc config.ProviderConfig) gateway.CostProfile {
	return gateway.CostProfile{
		Tier:            gateway.CostTier(pc.CostTier),
		CostPer1KInput:  pc.CostPer1KIn,
		CostPer1KOutput: pc.CostPer1KOut,
		AvgLatency:      time.Duration(pc.AvgLatencyMS) * time.Millisecond,
		MaxContext:      pc.MaxContext,
		QualityScore:    pc.QualityScore,
	}
}

// buildExtractors wires the format dispatch table. PDF, spreadsheet, and
// media parsing need external backends; without them those kinds report
// unavailable at processing time.
func buildExtractors(toolset *tools.Toolset) *extractor.Registry {
	registry := extractor.NewRegistry()

	text := extractor.NewTextExtractor(toolset.Markdown)
	registry.Register(types.KindText, text)
	registry.Register(types.KindMarkdown, text)
	registry.Register(types.KindWord, text)

	registry.Register(types.KindJSON, extractor.NewJSONExtractor())
	registry.Register(types.KindXML, extractor.NewXMLExtractor())
	registry.Register(types.KindCSV, extractor.NewCSVExtractor())

	registry.Register(types.KindPDF, extractor.NewPDFExtractor(nil, nil))
	registry.Register(types.KindExcel, extractor.NewExcelExtractor(nil))
	registry.Register(types.KindWebpage, extractor.NewWebpageExtractor())

	media := extractor.NewMediaExtractor(nil, nil)
	registry.Register(types.KindYouTube, media)
	registry.Register(types.KindPodcast, media)

	return registry
}
