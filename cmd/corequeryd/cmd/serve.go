package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/federails/corequery/internal/api"
	"github.com/federails/corequery/internal/config"
	"github.com/federails/corequery/internal/connector"
	"github.com/federails/corequery/internal/embed"
	"github.com/federails/corequery/internal/frpei"
	"github.com/federails/corequery/internal/frpei/localprovider"
	"github.com/federails/corequery/internal/ontology"
	"github.com/federails/corequery/internal/plugin"
	"github.com/federails/corequery/internal/preflight"
	"github.com/federails/corequery/internal/profiling"
	"github.com/federails/corequery/internal/relay"
	"github.com/federails/corequery/internal/scheduler"
	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
	"github.com/federails/corequery/internal/webhook"
)

func newServeCmd() *cobra.Command {
	var (
		dataDir      string
		addr         string
		bm25Backend  string
		skipCheck    bool
		profileCPU   string
		profileMem   string
		profileTrace string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion-and-retrieval HTTP API",
		Long: `serve builds the full composition root — metadata store, BM25
and vector indices, the embedder, the hybrid search engine, the
ontology expander, the WoT plugin pipeline, the connector registry and
scheduler, the webhook sink, and the FRPEI orchestrator — and starts
the HTTP API over them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), serveOptions{
				dataDir:      dataDir,
				addr:         addr,
				bm25Backend:  bm25Backend,
				skipCheck:    skipCheck,
				profileCPU:   profileCPU,
				profileMem:   profileMem,
				profileTrace: profileTrace,
			})
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", ".corequery", "Directory for the database, indices, and ontology snapshot")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding the configured port (host:port)")
	cmd.Flags().StringVar(&bm25Backend, "bm25-backend", "sqlite", "BM25 backend: sqlite or bleve")
	cmd.Flags().StringVar(&profileCPU, "profile-cpu", "", "Write a CPU profile to this file for the life of the process")
	cmd.Flags().StringVar(&profileMem, "profile-mem", "", "Write a heap profile to this file on shutdown")
	cmd.Flags().StringVar(&profileTrace, "profile-trace", "", "Write an execution trace to this file for the life of the process")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip preflight system checks before starting")

	return cmd
}

type serveOptions struct {
	dataDir      string
	addr         string
	bm25Backend  string
	skipCheck    bool
	profileCPU   string
	profileMem   string
	profileTrace string
}

func runServe(ctx context.Context, opts serveOptions) error {
	dataDir, addr, bm25Backend, skipCheck := opts.dataDir, opts.addr, opts.bm25Backend, opts.skipCheck
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	profiler := profiling.NewProfiler()
	if opts.profileCPU != "" {
		cleanup, err := profiler.StartCPU(opts.profileCPU)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer cleanup()
	}
	if opts.profileTrace != "" {
		cleanup, err := profiler.StartTrace(opts.profileTrace)
		if err != nil {
			return fmt.Errorf("start trace: %w", err)
		}
		defer cleanup()
	}
	if opts.profileMem != "" {
		defer func() {
			if err := profiler.WriteHeap(opts.profileMem); err != nil {
				logger.Warn("failed to write heap profile", "error", err)
			}
		}()
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(dataDir, "config.yaml")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	checker := preflight.New(preflight.WithOutput(os.Stdout))
	if !skipCheck {
		results := checker.RunAll(ctx, dataDir)
		checker.PrintResults(results)
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("preflight checks failed, run 'corequeryd doctor' for details")
		}
	}

	dbPath := cfg.DatabaseURL
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(dataDir, dbPath)
	}
	metadata, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer metadata.Close()

	bm25, err := store.NewBM25IndexWithBackend(filepath.Join(dataDir, "bm25"), store.DefaultBM25Config(), bm25Backend)
	if err != nil {
		return fmt.Errorf("open bm25 index: %w", err)
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(cfg.Indexing.EmbeddingDimension))
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(os.Getenv("COREQUERY_EMBEDDER")), cfg.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	engineCfg := search.DefaultConfig()
	engineCfg.DefaultLimit = cfg.Search.DefaultLimit
	engineCfg.SearchTimeout = cfg.Search.SearchTimeout
	engineCfg.DefaultWeights = search.Weights{Vector: cfg.Search.VectorWeight, Lexical: cfg.Search.LexicalWeight}

	snapPath := filepath.Join(dataDir, "ontology.json")
	snap, err := ontology.LoadSnapshot(snapPath)
	if err != nil {
		logger.Info("ontology: no snapshot on disk yet, starting empty", "path", snapPath)
		snap = nil
	}
	expander := ontology.NewExpander(snap)

	var modifiers []plugin.ScoreModifier
	if cfg.WoTEnabled {
		wotPlugin, err := buildWoTPlugin(cfg, logger)
		if err != nil {
			return fmt.Errorf("build wot plugin: %w", err)
		}
		modifiers = append(modifiers, wotPlugin)
	}
	pipeline := plugin.NewPipeline(logger, modifiers...)

	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineCfg,
		search.WithExpander(expander),
		search.WithTriggers(expander),
		search.WithPlugins(pipeline),
	)
	if err != nil {
		return fmt.Errorf("build search engine: %w", err)
	}

	registry := connector.NewRegistry()
	relayPool := relay.NewPool(logger)
	defer relayPool.Close()
	registry.Register(connector.KindNostr, func() connector.Connector { return connector.NewNostrConnector(relayPool) })

	webhookStore, err := webhook.NewSQLiteStore(metadata.DB())
	if err != nil {
		return fmt.Errorf("open webhook store: %w", err)
	}
	webhookSink := webhook.NewSink(webhookStore, logger)

	sched := scheduler.New(
		metadata,
		&registryConnectorSource{registry: registry, records: metadata},
		sinkFactory(metadata),
		webhookSink,
		logger,
	)
	if n, err := sched.RecoverCrashedRuns(ctx); err != nil {
		logger.Warn("scheduler: crash recovery failed", "error", err)
	} else if n > 0 {
		logger.Info("scheduler: recovered crashed runs", "count", n)
	}
	sched.Start(ctx)
	defer sched.Close()

	localProvider := localprovider.New(engine, 10)
	resultCache := frpei.NewResultCache(cfg.FRPEI.ResultCacheCap, cfg.FRPEI.ResultCacheTTL)
	orchestrator := frpei.NewOrchestrator([]frpei.Provider{frpei.NewBreakingProvider(localProvider)}, resultCache, logger)
	feedback := frpei.NewFeedbackRecorder(metadata)

	deps := api.Deps{
		Engine:     engine,
		Metadata:   metadata,
		Enrichment: metadata,
		Connectors: metadata,
		Runs:       metadata,
		Registry:   registry,
		Scheduler:  sched,
		Webhooks:   webhookStore,
		Ontology:   expander,
		FRPEI:      orchestrator,
		Feedback:   feedback,
		FRPEILog:   metadata,
		Preflight:  checker,
		DataDir:    dataDir,
		Logger:     logger,
	}
	server := api.New(deps)

	listenAddr := addr
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%d", cfg.Port)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", listenAddr)
		if err := server.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildWoTPlugin(cfg config.Config, logger *slog.Logger) (plugin.ScoreModifier, error) {
	var provider plugin.Provider
	if cfg.WoTProvider == "external" {
		provider = plugin.NewExternalWoTProvider(os.Getenv("COREQUERY_WOT_URL"))
	} else {
		provider = plugin.NewLocalWoTProvider(plugin.NewFollowGraph(nil))
	}
	return plugin.NewWoTPlugin(plugin.WoTConfig{
		Provider:   provider,
		Weight:     cfg.WoTWeight,
		FilterMode: plugin.FilterOpen,
	})
}
