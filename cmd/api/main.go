package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"github.com/dvloznov/statement-reconciler/internal/api/handlers"
	"github.com/dvloznov/statement-reconciler/internal/api/middleware"
	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/jobs"
	"github.com/dvloznov/statement-reconciler/internal/jobs/inmemory"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/ofx"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a config file (optional)")
		port       = flag.Int("port", 0, "HTTP server port (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	log := logger.NewLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	registry := layout.NewRegistry(cfg.LayoutsDir)
	if err := registry.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load bank layouts")
	}
	processor, err := pipeline.NewProcessorFromConfig(ctx, cfg, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create processor")
	}
	extractor := &ofx.Extractor{PDF: processor}

	var storage gcsuploader.StorageService
	if cfg.GCS.Bucket != "" {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer svc.Close()
		storage = svc
	} else {
		log.Warn().Msg("No GCS bucket configured - gs:// sources are disabled")
	}

	// The nil interfaces stay nil when BigQuery is not configured.
	var (
		statements infraBQ.StatementRepository
		runs       infraBQ.RunRepository
		sink       jobs.ResultSink
	)
	if cfg.BigQuery.Project != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		statements, runs = repo, repo
		sink = infraBQ.StatementSink(repo)
	} else {
		log.Warn().Msg("No BigQuery project configured - results will not be stored")
	}

	read := jobs.NewSourceReader(storage)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobs.ExtractHandler(extractor, read, sink)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	results := cache.New(cfg.Cache.TTL, 2*cfg.Cache.TTL)
	extractHandler := handlers.NewExtractHandler(extractor, read, jobQueue, results, statements, log)
	reconcileHandler := handlers.NewReconcileHandler(extractHandler, reconcile.OptionsFromConfig(cfg), runs, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst))

		r.Post("/extract", extractHandler.Extract)
		r.Post("/extract/async", extractHandler.ExtractAsync)
		r.Post("/reconcile", reconcileHandler.Reconcile)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)

		r.Get("/runs", reconcileHandler.ListRuns)
		r.Get("/runs/{id}/rows", reconcileHandler.ListRunRows)

		r.Get("/layouts", handlers.ListLayouts(registry))
	})

	// Reconciliation of large statements can run well past the usual
	// request budget.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
