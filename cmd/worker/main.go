package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/jobs"
	"github.com/dvloznov/statement-reconciler/internal/jobs/inmemory"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/ofx"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
)

var statementExts = map[string]bool{".pdf": true, ".ofx": true, ".qfx": true}

// objectLister lists the objects below a gs:// prefix.
type objectLister interface {
	ListObjects(ctx context.Context, prefixURI string) ([]string, error)
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to a config file (optional)")
		outPath    = flag.String("out", "", "Write the results as JSON to this file (default stdout)")
		workers    = flag.Int("workers", inmemory.DefaultWorkers, "Number of files extracted in parallel")
		store      = flag.Bool("store", false, "Store each statement in BigQuery")
		timeout    = flag.Duration("timeout", 30*time.Minute, "Give up after this long")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: worker [options] <file|dir|gs://bucket/prefix>...")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, log, cfg, flag.Args(), *outPath, *workers, *store); err != nil {
		log.Fatal().Err(err).Msg("Worker failed")
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config, args []string, outPath string, workers int, store bool) error {
	registry := layout.NewRegistry(cfg.LayoutsDir)
	if err := registry.Load(ctx); err != nil {
		return err
	}
	processor, err := pipeline.NewProcessorFromConfig(ctx, cfg, registry)
	if err != nil {
		return err
	}
	extractor := &ofx.Extractor{PDF: processor}

	var storage *gcsuploader.GCSStorageService
	for _, a := range args {
		if gcsuploader.IsGCSURI(a) {
			if storage, err = gcsuploader.NewGCSStorageService(ctx); err != nil {
				return err
			}
			defer storage.Close()
			break
		}
	}

	var sink jobs.ResultSink
	if store {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			return err
		}
		defer repo.Close()
		sink = infraBQ.StatementSink(repo)
	}

	var lister objectLister
	var reader gcsuploader.StorageService
	if storage != nil {
		lister, reader = storage, storage
	}
	sources, err := expandSources(ctx, lister, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no statement files found in %s", strings.Join(args, ", "))
	}
	log.Info().Int("files", len(sources)).Int("workers", workers).Msg("Starting batch extraction")

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(len(sources), jobStore, inmemory.WithWorkers(workers))
	if err := queue.Start(ctx, jobs.ExtractHandler(extractor, jobs.NewSourceReader(reader), sink)); err != nil {
		return err
	}
	defer queue.Stop(context.Background())

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		job := &jobs.ExtractFileJob{Source: src}
		if err := queue.PublishExtractFile(ctx, job); err != nil {
			return err
		}
		ids = append(ids, job.JobID)
	}
	if err := queue.Drain(ctx); err != nil {
		return fmt.Errorf("waiting for jobs: %w", err)
	}

	results, failed, err := collectResults(ctx, jobStore, ids)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}

	log.Info().Int("files", len(results)).Int("failed", failed).Msg("Batch extraction finished")
	return nil
}

// expandSources turns arguments into statement sources. Directories are
// listed one level deep, gs:// URIs ending in "/" are listed through lister
// and everything else is taken as is. The order is stable.
func expandSources(ctx context.Context, lister objectLister, args []string) ([]string, error) {
	var sources []string
	for _, a := range args {
		if gcsuploader.IsGCSURI(a) {
			if !strings.HasSuffix(a, "/") {
				sources = append(sources, a)
				continue
			}
			if lister == nil {
				return nil, fmt.Errorf("expandSources: no storage configured for %s", a)
			}
			uris, err := lister.ListObjects(ctx, a)
			if err != nil {
				return nil, fmt.Errorf("expandSources: %w", err)
			}
			sort.Strings(uris)
			for _, u := range uris {
				if statementExts[strings.ToLower(filepath.Ext(u))] {
					sources = append(sources, u)
				}
			}
			continue
		}

		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("expandSources: %w", err)
		}
		if !info.IsDir() {
			sources = append(sources, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, fmt.Errorf("expandSources: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && statementExts[strings.ToLower(filepath.Ext(e.Name()))] {
				sources = append(sources, filepath.Join(a, e.Name()))
			}
		}
	}
	return sources, nil
}

// collectResults returns the file results in publication order. Jobs that
// never produced a result are reported as failed files.
func collectResults(ctx context.Context, store jobs.JobStore, ids []string) ([]domain.FileResult, int, error) {
	results := make([]domain.FileResult, 0, len(ids))
	failed := 0
	for _, id := range ids {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		var res domain.FileResult
		if job.Result != nil {
			res = *job.Result
		} else {
			name := job.FileName
			if name == "" {
				name = filepath.Base(job.Source)
			}
			res = pipeline.FailedResult(name, errors.New(job.Error))
		}
		if res.Method == domain.MethodFailed {
			failed++
		}
		results = append(results, res)
	}
	return results, failed, nil
}
