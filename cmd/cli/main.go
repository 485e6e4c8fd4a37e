package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-reconciler/internal/config"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-reconciler/internal/infra/bigquery"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/ledger"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/ofx"
	"github.com/dvloznov/statement-reconciler/internal/pipeline"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
	"github.com/dvloznov/statement-reconciler/internal/report"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract()
	case "reconcile":
		runReconcile()
	case "ofx":
		runOFX()
	case "layouts":
		runLayouts()
	case "upload":
		runUpload()
	case "runs":
		runRuns()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Reconciler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract    Extract transactions from bank statements (PDF or OFX)")
	fmt.Println("  reconcile  Reconcile a ledger against bank statements")
	fmt.Println("  ofx        Convert a statement to OFX")
	fmt.Println("  layouts    List bank layouts or write the built-in descriptors")
	fmt.Println("  upload     Upload a statement to GCS")
	fmt.Println("  runs       List stored reconciliation runs")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup loads the configuration and binds a logger at its level.
func setup(configPath string) (context.Context, *config.Config, zerolog.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLevel(cfg.LogLevel)
	return logger.WithContext(context.Background(), log), cfg, log
}

func newExtractor(ctx context.Context, cfg *config.Config) (*ofx.Extractor, error) {
	registry := layout.NewRegistry(cfg.LayoutsDir)
	if err := registry.Load(ctx); err != nil {
		return nil, err
	}
	processor, err := pipeline.NewProcessorFromConfig(ctx, cfg, registry)
	if err != nil {
		return nil, err
	}
	return &ofx.Extractor{PDF: processor}, nil
}

func extractFiles(ctx context.Context, ex *ofx.Extractor, paths []string) []domain.FileResult {
	results := make([]domain.FileResult, 0, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		data, err := os.ReadFile(p)
		if err != nil {
			results = append(results, pipeline.FailedResult(name, err))
			continue
		}
		results = append(results, ex.ProcessBytes(logger.WithFile(ctx, name), name, data))
	}
	return results
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	outPath := fs.String("out", "", "Write JSON results to this file (default stdout)")
	fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cli extract [-out FILE] STATEMENT...")
		os.Exit(1)
	}

	ctx, cfg, log := setup(*configPath)
	ex, err := newExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up extraction")
	}

	results := extractFiles(ctx, ex, fs.Args())
	if err := writeJSONFile(*outPath, results); err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}

	for _, r := range results {
		ev := log.Info()
		if r.Error != "" {
			ev = log.Warn().Str("error", r.Error)
		}
		ev.Str("file", r.File).
			Str("layout", r.Layout).
			Str("method", string(r.Method)).
			Str("verdict", string(r.Validation.Verdict)).
			Int("transactions", len(r.Transactions)).
			Msg("Extracted")
	}
}

func runReconcile() {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	ledgerPath := fs.String("ledger", "", "Ledger export (.csv) or ledger PDF")
	subject := fs.String("subject-account", "", "Bank account code in the chart of accounts (inferred when empty)")
	outPath := fs.String("out", "conciliacao.xlsx", "Report file; .json writes JSON, anything else a workbook")
	filterPeriod := fs.Bool("filter-period", false, "Ignore bank movements outside the ledger period")
	store := fs.Bool("store", false, "Store the run in BigQuery")
	upload := fs.Bool("upload", false, "Also upload the report to the configured GCS bucket")
	fs.Parse(os.Args[2:])

	if *ledgerPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cli reconcile -ledger FILE [-out FILE] STATEMENT...")
		os.Exit(1)
	}

	ctx, cfg, log := setup(*configPath)
	started := time.Now()

	data, err := os.ReadFile(*ledgerPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}
	book, err := ledger.Parse(ctx, filepath.Base(*ledgerPath), data, ledger.Options{SubjectAccount: *subject})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse ledger")
	}

	ex, err := newExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up extraction")
	}
	statements := extractFiles(ctx, ex, fs.Args())

	opts := reconcile.OptionsFromConfig(cfg)
	opts.FilterToLedgerPeriod = *filterPeriod
	rep, _ := reconcile.NewEngine(opts).Run(ctx, book.Rows, statements)

	if err := writeReport(*outPath, rep); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if *upload {
		uri, err := uploadReport(ctx, cfg, *outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to upload report")
		}
		log.Info().Str("gcs_uri", uri).Msg("Report uploaded")
	}

	if *store {
		repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		if _, err := infraBQ.SaveRun(ctx, repo, started, book, rep, opts); err != nil {
			log.Fatal().Err(err).Msg("Failed to store run")
		}
	}

	m := rep.Metrics
	fmt.Printf("Ledger rows:        %d\n", m.LedgerCount)
	fmt.Printf("Bank rows:          %d\n", m.BankCount)
	fmt.Printf("Matched:            %d\n", m.Matched)
	fmt.Printf("Matched (combined): %d in %d groups\n", m.Combinatorial, m.CombinatorialCount)
	fmt.Printf("Unmatched ledger:   %d\n", m.UnmatchedLedger)
	fmt.Printf("Unmatched bank:     %d\n", m.UnmatchedBank)
	fmt.Printf("Initial gap:        %s\n", m.InitialGap.StringFixed(2))
	fmt.Printf("Final gap:          %s\n", m.FinalGap.StringFixed(2))
	fmt.Printf("\nReport written to %s\n", *outPath)
}

func writeReport(path string, rep reconcile.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return report.WriteJSON(f, rep)
	}
	return report.WriteXLSX(f, rep)
}

func uploadReport(ctx context.Context, cfg *config.Config, path string) (string, error) {
	if cfg.GCS.Bucket == "" {
		return "", fmt.Errorf("uploadReport: gcs.bucket is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("uploadReport: %w", err)
	}
	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		contentType = "application/json"
	}

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return "", err
	}
	defer svc.Close()
	object := gcsuploader.ObjectName("reports", filepath.Base(path), time.Now())
	return svc.UploadBytes(ctx, cfg.GCS.Bucket, object, contentType, data)
}

func runOFX() {
	fs := flag.NewFlagSet("ofx", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	inPath := fs.String("in", "", "Statement to convert")
	outPath := fs.String("out", "", "OFX file to write (defaults to the input name with .ofx)")
	fs.Parse(os.Args[2:])

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: cli ofx -in STATEMENT [-out FILE]")
		os.Exit(1)
	}
	if *outPath == "" {
		*outPath = strings.TrimSuffix(*inPath, filepath.Ext(*inPath)) + ".ofx"
	}

	ctx, cfg, log := setup(*configPath)
	ex, err := newExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up extraction")
	}

	res := extractFiles(ctx, ex, []string{*inPath})[0]
	if res.Error != "" {
		log.Fatal().Str("error", res.Error).Msg("Extraction failed")
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output")
	}
	defer f.Close()
	if err := ofx.Write(f, res); err != nil {
		log.Fatal().Err(err).Msg("Failed to write OFX")
	}
	fmt.Printf("Wrote %d transactions to %s\n", len(res.Transactions), *outPath)
}

func runLayouts() {
	fs := flag.NewFlagSet("layouts", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	writeDefaults := fs.Bool("write-defaults", false, "Write the built-in descriptors into the layouts directory")
	show := fs.String("show", "", "Print the descriptor closest to this bank or layout name")
	fs.Parse(os.Args[2:])

	ctx, cfg, log := setup(*configPath)

	if *writeDefaults {
		paths, err := layout.WriteDefaults(ctx, cfg.LayoutsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to write layouts")
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return
	}

	registry := layout.NewRegistry(cfg.LayoutsDir)
	if err := registry.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load layouts")
	}
	if *show != "" {
		l := registry.Find(*show)
		if l == nil {
			log.Fatal().Str("name", *show).Msg("No layout found")
		}
		if err := writeJSONFile("", l); err != nil {
			log.Fatal().Err(err).Msg("Failed to print layout")
		}
		return
	}
	for _, l := range registry.List() {
		fmt.Printf("%-24s %-4s %s\n", l.Name, l.BankID, strings.Join(l.Keywords, ", "))
	}
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	filePath := fs.String("file", "", "Path to the local statement")
	prefix := fs.String("prefix", "statements", "Object name prefix")
	fs.Parse(os.Args[2:])

	ctx, cfg, log := setup(*configPath)
	if *filePath == "" || cfg.GCS.Bucket == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH (with gcs.bucket configured)")
	}

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer svc.Close()

	object := gcsuploader.ObjectName(*prefix, filepath.Base(*filePath), time.Now())
	if err := svc.UploadFile(ctx, cfg.GCS.Bucket, object, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, cfg.GCS.Bucket, object)
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a config file (optional)")
	limit := fs.Int("limit", 20, "Number of runs to show")
	fs.Parse(os.Args[2:])

	ctx, cfg, log := setup(*configPath)
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	for _, r := range runs {
		s := r.Summary()
		fmt.Printf("%s  %s  %-30s matched=%d unmatched=%d/%d gap=%s\n",
			s.RunID, s.StartedAt.Format(time.RFC3339), s.LedgerFile,
			s.Metrics.Matched+s.Metrics.Combinatorial, s.Metrics.UnmatchedLedger, s.Metrics.UnmatchedBank,
			s.Metrics.FinalGap.StringFixed(2))
	}
}

func writeJSONFile(path string, v interface{}) error {
	out := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
