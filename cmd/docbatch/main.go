package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/export"
	"github.com/filefolio/docfolio/internal/extract"
	"github.com/filefolio/docfolio/internal/ingest"
	"github.com/filefolio/docfolio/internal/metadata"
	"github.com/filefolio/docfolio/internal/storage"
	"github.com/filefolio/docfolio/internal/store"
	"github.com/filefolio/docfolio/internal/tags"
)

// docbatch ingests every PDF under a directory through the full pipeline,
// fanning the work out over a bounded worker pool.
func main() {
	_ = godotenv.Load()

	root := flag.String("dir", "", "directory to ingest (required)")
	skipHidden := flag.Bool("skip-hidden", true, "skip hidden files and directories")
	exportPath := flag.String("export", "", "write an XLSX listing of all documents after ingesting")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if *root == "" {
		fmt.Fprintln(os.Stderr, "usage: docbatch -dir <directory> [-export listing.xlsx]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := store.NewDocumentRepository(db, logger)

	blobs, err := storage.New(cfg.Storage, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init storage: %v\n", err)
		os.Exit(1)
	}

	vocab, err := tags.Load(ctx, repo, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load tag vocabulary: %v\n", err)
		os.Exit(1)
	}

	extractor := extract.NewExtractor(extract.Config{
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Languages:   cfg.OCR.Languages,
		DPI:         cfg.OCR.DPI,
		MaxPages:    cfg.OCR.MaxPages,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	deriver := metadata.NewDeriver(vocab, logger,
		metadata.NewOllamaStrategy(metadata.OllamaConfig{
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger),
		metadata.NewRuleStrategy(),
	)

	svc := ingest.NewService(repo, blobs, extractor, deriver, vocab, logger)

	results, stats, err := svc.IngestDirectory(ctx, *root, *skipHidden, cfg.Ingest.Workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest %s: %v\n", *root, err)
		os.Exit(1)
	}
	if stats.Matched == 0 {
		fmt.Printf("no PDF files under %s\n", *root)
		return
	}

	for _, r := range results {
		switch {
		case r.Deduplicated:
			fmt.Printf("DUP   %s (already stored as %s)\n", r.Path, r.DocumentID)
		case r.Err != "":
			fmt.Printf("FAIL  %s: %s\n", r.Path, r.Err)
		default:
			fmt.Printf("OK    %s -> %s\n", r.Path, r.DocumentID)
		}
	}
	fmt.Printf("\n%d matched, %d ingested, %d duplicates, %d failed\n",
		stats.Matched, stats.Succeeded, stats.Deduplicated, stats.Failed)

	if *exportPath != "" {
		data, err := export.NewService(repo, logger).ExportXLSX(ctx, store.Filter{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *exportPath, err)
			os.Exit(1)
		}
		fmt.Printf("listing written to %s\n", *exportPath)
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}
