package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/extract"
	"github.com/filefolio/docfolio/internal/ingest"
	"github.com/filefolio/docfolio/internal/metadata"
	"github.com/filefolio/docfolio/internal/storage"
	"github.com/filefolio/docfolio/internal/store"
	"github.com/filefolio/docfolio/internal/tags"
)

// docfoliod watches one or more inbox directories and files every PDF that
// lands in them: extract, categorize, tag, store.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if len(cfg.Ingest.WatchDirs) == 0 {
		logger.Error("WATCH_DIRS env var is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := store.NewDocumentRepository(db, logger)

	blobs, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to init blob storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	vocab, err := tags.Load(ctx, repo, logger)
	if err != nil {
		logger.Error("failed to load tag vocabulary", "error", err)
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
	queue := ingest.NewQueue(svc, logger,
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithQueueSize(cfg.Ingest.QueueSize),
		ingest.WithProcessTimeout(cfg.Ingest.Timeout),
	)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       cfg.Ingest.WatchDirs,
		InitialScan: true,
		Debounce:    cfg.Ingest.WatchDebounce,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "roots", cfg.Ingest.WatchDirs, "error", err)
		os.Exit(1)
	}

	logger.Info("docfoliod started",
		"watch_dirs", cfg.Ingest.WatchDirs,
		"workers", cfg.Ingest.Workers,
		"db", cfg.Database.Path,
		"storage", cfg.Storage.Backend,
		"model", cfg.LLM.Model,
	)

	for events != nil || watchErrs != nil {
		select {
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			_ = queue.Enqueue(ctx, ingest.Job{Path: path})
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			queue.Shutdown(shutdownCtx)
			cancel()
			return
		}
	}
}
