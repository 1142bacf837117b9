package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/entity"
	"github.com/filefolio/docfolio/internal/extract"
	"github.com/filefolio/docfolio/internal/fingerprint"
	"github.com/filefolio/docfolio/internal/metadata"
	"github.com/filefolio/docfolio/internal/storage"
	"github.com/filefolio/docfolio/internal/store"
	"github.com/filefolio/docfolio/internal/tags"
)

// Extractor pulls text out of a PDF.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (extract.Result, error)
}

// Deriver turns extracted text into organizational metadata.
type Deriver interface {
	Derive(ctx context.Context, req metadata.Request) (metadata.Result, error)
}

// Service runs the full pipeline for one uploaded document: dedup check,
// text extraction, metadata derivation, blob save and record insert.
type Service struct {
	repo      store.DocumentRepository
	blobs     storage.BlobStore
	extractor Extractor
	deriver   Deriver
	vocab     *tags.Vocabulary
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo store.DocumentRepository, blobs storage.BlobStore, extractor Extractor, deriver Deriver, vocab *tags.Vocabulary, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		blobs:     blobs,
		extractor: extractor,
		deriver:   deriver,
		vocab:     vocab,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest processes one document given its original filename and raw bytes.
// A byte-identical re-upload returns a *common.DuplicateError naming the
// original record; nothing is written in that case.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte) (*entity.Document, error) {
	start := s.now()

	if len(content) == 0 {
		return nil, fmt.Errorf("%w: empty file %q", common.ErrInvalidInput, filename)
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", common.ErrInvalidInput, ext)
	}

	fp := fingerprint.Compute(content)
	if existing, err := s.repo.GetByFingerprint(ctx, fp.String()); err == nil {
		s.logger.Info("ingest.duplicate", "filename", filename, "original", existing.OriginalFilename, "fingerprint", fp)
		return nil, &common.DuplicateError{
			DocumentID:       existing.ID.String(),
			OriginalFilename: existing.OriginalFilename,
			UploadedAt:       existing.UploadedAt,
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	extracted, err := s.extractor.Extract(ctx, content)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now().UTC().Truncate(time.Second)
	derived, err := s.deriver.Derive(ctx, metadata.Request{
		Text:       extracted.Text,
		Filename:   filename,
		UploadedAt: uploadedAt,
	})
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		ID:               uuid.New(),
		OriginalFilename: filepath.Base(filename),
		Category:         derived.Category,
		Tags:             derived.Tags,
		ExtractedText:    extracted.Text,
		TextSource:       extracted.Source,
		DerivedBy:        derived.DerivedBy,
		Fingerprint:      fp.String(),
		FileSize:         int64(len(content)),
		UploadedAt:       uploadedAt,
	}
	doc.StorageKey = doc.ID.String() + ".pdf"
	if derived.SuggestedFilename != "" {
		name := derived.SuggestedFilename
		doc.DerivedFilename = &name
	}

	if err := s.blobs.Save(ctx, doc.StorageKey, content); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		// drop the orphaned blob; the record is the source of truth
		if derr := s.blobs.Delete(ctx, doc.StorageKey); derr != nil {
			s.logger.Error("ingest.blob_cleanup_failed", "storage_key", doc.StorageKey, "error", derr)
		}
		return nil, err
	}

	if err := s.vocab.Commit(ctx, doc.Tags); err != nil {
		// tag rows already exist via the insert tx; only the cache is stale
		s.logger.Warn("ingest.vocab_commit_failed", "error", err)
	}

	s.logger.Info("ingest.ok",
		"id", doc.ID,
		"filename", doc.OriginalFilename,
		"category", doc.Category,
		"tags", doc.Tags,
		"text_source", extracted.Source,
		"derived_by", doc.DerivedBy,
		"duration", s.now().Sub(start),
	)
	return doc, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (s *Service) IngestFile(ctx context.Context, path string) (*entity.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrInvalidInput, path, err)
	}
	return s.Ingest(ctx, filepath.Base(path), content)
}
