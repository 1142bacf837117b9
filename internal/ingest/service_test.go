package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/extract"
	"github.com/filefolio/docfolio/internal/metadata"
	"github.com/filefolio/docfolio/internal/storage"
	"github.com/filefolio/docfolio/internal/store"
	"github.com/filefolio/docfolio/internal/tags"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(context.Context, []byte) (extract.Result, error) {
	if s.err != nil {
		return extract.Result{}, s.err
	}
	src := constants.TextSourceNative
	if s.text == "" {
		src = constants.TextSourceNone
	}
	return extract.Result{Text: s.text, Source: src}, nil
}

type failingStrategy struct{}

func (failingStrategy) Name() string { return "llm" }
func (failingStrategy) Derive(context.Context, metadata.Request) (metadata.Result, error) {
	return metadata.Result{}, errors.New("model unavailable")
}

func newTestService(t *testing.T, extractor Extractor) (*Service, store.DocumentRepository) {
	t.Helper()
	logger := slog.Default()

	db, err := store.Open(context.Background(), store.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := store.NewDocumentRepository(db, logger)

	blobs, err := storage.NewFS(t.TempDir(), logger)
	require.NoError(t, err)

	vocab, err := tags.Load(context.Background(), repo, logger)
	require.NoError(t, err)

	// derivation falls through to rules when the model strategy fails
	deriver := metadata.NewDeriver(vocab, logger, failingStrategy{}, metadata.NewRuleStrategy())

	return NewService(repo, blobs, extractor, deriver, vocab, logger), repo
}

func TestIngestEndToEnd(t *testing.T) {
	svc, repo := newTestService(t, &stubExtractor{
		text: "INVOICE 2024-0042\nAcme GmbH\nTotal due: 312.50 EUR",
	})
	ctx := context.Background()

	doc, err := svc.Ingest(ctx, "scan_001.pdf", []byte("%PDF-1.4 fake invoice"))
	require.NoError(t, err)

	assert.Equal(t, constants.Finance, doc.Category)
	assert.Contains(t, doc.Tags, "invoice")
	assert.Equal(t, constants.DerivedByRules, doc.DerivedBy)
	assert.Equal(t, constants.TextSourceNative, doc.TextSource)
	require.NotNil(t, doc.DerivedFilename)
	assert.NotEqual(t, "scan_001.pdf", *doc.DerivedFilename)

	// the record round-trips through the store
	stored, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Fingerprint, stored.Fingerprint)
	assert.Equal(t, doc.Tags, stored.Tags)
}

func TestIngestDuplicateRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubExtractor{text: "Receipt for coffee 4.50"})
	ctx := context.Background()

	content := []byte("%PDF-1.4 same bytes")
	first, err := svc.Ingest(ctx, "a.pdf", content)
	require.NoError(t, err)

	// different name, identical bytes
	_, err = svc.Ingest(ctx, "b.pdf", content)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicate)

	var dup *common.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID.String(), dup.DocumentID)
	assert.Equal(t, "a.pdf", dup.OriginalFilename)
}

func TestIngestRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, &stubExtractor{text: "hello"})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "notes.txt", []byte("plain text"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Ingest(ctx, "empty.pdf", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestIngestUnreadablePDF(t *testing.T) {
	svc, _ := newTestService(t, &stubExtractor{err: common.ErrUnreadablePDF})
	_, err := svc.Ingest(context.Background(), "broken.pdf", []byte("%PDF-garbage"))
	assert.ErrorIs(t, err, common.ErrUnreadablePDF)
}

func TestIngestEmptyTextStillCategorized(t *testing.T) {
	svc, _ := newTestService(t, &stubExtractor{text: ""})

	doc, err := svc.Ingest(context.Background(), "blank_scan.pdf", []byte("%PDF-1.4 blank"))
	require.NoError(t, err)
	assert.Equal(t, constants.TextSourceNone, doc.TextSource)
	assert.Equal(t, constants.Other, doc.Category)
	assert.Contains(t, doc.Tags, "document")
}

func TestIngestDirectory(t *testing.T) {
	svc, _ := newTestService(t, &stubExtractor{text: "Invoice from Acme"})
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.pdf"), []byte("%PDF one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.pdf"), []byte("%PDF two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "copy_of_one.pdf"), []byte("%PDF one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.txt"), []byte("not a pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.pdf"), []byte("%PDF hidden"), 0o644))

	results, stats, err := svc.IngestDirectory(ctx, root, true, 2)
	require.NoError(t, err)

	assert.EqualValues(t, 5, stats.Scanned)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 2, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.EqualValues(t, 0, stats.Failed)
	assert.Len(t, results, 3)
}

func TestQueueProcessesJobs(t *testing.T) {
	svc, repo := newTestService(t, &stubExtractor{text: "Lease agreement"})
	ctx := context.Background()

	dir := t.TempDir()
	paths := make([]string, 0, 3)
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("%PDF "+name), 0o644))
		paths = append(paths, p)
	}

	q := NewQueue(svc, slog.Default(), WithWorkers(2), WithQueueSize(8))
	for _, p := range paths {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p}))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	docs, err := repo.Search(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}
