package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/entity"
)

func openTestRepo(t *testing.T) DocumentRepository {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "docfolio_test.db"),
		BusyTimeout: time.Second,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDocumentRepository(db, slog.Default())
}

func sampleDocument(fp string) *entity.Document {
	derived := "finance_invoice_20240312.pdf"
	return &entity.Document{
		ID:               uuid.New(),
		OriginalFilename: "scan_001.pdf",
		DerivedFilename:  &derived,
		Category:         constants.Finance,
		Tags:             []string{"invoice", "2024"},
		ExtractedText:    "INVOICE 2024-0042 Acme GmbH total due 312.50 EUR",
		TextSource:       constants.TextSourceNative,
		DerivedBy:        constants.DerivedByRules,
		Fingerprint:      fp,
		StorageKey:       uuid.NewString() + ".pdf",
		FileSize:         2048,
		UploadedAt:       time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC),
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-insert-get")
	require.NoError(t, repo.Insert(ctx, doc))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.OriginalFilename, got.OriginalFilename)
	assert.Equal(t, constants.Finance, got.Category)
	assert.Equal(t, []string{"invoice", "2024"}, got.Tags)
	assert.Equal(t, doc.UploadedAt, got.UploadedAt)
	require.NotNil(t, got.DerivedFilename)
	assert.Equal(t, *doc.DerivedFilename, *got.DerivedFilename)

	byFP, err := repo.GetByFingerprint(ctx, doc.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byFP.ID)
}

func TestInsertDuplicateFingerprint(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := sampleDocument("fp-dup")
	require.NoError(t, repo.Insert(ctx, first))

	second := sampleDocument("fp-dup")
	second.OriginalFilename = "copy_of_scan.pdf"
	err := repo.Insert(ctx, second)
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrDuplicate)

	var dup *common.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID.String(), dup.DocumentID)
	assert.Equal(t, "scan_001.pdf", dup.OriginalFilename)

	// only the original is on record
	got, err := repo.GetByFingerprint(ctx, "fp-dup")
	require.NoError(t, err)
	assert.Equal(t, "scan_001.pdf", got.OriginalFilename)
}

func TestMultiWordTagsRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-multiword")
	doc.Tags = []string{"home office", "invoice"}
	require.NoError(t, repo.Insert(ctx, doc))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"home office", "invoice"}, got.Tags)

	// the tag filter and the FTS mirror both see the full tag
	byTag, err := repo.Search(ctx, Filter{Tags: []string{"home office"}})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, []string{"home office", "invoice"}, byTag[0].Tags)

	byText, err := repo.Search(ctx, Filter{Search: "office"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, doc.ID, byText[0].ID)
}

func TestGetMissing(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.GetByFingerprint(context.Background(), "no-such-fp")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdatePartial(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-update")
	require.NoError(t, repo.Insert(ctx, doc))

	legal := constants.Legal
	newTags := []string{"contract", "2024"}
	updated, err := repo.Update(ctx, doc.ID, DocumentUpdate{
		Category: &legal,
		Tags:     &newTags,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.Legal, updated.Category)
	assert.Equal(t, newTags, updated.Tags)

	// untouched fields survive
	assert.Equal(t, doc.ExtractedText, updated.ExtractedText)
	assert.Equal(t, doc.Fingerprint, updated.Fingerprint)
	require.NotNil(t, updated.DerivedFilename)
	assert.Equal(t, *doc.DerivedFilename, *updated.DerivedFilename)
}

func TestUpdateMissing(t *testing.T) {
	repo := openTestRepo(t)
	legal := constants.Legal
	_, err := repo.Update(context.Background(), uuid.New(), DocumentUpdate{Category: &legal})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-delete")
	require.NoError(t, repo.Insert(ctx, doc))

	var removedKey string
	require.NoError(t, repo.Delete(ctx, doc.ID, func(key string) error {
		removedKey = key
		return nil
	}))
	assert.Equal(t, doc.StorageKey, removedKey)

	_, err := repo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteRollsBackWhenBlobRemovalFails(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-delete-fail")
	require.NoError(t, repo.Insert(ctx, doc))

	err := repo.Delete(ctx, doc.ID, func(string) error {
		return errors.New("disk unplugged")
	})
	require.Error(t, err)

	// record survives the failed removal
	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}

func TestSearchFilters(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	invoice := sampleDocument("fp-s1")
	require.NoError(t, repo.Insert(ctx, invoice))

	contract := sampleDocument("fp-s2")
	contract.ID = uuid.New()
	contract.OriginalFilename = "lease_agreement.pdf"
	contract.Category = constants.Legal
	contract.Tags = []string{"contract", "housing"}
	contract.ExtractedText = "Lease agreement between landlord and tenant"
	contract.StorageKey = uuid.NewString() + ".pdf"
	contract.UploadedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, contract))

	t.Run("by category", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Category: constants.Legal})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, contract.ID, got[0].ID)
	})

	t.Run("by text", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Search: "acme"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, invoice.ID, got[0].ID)
	})

	t.Run("text prefix", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Search: "agree"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, contract.ID, got[0].ID)
	})

	t.Run("by tag", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Tags: []string{"housing"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, contract.ID, got[0].ID)
	})

	t.Run("text and category combined", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Search: "agreement", Category: constants.Finance})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("date range", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{
			From: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, contract.ID, got[0].ID)
	})

	t.Run("default order newest first", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, contract.ID, got[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := repo.Search(ctx, Filter{Search: "zzzqqq"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSearchReflectsUpdates(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	doc := sampleDocument("fp-fts-update")
	require.NoError(t, repo.Insert(ctx, doc))

	newTags := []string{"archived"}
	_, err := repo.Update(ctx, doc.ID, DocumentUpdate{Tags: &newTags})
	require.NoError(t, err)

	got, err := repo.Search(ctx, Filter{Search: "archived"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = repo.Search(ctx, Filter{Search: "invoice"})
	require.NoError(t, err)
	// old tag no longer indexed; "INVOICE" in the body still matches
	require.Len(t, got, 1)
}

func TestCategoriesAndTags(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, sampleDocument("fp-c1")))
	other := sampleDocument("fp-c2")
	other.ID = uuid.New()
	other.Category = constants.Tax
	other.Tags = []string{"tax", "2023"}
	other.StorageKey = uuid.NewString() + ".pdf"
	require.NoError(t, repo.Insert(ctx, other))

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Finance", "Tax"}, cats)

	require.NoError(t, repo.EnsureTags(ctx, []string{"manual", "invoice"}))
	all, err := repo.AllTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023", "2024", "invoice", "manual", "tax"}, all)
}
