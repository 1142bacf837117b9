package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/entity"
)

// DocumentUpdate is a partial update: nil fields are left untouched.
// Extracted text, fingerprint and the stored file are not updatable.
type DocumentUpdate struct {
	Category        *constants.Category
	Tags            *[]string
	DerivedFilename *string
}

type DocumentRepository interface {
	Insert(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByFingerprint(ctx context.Context, fp string) (*entity.Document, error)
	Update(ctx context.Context, id uuid.UUID, upd DocumentUpdate) (*entity.Document, error)
	// Delete removes the record and, mid-transaction, asks removeFile to
	// drop the backing blob; a removeFile failure rolls the record back.
	Delete(ctx context.Context, id uuid.UUID, removeFile func(storageKey string) error) error
	Search(ctx context.Context, f Filter) ([]*entity.Document, error)
	Categories(ctx context.Context) ([]string, error)

	// tag vocabulary persistence (tags.Repository)
	AllTags(ctx context.Context) ([]string, error)
	EnsureTags(ctx context.Context, names []string) error
}

type documentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewDocumentRepository(db *sql.DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{db: db, logger: logger}
}

// insertColumns includes tags_text, the denormalized FTS mirror input.
// Reads go through documentColumns and load tags from document_tags, since
// splitting tags_text would corrupt tags that contain spaces.
const insertColumns = `id, original_filename, derived_filename, category, extracted_text,
	text_source, derived_by, fingerprint, storage_key, tags_text, file_size, uploaded_at`

const documentColumns = `id, original_filename, derived_filename, category, extracted_text,
	text_source, derived_by, fingerprint, storage_key, file_size, uploaded_at`

func (r *documentRepository) Insert(ctx context.Context, doc *entity.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureTagsTx(ctx, tx, doc.Tags); err != nil {
		return fmt.Errorf("%w: ensure tags: %v", common.ErrStorage, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO documents (`+insertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID.String(),
		doc.OriginalFilename,
		doc.DerivedFilename,
		string(doc.Category),
		doc.ExtractedText,
		string(doc.TextSource),
		string(doc.DerivedBy),
		doc.Fingerprint,
		doc.StorageKey,
		strings.Join(doc.Tags, " "),
		doc.FileSize,
		doc.UploadedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isFingerprintConflict(err) {
			// lost the check-then-insert race; surface the winner. The pool
			// holds a single connection and the tx owns it, so the lookup
			// must go through the tx.
			if existing, gerr := getByFingerprint(ctx, tx, doc.Fingerprint); gerr == nil {
				return &common.DuplicateError{
					DocumentID:       existing.ID.String(),
					OriginalFilename: existing.OriginalFilename,
					UploadedAt:       existing.UploadedAt,
				}
			}
			return common.ErrDuplicate
		}
		return fmt.Errorf("%w: insert document: %v", common.ErrStorage, err)
	}

	for _, t := range doc.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO document_tags (document_id, tag_name) VALUES (?, ?)`,
			doc.ID.String(), t); err != nil {
			return fmt.Errorf("%w: link tag: %v", common.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrStorage, err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return getByID(ctx, r.db, id)
}

func (r *documentRepository) GetByFingerprint(ctx context.Context, fp string) (*entity.Document, error) {
	return getByFingerprint(ctx, r.db, fp)
}

// querier is satisfied by both *sql.DB and *sql.Tx so lookups can run
// inside an open transaction when that transaction holds the only
// connection.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getByID(ctx context.Context, q querier, id uuid.UUID) (*entity.Document, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id.String())
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, q, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func getByFingerprint(ctx context.Context, q querier, fp string) (*entity.Document, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE fingerprint = ?`, fp)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, q, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// attachTags loads each document's tags from document_tags in insertion
// order. tags_text is FTS input only; splitting it would break tags that
// contain spaces.
func attachTags(ctx context.Context, q querier, docs ...*entity.Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Document, len(docs))
	placeholders := make([]string, 0, len(docs))
	args := make([]any, 0, len(docs))
	for _, d := range docs {
		byID[d.ID.String()] = d
		placeholders = append(placeholders, "?")
		args = append(args, d.ID.String())
	}

	rows, err := q.QueryContext(ctx,
		`SELECT document_id, tag_name FROM document_tags
		WHERE document_id IN (`+strings.Join(placeholders, ", ")+`) ORDER BY rowid`,
		args...)
	if err != nil {
		return fmt.Errorf("%w: load tags: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID, tag string
		if err := rows.Scan(&docID, &tag); err != nil {
			return fmt.Errorf("%w: scan tag: %v", common.ErrStorage, err)
		}
		if d, ok := byID[docID]; ok {
			d.Tags = append(d.Tags, tag)
		}
	}
	return rows.Err()
}

func (r *documentRepository) Update(ctx context.Context, id uuid.UUID, upd DocumentUpdate) (*entity.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", common.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	var sets []string
	var args []any
	if upd.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*upd.Category))
	}
	if upd.DerivedFilename != nil {
		sets = append(sets, "derived_filename = ?")
		args = append(args, *upd.DerivedFilename)
	}
	if upd.Tags != nil {
		if err := ensureTagsTx(ctx, tx, *upd.Tags); err != nil {
			return nil, fmt.Errorf("%w: ensure tags: %v", common.ErrStorage, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM document_tags WHERE document_id = ?`, id.String()); err != nil {
			return nil, fmt.Errorf("%w: unlink tags: %v", common.ErrStorage, err)
		}
		for _, t := range *upd.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO document_tags (document_id, tag_name) VALUES (?, ?)`,
				id.String(), t); err != nil {
				return nil, fmt.Errorf("%w: link tag: %v", common.ErrStorage, err)
			}
		}
		sets = append(sets, "tags_text = ?")
		args = append(args, strings.Join(*upd.Tags, " "))
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", common.ErrInvalidInput)
	}

	args = append(args, id.String())
	res, err := tx.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: update document: %v", common.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", common.ErrStorage, err)
	}
	return r.GetByID(ctx, id)
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID, removeFile func(storageKey string) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	var storageKey string
	err = tx.QueryRowContext(ctx,
		`SELECT storage_key FROM documents WHERE id = ?`, id.String()).Scan(&storageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: lookup document: %v", common.ErrStorage, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("%w: delete document: %v", common.ErrStorage, err)
	}

	// blob removal happens before commit so a storage failure leaves the
	// record in place rather than orphaning the row or the file
	if removeFile != nil {
		if err := removeFile(storageKey); err != nil {
			r.logger.Error("store.delete.blob_failed", "id", id, "storage_key", storageKey, "error", err)
			return fmt.Errorf("%w: remove stored file: %v", common.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrStorage, err)
	}
	return nil
}

func (r *documentRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM documents ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("%w: categories: %v", common.ErrStorage, err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (r *documentRepository) AllTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: tags: %v", common.ErrStorage, err)
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (r *documentRepository) EnsureTags(ctx context.Context, names []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := ensureTagsTx(ctx, tx, names); err != nil {
		return fmt.Errorf("%w: ensure tags: %v", common.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrStorage, err)
	}
	return nil
}

// ensureTagsTx is the resolve-or-create anchor: INSERT OR IGNORE makes
// concurrent creates of the same tag converge on one row.
func ensureTagsTx(ctx context.Context, tx *sql.Tx, names []string) error {
	for _, n := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (name) VALUES (?)`, n); err != nil {
			return err
		}
	}
	return nil
}

func isFingerprintConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: documents.fingerprint")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc        entity.Document
		idStr      string
		derived    sql.NullString
		category   string
		textSource string
		derivedBy  string
		uploadedAt string
	)
	err := row.Scan(
		&idStr,
		&doc.OriginalFilename,
		&derived,
		&category,
		&doc.ExtractedText,
		&textSource,
		&derivedBy,
		&doc.Fingerprint,
		&doc.StorageKey,
		&doc.FileSize,
		&uploadedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if derived.Valid {
		doc.DerivedFilename = &derived.String
	}
	doc.Category = constants.Category(category)
	doc.TextSource = constants.TextSource(textSource)
	doc.DerivedBy = constants.DerivedBy(derivedBy)
	doc.UploadedAt, err = time.Parse(time.RFC3339, uploadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	return &doc, nil
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
