package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// Open opens (creating if needed) the SQLite database and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 30 * time.Second
	}
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	logger.Info("opening database", "path", cfg.Path)
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc/sqlite connections don't share in-memory or WAL state well
	// across a large pool; one writer at a time is plenty here.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database ready", "path", cfg.Path)
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id                TEXT PRIMARY KEY,
			original_filename TEXT NOT NULL,
			derived_filename  TEXT,
			category          TEXT NOT NULL DEFAULT 'Uncategorized',
			extracted_text    TEXT NOT NULL DEFAULT '',
			text_source       TEXT NOT NULL DEFAULT 'none',
			derived_by        TEXT NOT NULL DEFAULT 'rules',
			fingerprint       TEXT NOT NULL,
			storage_key       TEXT NOT NULL,
			tags_text         TEXT NOT NULL DEFAULT '',
			file_size         INTEGER NOT NULL DEFAULT 0,
			uploaded_at       TEXT NOT NULL
		)`,

		// fast duplicate detection; also the serializing guarantee for
		// concurrent uploads of the same bytes
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint)`,

		`CREATE TABLE IF NOT EXISTS tags (
			name TEXT PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS document_tags (
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			tag_name    TEXT NOT NULL REFERENCES tags(name),
			PRIMARY KEY (document_id, tag_name)
		)`,

		// full-text search mirror, kept in sync by triggers
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			original_filename,
			derived_filename,
			tags,
			category,
			content
		)`,

		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, original_filename, derived_filename, tags, category, content)
			VALUES (new.rowid, new.original_filename, coalesce(new.derived_filename, ''), new.tags_text, new.category, new.extracted_text);
		END`,

		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			DELETE FROM documents_fts WHERE rowid = old.rowid;
		END`,

		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
			DELETE FROM documents_fts WHERE rowid = old.rowid;
			INSERT INTO documents_fts(rowid, original_filename, derived_filename, tags, category, content)
			VALUES (new.rowid, new.original_filename, coalesce(new.derived_filename, ''), new.tags_text, new.category, new.extracted_text);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
