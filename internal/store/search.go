package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
	"github.com/filefolio/docfolio/internal/entity"
)

const defaultSearchLimit = 100

// Filter narrows a document listing. All set fields are combined with AND;
// Tags matches documents carrying any of the listed tags.
type Filter struct {
	Search   string
	Category constants.Category
	Tags     []string
	From     time.Time
	To       time.Time
	OrderBy  string
	Desc     bool
	Limit    int
	Offset   int
}

var orderColumns = map[string]string{
	"uploaded_at":       "d.uploaded_at",
	"original_filename": "d.original_filename",
	"category":          "d.category",
	"file_size":         "d.file_size",
}

func (r *documentRepository) Search(ctx context.Context, f Filter) ([]*entity.Document, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT d.id, d.original_filename, d.derived_filename, d.category,
		d.extracted_text, d.text_source, d.derived_by, d.fingerprint, d.storage_key,
		d.file_size, d.uploaded_at FROM documents d`)

	// the fts5 MATCH operand must be the virtual table's own name, so the
	// join deliberately carries no alias
	searching := strings.TrimSpace(f.Search) != ""
	if searching {
		sb.WriteString(` JOIN documents_fts ON documents_fts.rowid = d.rowid`)
	}

	var conds []string
	if searching {
		conds = append(conds, "documents_fts MATCH ?")
		args = append(args, ftsQuery(f.Search))
	}
	if f.Category != "" {
		conds = append(conds, "d.category = ?")
		args = append(args, string(f.Category))
	}
	if len(f.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Tags)), ", ")
		conds = append(conds, fmt.Sprintf(
			"d.id IN (SELECT document_id FROM document_tags WHERE tag_name IN (%s))", placeholders))
		for _, t := range f.Tags {
			args = append(args, t)
		}
	}
	if !f.From.IsZero() {
		conds = append(conds, "d.uploaded_at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		conds = append(conds, "d.uploaded_at <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	sb.WriteString(" ORDER BY " + orderClause(f, searching))

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", common.ErrStorage, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", common.ErrStorage, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// release the connection before the tag lookup; the pool has one
	rows.Close()
	if err := attachTags(ctx, r.db, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func orderClause(f Filter, searching bool) string {
	col, ok := orderColumns[f.OrderBy]
	if !ok {
		if searching {
			// relevance first when the caller did not ask for a column
			return "rank, d.uploaded_at DESC"
		}
		return "d.uploaded_at DESC"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return col + " " + dir
}

// ftsQuery turns free text into a prefix match query, quoting each term so
// user input cannot inject fts5 operators.
func ftsQuery(raw string) string {
	terms := strings.Fields(raw)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"*`)
	}
	return strings.Join(quoted, " ")
}
