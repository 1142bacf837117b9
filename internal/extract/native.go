package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/filefolio/docfolio/constants"
)

// nativeText reads the PDF text layer page by page. Pages that fail to
// decode are skipped; a document whose pages all fail still succeeds with
// empty text.
func (e *Extractor) nativeText(content []byte) (res Result, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	if len(content) == 0 {
		return Result{}, fmt.Errorf("empty input")
	}

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	pages := r.NumPage()
	limit := pages
	if limit > e.cfg.MaxPages {
		limit = e.cfg.MaxPages
	}

	var b strings.Builder
	var warns []string
	for i := 1; i <= limit; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i, perr))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return Result{
		Text:     Normalize(b.String()),
		Source:   constants.TextSourceNative,
		Pages:    pages,
		Warnings: warns,
	}, nil
}
