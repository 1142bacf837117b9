package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/filefolio/docfolio/internal/store"
)

// Service produces XLSX bytes for document listings.
type Service struct {
	repo   store.DocumentRepository
	logger *slog.Logger
}

func NewService(repo store.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportXLSX returns an XLSX workbook listing every document matched by the
// filter. The filter's limit is ignored; exports always cover the full
// match set.
func (s *Service) ExportXLSX(ctx context.Context, f store.Filter) ([]byte, error) {
	start := time.Now()

	f.Limit = 1 << 20
	f.Offset = 0
	docs, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	wb := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := wb.GetSheetIndex(sheet); index == -1 {
		if _, err := wb.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := wb.GetSheetIndex(sheet)
	wb.SetActiveSheet(activeIndex)
	defaultIndex, _ := wb.GetSheetIndex("Sheet1")
	if defaultIndex != -1 {
		_ = wb.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Uploaded",
		"Category",
		"Original Filename",
		"Derived Filename",
		"Tags",
		"Text Source",
		"Derived By",
		"Size (bytes)",
		"Fingerprint",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = wb.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = wb.SetCellValue(sheet, cell, v)
		}

		derived := ""
		if d.DerivedFilename != nil {
			derived = *d.DerivedFilename
		}

		write(1, d.UploadedAt.Format("2006-01-02 15:04"))
		write(2, string(d.Category))
		write(3, d.OriginalFilename)
		write(4, derived)
		write(5, strings.Join(d.Tags, ", "))
		write(6, string(d.TextSource))
		write(7, string(d.DerivedBy))
		write(8, d.FileSize)
		write(9, d.Fingerprint)
		row++
	}

	_ = wb.SetColWidth(sheet, "A", "A", 18)
	_ = wb.SetColWidth(sheet, "B", "B", 16)
	_ = wb.SetColWidth(sheet, "C", "D", 36)
	_ = wb.SetColWidth(sheet, "E", "E", 32)
	_ = wb.SetColWidth(sheet, "F", "G", 12)
	_ = wb.SetColWidth(sheet, "H", "H", 14)
	_ = wb.SetColWidth(sheet, "I", "I", 66)

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
