package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Languages    []string // tesseract languages in priority order, default ["eng", "deu"]
	DPI          int      // rasterization DPI for scanned PDFs, default 300
	MaxPages     int      // page cap for both paths, default 20
	MinTextChars int      // below this the text layer counts as scanned, default 50

	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// Result is the transient outcome of one extraction. It is consumed by the
// metadata deriver; only the text and source survive into the document record.
type Result struct {
	Text           string
	Source         constants.TextSource
	Pages          int
	PageConfidence []float32 // per rendered page, OCR path only
	Language       string
	Duration       time.Duration
	Warnings       []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng", "deu"}
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 50
	}
	return &Extractor{cfg: cfg, runner: newExecRunner(logger), logger: logger}
}

// Extract turns raw PDF bytes into text. The text layer is tried first;
// when it yields less than MinTextChars the pages are rasterized and OCRed.
// It fails only when the bytes are not a parseable PDF for either path.
func (e *Extractor) Extract(ctx context.Context, content []byte) (Result, error) {
	start := time.Now()

	native, nativeErr := e.nativeText(content)
	if nativeErr == nil && len(strings.TrimSpace(native.Text)) >= e.cfg.MinTextChars {
		native.Duration = time.Since(start)
		e.logger.Debug("extract.native.ok", "pages", native.Pages, "chars", len(native.Text))
		return native, nil
	}
	if nativeErr != nil {
		e.logger.Warn("extract.native.failed", "error", nativeErr)
	} else {
		e.logger.Info("extract.native.thin", "chars", len(strings.TrimSpace(native.Text)),
			"threshold", e.cfg.MinTextChars)
	}

	ocr, ocrErr := e.pdfOCR(ctx, content)
	if ocrErr != nil {
		if nativeErr != nil {
			// Neither the parser nor the rasterizer could make sense of the bytes.
			return Result{}, fmt.Errorf("%w: %v", common.ErrUnreadablePDF, nativeErr)
		}
		native.Warnings = append(native.Warnings, ocrErr.Error())
		native.Duration = time.Since(start)
		return e.finalize(native), nil
	}

	if len(strings.TrimSpace(ocr.Text)) > len(strings.TrimSpace(native.Text)) {
		ocr.Duration = time.Since(start)
		e.logger.Info("extract.ocr.ok", "pages", ocr.Pages, "chars", len(ocr.Text), "lang", ocr.Language)
		return e.finalize(ocr), nil
	}
	native.Warnings = append(native.Warnings, ocr.Warnings...)
	native.Duration = time.Since(start)
	return e.finalize(native), nil
}

// finalize marks results whose text came out empty on both paths.
func (e *Extractor) finalize(res Result) Result {
	if strings.TrimSpace(res.Text) == "" {
		res.Text = ""
		res.Source = constants.TextSourceNone
	}
	return res
}
