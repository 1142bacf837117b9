package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/filefolio/docfolio/constants"
)

// pdfOCR rasterizes the document and runs OCR over each page, once per
// configured language, keeping the best-scoring run.
func (e *Extractor) pdfOCR(ctx context.Context, content []byte) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "df-pp-*")
	if err != nil {
		return Result{}, err
	}
	defer func(path string) {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", rmErr)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return Result{}, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return Result{}, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("pdftoppm produced no images")
	}

	var best Result
	bestScore := float32(-1)
	var warns []string
	for _, lang := range e.cfg.Languages {
		res, score, lErr := e.ocrPages(ctx, matches, lang)
		if lErr != nil {
			warns = append(warns, fmt.Sprintf("lang %s: %v", lang, lErr))
			continue
		}
		e.logger.Debug("extract.ocr.lang", "lang", lang, "score", score, "chars", len(res.Text))
		if score > bestScore {
			best, bestScore = res, score
		}
	}
	if bestScore < 0 {
		return Result{}, fmt.Errorf("ocr produced no text: %s", strings.Join(warns, "; "))
	}
	best.Warnings = append(best.Warnings, warns...)
	return best, nil
}

// ocrPages OCRs every rendered page in one language and scores the run by
// blending mean tesseract word confidence with a content heuristic.
func (e *Extractor) ocrPages(ctx context.Context, images []string, lang string) (Result, float32, error) {
	var b strings.Builder
	var confs []float32
	var warns []string
	failures := 0

	for _, img := range images {
		txt, w, err := e.tesseractOCR(ctx, img, lang)
		if err != nil {
			warns = append(warns, err.Error())
			confs = append(confs, 0)
			failures++
			continue
		}
		warns = append(warns, w...)
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)

		conf, _, confErr := e.tesseractTSVConfidence(ctx, img, lang)
		if confErr != nil {
			conf = 0
		}
		confs = append(confs, conf)
	}
	if failures == len(images) {
		return Result{}, 0, fmt.Errorf("all %d pages failed: %s", failures, strings.Join(warns, "; "))
	}

	text := Normalize(b.String())
	score := blendConfidence(mean(confs), heuristicConfidence(text))
	return Result{
		Text:           text,
		Source:         constants.TextSourceOCR,
		Pages:          len(images),
		PageConfidence: confs,
		Language:       lang,
		Warnings:       warns,
	}, score, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path, lang string) (string, []string, error) {
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path, lang string) (float32, []string, error) {
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	// conf column is the last; header line includes "conf"
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-1]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, perr := parseFloat(confStr); perr == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	m := sum / n // 0..100
	return float32(m / 100.0), nil, nil
}
