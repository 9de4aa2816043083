// Package ocr converts local PDF files into structured documents. Text-layer
// pages are read directly; scanned pages are rasterized with pdftoppm and
// recognized with tesseract, both driven through a stubable Runner.
package ocr

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/document"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language string // tesseract language, default "rus"
	DPI      int    // rasterization DPI for scanned pages, default 300
	MaxPages int    // 0 = no limit

	// Pages whose text layer yields fewer trimmed characters than this are
	// treated as scanned and go through OCR.
	MinTextLayerChars int
}

// Result is one completed extraction.
type Result struct {
	Document document.Document
	Method   string // "pdf-text" | "pdf-ocr" | "pdf-mixed"
	Duration time.Duration
	Warnings []string
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
	if cfg.Language == "" {
		cfg.Language = "rus"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextLayerChars <= 0 {
		cfg.MinTextLayerChars = 32
	}
	return &Extractor{cfg: cfg, runner: NewExecRunner(logger), logger: logger}
}

// WithRunner swaps the command runner. Used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract converts the PDF at path into a Document. displayName is the
// user-visible filename carried into the result, which may differ from the
// on-disk name.
func (e *Extractor) Extract(ctx context.Context, path, displayName string) (Result, error) {
	start := time.Now()
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	e.logger.Info("ocr.extract.start", "path", path, "filename", displayName)

	res, err := e.extractPDF(ctx, path, displayName)
	if err != nil {
		return Result{}, common.NewAppError(common.StageOCR, "ocr extraction", err)
	}
	res.Duration = time.Since(start)

	e.logger.Info("ocr.extract.ok",
		"filename", displayName,
		"pages", res.Document.TotalPages,
		"method", res.Method,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
