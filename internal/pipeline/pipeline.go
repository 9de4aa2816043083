// Package pipeline orchestrates the defect-analysis workflow: download, OCR,
// relevance selection, vision cleaning, defect extraction and report. A Run
// is a strictly-ordered state machine; every stage consumes the previous
// stage's output and runs exactly once.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/defects"
	"github.com/stroyassist/defectbot/internal/document"
	"github.com/stroyassist/defectbot/internal/drive"
	"github.com/stroyassist/defectbot/internal/extract"
	"github.com/stroyassist/defectbot/internal/llm"
	"github.com/stroyassist/defectbot/internal/observability/metrics"
	"github.com/stroyassist/defectbot/internal/ocr"
	"github.com/stroyassist/defectbot/internal/relevance"
	"github.com/stroyassist/defectbot/internal/vlm"
	"github.com/stroyassist/defectbot/internal/workspace"
)

// Stage dependencies. Interfaces keep the orchestrator testable; the concrete
// implementations live in their stage packages.
type (
	Fetcher interface {
		Fetch(ctx context.Context, rawURL, dir, fileID string) (drive.FetchResult, error)
	}
	OCRExtractor interface {
		Extract(ctx context.Context, path, displayName string) (ocr.Result, error)
	}
	PageSelector interface {
		SelectPages(ctx context.Context, doc document.Document) (relevance.Selection, error)
	}
	PageCleaner interface {
		CleanPages(ctx context.Context, pdfPath string, pageNumbers []int) (vlm.Result, error)
	}
	DefectAnalyzer interface {
		Analyze(ctx context.Context, texts []string) (extract.Analysis, error)
	}
	ReportWriter interface {
		WriteReport(records []defects.Defect, path string) (string, error)
	}
)

// Deps bundles everything a Run needs. Metrics may be nil (the one-shot CLI
// runs without a registry); Validator defaults to ValidatePDF.
type Deps struct {
	Fetcher   Fetcher
	OCR       OCRExtractor
	Selector  PageSelector
	Cleaner   PageCleaner
	Analyzer  DefectAnalyzer
	Reporter  ReportWriter
	Validator PDFValidator
	Pricing   llm.Pricing
	Metrics   *metrics.PipelineMetrics
	Logger    *slog.Logger
}

// Orchestrator mints runs. Each run owns a fresh directory under resultDir.
type Orchestrator struct {
	deps      Deps
	resultDir string
}

func NewOrchestrator(deps Deps, resultDir string) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Pricing == nil {
		deps.Pricing = llm.DefaultPricing()
	}
	if deps.Validator == nil {
		deps.Validator = ValidatePDF
	}
	if resultDir == "" {
		resultDir = "result"
	}
	return &Orchestrator{deps: deps, resultDir: resultDir}
}

// NewRun allocates the run directory and returns a Run in the created state.
// source is the raw user input (a Drive link, or a display name for direct
// uploads).
func (o *Orchestrator) NewRun(source string) (*Run, error) {
	dir, err := workspace.Allocate(o.resultDir)
	if err != nil {
		return nil, common.NewAppError(common.StagePipeline, "allocate run directory", err)
	}

	r := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		Dir:       dir,
		deps:      o.deps,
		state:     StateCreated,
		startedAt: now(),
	}
	r.logger = o.deps.Logger.With("run_id", r.ID)
	if o.deps.Metrics != nil {
		o.deps.Metrics.StartRun()
	}
	r.logger.Info("pipeline.run.created", "dir", dir, "source", source)
	return r, nil
}
