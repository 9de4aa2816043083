package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/document"
	"github.com/stroyassist/defectbot/internal/drive"
	"github.com/stroyassist/defectbot/internal/workspace"
)

// DownloadDocument resolves the source link and fetches the PDF into the run
// directory. The file must validate as a PDF before the run advances.
func (r *Run) DownloadDocument(ctx context.Context) (*DownloadInfo, error) {
	if err := r.require(StateCreated, "document already acquired for this run"); err != nil {
		return nil, err
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("download", start, stageErr) }()

	fileID, ok := drive.ExtractFileID(r.Source)
	if !ok {
		stageErr = common.NewAppError(common.StageSource, "unrecognized document link", common.ErrNotRecognized)
		return nil, r.fail(stageErr)
	}

	res, err := r.deps.Fetcher.Fetch(ctx, drive.DirectDownloadURL(fileID), r.Dir, fileID)
	if err != nil {
		stageErr = err
		return nil, r.fail(err)
	}

	pageCount, err := r.deps.Validator(res.Path)
	if err != nil {
		stageErr = common.NewAppError(common.StageDownload, "downloaded file is not a readable pdf", err)
		return nil, r.fail(stageErr)
	}

	info := &DownloadInfo{
		Filename:  res.Filename,
		Size:      res.Size,
		Path:      res.Path,
		PageCount: pageCount,
		Duration:  time.Since(start),
	}
	r.Download = info
	r.state = StateDownloaded
	r.logger.Info("pipeline.download.ok",
		"filename", info.Filename,
		"size_bytes", info.Size,
		"pdf_pages", info.PageCount,
		"elapsed_ms", info.Duration.Milliseconds(),
	)
	return info, nil
}

// AdoptLocalPDF takes a file that already exists locally (a chat upload) as
// the run's source document. The file is copied into the run directory; the
// caller keeps ownership of the original.
func (r *Run) AdoptLocalPDF(path, displayName string) (*DownloadInfo, error) {
	if err := r.require(StateCreated, "document already acquired for this run"); err != nil {
		return nil, err
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("download", start, stageErr) }()

	localName := workspace.SafeFilename(displayName, "document_upload")
	dest := filepath.Join(r.Dir, localName)
	size, err := copyFile(path, dest)
	if err != nil {
		stageErr = common.NewAppError(common.StageDownload, "copy uploaded file", err)
		return nil, r.fail(stageErr)
	}

	pageCount, err := r.deps.Validator(dest)
	if err != nil {
		stageErr = common.NewAppError(common.StageDownload, "uploaded file is not a readable pdf", err)
		return nil, r.fail(stageErr)
	}

	info := &DownloadInfo{
		Filename:  localName,
		Size:      size,
		Path:      dest,
		PageCount: pageCount,
		Duration:  time.Since(start),
	}
	r.Download = info
	r.state = StateDownloaded
	r.logger.Info("pipeline.adopt.ok",
		"filename", info.Filename,
		"size_bytes", info.Size,
		"pdf_pages", info.PageCount,
	)
	return info, nil
}

// RunOCR extracts the document structure and persists the JSON and plain-text
// artifacts next to the PDF.
func (r *Run) RunOCR(ctx context.Context) (*OCRInfo, error) {
	if err := r.require(StateDownloaded, "no downloaded PDF for OCR"); err != nil {
		return nil, err
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("ocr", start, stageErr) }()

	res, err := r.deps.OCR.Extract(ctx, r.Download.Path, r.Download.Filename)
	if err != nil {
		stageErr = err
		return nil, r.fail(err)
	}

	jsonPath, txtPath, err := document.Save(res.Document, r.Dir)
	if err != nil {
		stageErr = common.NewAppError(common.StageOCR, "persist ocr artifacts", err)
		return nil, r.fail(stageErr)
	}

	info := &OCRInfo{
		Document: res.Document,
		Method:   res.Method,
		JSONPath: jsonPath,
		TxtPath:  txtPath,
		Duration: time.Since(start),
	}
	r.OCR = info
	r.state = StateOCRDone
	r.logger.Info("pipeline.ocr.ok",
		"pages", res.Document.TotalPages,
		"method", res.Method,
		"elapsed_ms", info.Duration.Milliseconds(),
	)
	return info, nil
}

// RunSemanticAnalysis scores the document's pages and keeps the qualifying
// set, deduplicated and ascending. An empty set is a valid result; the caller
// decides whether to halt.
func (r *Run) RunSemanticAnalysis(ctx context.Context) (*RelevanceInfo, error) {
	if err := r.require(StateOCRDone, "no OCR data for relevance selection"); err != nil {
		return nil, err
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("relevance", start, stageErr) }()

	sel, err := r.deps.Selector.SelectPages(ctx, r.OCR.Document)
	if err != nil {
		stageErr = err
		return nil, r.fail(err)
	}

	info := &RelevanceInfo{
		Pages:    sortedUnique(sel.Pages),
		Scores:   sel.Scores,
		Usage:    sel.Usage,
		Duration: time.Since(start),
	}
	r.Relevance = info
	r.state = StateRelevanceDone
	r.logger.Info("pipeline.relevance.ok",
		"selected", len(info.Pages),
		"pages", info.Pages,
		"elapsed_ms", info.Duration.Milliseconds(),
	)
	return info, nil
}

// RunVLMCleaning cleans the selected pages through the vision model.
func (r *Run) RunVLMCleaning(ctx context.Context) (*CleaningInfo, error) {
	if err := r.require(StateRelevanceDone, "no relevance selection for vision cleaning"); err != nil {
		return nil, err
	}
	if len(r.Relevance.Pages) == 0 {
		return nil, common.PreconditionError("no relevant pages for vision cleaning")
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("cleaning", start, stageErr) }()

	res, err := r.deps.Cleaner.CleanPages(ctx, r.Download.Path, r.Relevance.Pages)
	if err != nil {
		stageErr = err
		return nil, r.fail(err)
	}

	r.cleaned = res
	info := &CleaningInfo{
		ProcessedPages: res.ProcessedPages,
		Duration:       time.Since(start),
	}
	r.Cleaning = info
	r.state = StateCleaned
	r.logger.Info("pipeline.cleaning.ok",
		"processed_pages", info.ProcessedPages,
		"elapsed_ms", info.Duration.Milliseconds(),
	)
	return info, nil
}

// RetryCleaning reruns the cleaning stage after it failed. At most one retry
// per run; any other failed stage cannot be retried.
func (r *Run) RetryCleaning(ctx context.Context) (*CleaningInfo, error) {
	if r.state != StateFailed || r.failedStage != common.StageVLM || r.cleaningRetried {
		return nil, common.PreconditionError("no failed cleaning stage to retry")
	}
	r.cleaningRetried = true
	r.state = StateRelevanceDone
	r.logger.Info("pipeline.cleaning.retry")
	return r.RunVLMCleaning(ctx)
}

// RunAnalysisAndReport extracts defect records from the cleaned texts and
// writes the spreadsheet. Zero extracted records still produces a report.
func (r *Run) RunAnalysisAndReport(ctx context.Context) (*ReportInfo, error) {
	if err := r.require(StateCleaned, "no cleaned pages for defect analysis"); err != nil {
		return nil, err
	}
	start := now()
	var stageErr error
	defer func() { r.observeStage("report", start, stageErr) }()

	analysis, err := r.deps.Analyzer.Analyze(ctx, r.cleaned.Texts())
	if err != nil {
		stageErr = err
		return nil, r.fail(err)
	}

	reportPath := filepath.Join(r.Dir, fmt.Sprintf("defect_analysis_%s.xlsx", now().Format("150405")))
	path, err := r.deps.Reporter.WriteReport(analysis.Defects, reportPath)
	if err != nil {
		stageErr = common.NewAppError(common.StageExtraction, "write report", err)
		return nil, r.fail(stageErr)
	}

	cost, known := r.deps.Pricing.Cost(analysis.Model, analysis.Usage)
	info := &ReportInfo{
		Path:      path,
		Defects:   len(analysis.Defects),
		Model:     analysis.Model,
		Usage:     analysis.Usage,
		Cost:      cost,
		CostKnown: known,
		Duration:  time.Since(start),
	}
	r.Report = info
	r.state = StateReported
	r.logger.Info("pipeline.report.ok",
		"path", path,
		"defects", info.Defects,
		"total_tokens", info.Usage.TotalTokens,
		"cost_known", known,
		"elapsed_ms", info.Duration.Milliseconds(),
	)
	return info, nil
}

// sortedUnique returns a fresh ascending slice without duplicates.
func sortedUnique(nums []int) []int {
	if len(nums) == 0 {
		return nil
	}
	out := append([]int(nil), nums...)
	sort.Ints(out)
	dst := out[:1]
	for _, n := range out[1:] {
		if n != dst[len(dst)-1] {
			dst = append(dst, n)
		}
	}
	return dst
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return size, err
}
