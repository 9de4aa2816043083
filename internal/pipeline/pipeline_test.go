package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
)

const driveLink = "https://drive.google.com/file/d/FILE123/view?usp=sharing"

func sampleDoc() document.Document {
	pages := []document.Page{
		document.NewPage(1, []document.TextElement{
			document.NewTextElement("Title", "ЗАКЛЮЧЕНИЕ ЭКСПЕРТА"),
		}),
		document.NewPage(2, []document.TextElement{
			document.NewTextElement("NarrativeText", "На полу комнаты зазоры между ламелями ламината."),
		}),
		document.NewPage(3, []document.TextElement{
			document.NewTextElement("NarrativeText", "Трещины в штукатурном слое стены коридора."),
		}),
	}
	return document.NewDocument("отчет.pdf", pages)
}

type fakeFetcher struct {
	err     error
	lastURL string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, dir, fileID string) (drive.FetchResult, error) {
	f.lastURL = rawURL
	if f.err != nil {
		return drive.FetchResult{}, f.err
	}
	path := filepath.Join(dir, "отчет.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		return drive.FetchResult{}, err
	}
	return drive.FetchResult{Filename: "отчет.pdf", Size: 13, Path: path}, nil
}

type fakeOCR struct {
	err error
}

func (f *fakeOCR) Extract(_ context.Context, _, displayName string) (ocr.Result, error) {
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	doc := sampleDoc()
	doc.Filename = displayName
	return ocr.Result{Document: doc, Method: "pdf-text"}, nil
}

type fakeSelector struct {
	pages []int
	err   error
}

func (f *fakeSelector) SelectPages(_ context.Context, _ document.Document) (relevance.Selection, error) {
	if f.err != nil {
		return relevance.Selection{}, f.err
	}
	return relevance.Selection{
		Pages: f.pages,
		Usage: llm.Usage{PromptTokens: 30, TotalTokens: 30},
	}, nil
}

type fakeCleaner struct {
	gotPages []int
	err      error
}

func (f *fakeCleaner) CleanPages(_ context.Context, pdfPath string, pageNumbers []int) (vlm.Result, error) {
	f.gotPages = append([]int(nil), pageNumbers...)
	if f.err != nil {
		return vlm.Result{}, f.err
	}
	pages := make([]vlm.CleanedPage, 0, len(pageNumbers))
	for _, n := range pageNumbers {
		pages = append(pages, vlm.CleanedPage{PageNumber: n, CleanedText: "чистый текст"})
	}
	return vlm.Result{SourcePDF: pdfPath, ProcessedPages: len(pages), Pages: pages}, nil
}

type fakeAnalyzer struct {
	defects  []defects.Defect
	err      error
	gotTexts []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, texts []string) (extract.Analysis, error) {
	f.gotTexts = texts
	if f.err != nil {
		return extract.Analysis{}, f.err
	}
	return extract.Analysis{
		Defects: f.defects,
		Model:   "gpt-4.1-mini",
		Usage:   llm.Usage{PromptTokens: 10000, CompletionTokens: 1000, TotalTokens: 11000},
	}, nil
}

type fakeReporter struct {
	gotRecords []defects.Defect
	gotPath    string
}

func (f *fakeReporter) WriteReport(records []defects.Defect, path string) (string, error) {
	f.gotRecords = records
	f.gotPath = path
	return path, nil
}

type fixture struct {
	fetcher  *fakeFetcher
	ocr      *fakeOCR
	selector *fakeSelector
	cleaner  *fakeCleaner
	analyzer *fakeAnalyzer
	reporter *fakeReporter
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:  &fakeFetcher{},
		ocr:      &fakeOCR{},
		selector: &fakeSelector{pages: []int{2, 3}},
		cleaner:  &fakeCleaner{},
		analyzer: &fakeAnalyzer{defects: []defects.Defect{{
			SourceText: "зазоры между ламелями",
			Room:       "Комната",
			Location:   "Пол",
			Defect:     "laminate_board_gaps",
			WorkType:   "Отделочные работы",
		}}},
		reporter: &fakeReporter{},
	}
	f.orch = NewOrchestrator(Deps{
		Fetcher:   f.fetcher,
		OCR:       f.ocr,
		Selector:  f.selector,
		Cleaner:   f.cleaner,
		Analyzer:  f.analyzer,
		Reporter:  f.reporter,
		Validator: func(string) (int, error) { return 3, nil },
		Metrics:   metrics.NewPipelineMetrics("test"),
	}, t.TempDir())
	return f
}

func TestRun_FullFlowCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()
	assert.Equal(t, StateCreated, run.State())
	assert.DirExists(t, run.Dir)

	dl, err := run.DownloadDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDownloaded, run.State())
	assert.Equal(t, "отчет.pdf", dl.Filename)
	assert.Equal(t, 3, dl.PageCount)
	assert.Equal(t, drive.DirectDownloadURL("FILE123"), f.fetcher.lastURL)

	ocrInfo, err := run.RunOCR(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOCRDone, run.State())
	assert.Equal(t, 3, ocrInfo.Document.TotalPages)
	assert.FileExists(t, ocrInfo.JSONPath)
	assert.FileExists(t, ocrInfo.TxtPath)

	rel, err := run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateRelevanceDone, run.State())
	assert.Equal(t, []int{2, 3}, rel.Pages)

	cl, err := run.RunVLMCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCleaned, run.State())
	assert.Equal(t, 2, cl.ProcessedPages)
	assert.Equal(t, []int{2, 3}, f.cleaner.gotPages)

	rep, err := run.RunAnalysisAndReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateReported, run.State())
	assert.Equal(t, 1, rep.Defects)
	assert.True(t, rep.CostKnown)
	assert.InDelta(t, 0.0021, rep.Cost, 1e-9)
	assert.Equal(t, []string{"чистый текст", "чистый текст"}, f.analyzer.gotTexts)
	assert.True(t, strings.HasPrefix(filepath.Base(rep.Path), "defect_analysis_"))
	assert.Equal(t, run.Dir, filepath.Dir(rep.Path))

	assert.Equal(t, metrics.OutcomeCompleted, run.Outcome())
	assert.False(t, run.NoFindings())
	assert.GreaterOrEqual(t, run.TotalDuration(), time.Duration(0))
}

func TestRun_UnrecognizedLinkFails(t *testing.T) {
	f := newFixture(t)

	run, err := f.orch.NewRun("https://example.com/not-drive")
	require.NoError(t, err)
	defer run.Finish()

	_, err = run.DownloadDocument(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotRecognized)
	assert.Equal(t, common.StageSource, common.StageOf(err))
	assert.Equal(t, StateFailed, run.State())
	assert.Equal(t, metrics.OutcomeFailed, run.Outcome())
}

func TestRun_DownloadFailureBlocksOCR(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = common.NewAppError(common.StageDownload, "fetch document: HTTP 404", nil)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	_, err = run.DownloadDocument(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.StageDownload, common.StageOf(err))
	assert.Equal(t, StateFailed, run.State())

	// Run directory exists but holds no document.
	entries, readErr := os.ReadDir(run.Dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)

	_, err = run.RunOCR(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestRun_InvalidPDFFailsDownload(t *testing.T) {
	f := newFixture(t)

	orch := NewOrchestrator(Deps{
		Fetcher:   f.fetcher,
		OCR:       f.ocr,
		Selector:  f.selector,
		Cleaner:   f.cleaner,
		Analyzer:  f.analyzer,
		Reporter:  f.reporter,
		Validator: func(string) (int, error) { return 0, errors.New("xref table missing") },
	}, t.TempDir())

	run, err := orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	_, err = run.DownloadDocument(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.StageDownload, common.StageOf(err))
	assert.Contains(t, err.Error(), "not a readable pdf")
	assert.Equal(t, StateFailed, run.State())
}

func TestRun_NoRelevantPagesHaltsNormally(t *testing.T) {
	f := newFixture(t)
	f.selector.pages = nil

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)

	rel, err := run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)
	assert.Empty(t, rel.Pages)
	assert.Equal(t, StateRelevanceDone, run.State())
	assert.True(t, run.NoRelevantPages())
	assert.Equal(t, metrics.OutcomeNoRelevantPages, run.Outcome())

	_, err = run.RunVLMCleaning(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
	assert.Contains(t, err.Error(), "no relevant pages")
}

func TestRun_CleaningBeforeRelevanceIsPreconditionError(t *testing.T) {
	f := newFixture(t)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)

	_, err = run.RunVLMCleaning(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
	assert.Contains(t, err.Error(), "no relevance selection")
	// Precondition violations do not poison the run.
	assert.Equal(t, StateOCRDone, run.State())
}

func TestRun_SelectionNormalizedAscending(t *testing.T) {
	f := newFixture(t)
	f.selector.pages = []int{3, 2, 3, 1}

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)

	rel, err := run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, rel.Pages)

	_, err = run.RunVLMCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, f.cleaner.gotPages)
}

func TestRun_ZeroDefectsIsNoFindings(t *testing.T) {
	f := newFixture(t)
	f.analyzer.defects = nil

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)
	_, err = run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)
	_, err = run.RunVLMCleaning(ctx)
	require.NoError(t, err)

	rep, err := run.RunAnalysisAndReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Defects)
	assert.Equal(t, StateReported, run.State())
	assert.True(t, run.NoFindings())
	assert.Equal(t, metrics.OutcomeNoFindings, run.Outcome())
	// The report is still written, header row only.
	assert.Empty(t, f.reporter.gotRecords)
	assert.NotEmpty(t, f.reporter.gotPath)
}

func TestRun_StagesRunExactlyOnce(t *testing.T) {
	f := newFixture(t)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)

	_, err = run.DownloadDocument(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
	assert.Equal(t, StateDownloaded, run.State())
}

func TestRun_TransientCleaningFailurePropagatesFlag(t *testing.T) {
	f := newFixture(t)
	f.cleaner.err = common.NewTransientError(common.StageVLM, "clean page 2", nil)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)
	_, err = run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)

	_, err = run.RunVLMCleaning(ctx)
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
	assert.Equal(t, common.StageVLM, common.StageOf(err))
	assert.Equal(t, StateFailed, run.State())
}

func TestRun_RetryCleaningAfterTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.cleaner.err = common.NewTransientError(common.StageVLM, "clean page 2", nil)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.NoError(t, err)
	_, err = run.RunSemanticAnalysis(ctx)
	require.NoError(t, err)
	_, err = run.RunVLMCleaning(ctx)
	require.Error(t, err)

	f.cleaner.err = nil
	cl, err := run.RetryCleaning(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cl.ProcessedPages)
	assert.Equal(t, StateCleaned, run.State())

	// A second retry needs a new failure, and even then only one is allowed.
	_, err = run.RetryCleaning(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestRun_RetryCleaningOnlyAppliesToCleaningFailures(t *testing.T) {
	f := newFixture(t)
	f.ocr.err = common.NewAppError(common.StageOCR, "tesseract exited 1", nil)

	run, err := f.orch.NewRun(driveLink)
	require.NoError(t, err)
	defer run.Finish()

	ctx := context.Background()
	_, err = run.DownloadDocument(ctx)
	require.NoError(t, err)
	_, err = run.RunOCR(ctx)
	require.Error(t, err)

	_, err = run.RetryCleaning(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPrecondition)
}

func TestRun_AdoptLocalPDF(t *testing.T) {
	f := newFixture(t)

	src := filepath.Join(t.TempDir(), "upload.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 upload"), 0o644))

	run, err := f.orch.NewRun("прямая загрузка")
	require.NoError(t, err)
	defer run.Finish()

	info, err := run.AdoptLocalPDF(src, "акт приемки.pdf")
	require.NoError(t, err)
	assert.Equal(t, StateDownloaded, run.State())
	assert.Equal(t, "актприемки.pdf", info.Filename)
	assert.Equal(t, run.Dir, filepath.Dir(info.Path))
	assert.FileExists(t, info.Path)
	assert.EqualValues(t, 15, info.Size)

	// The original stays where it was; only a copy enters the run dir.
	assert.FileExists(t, src)
}

func TestSortedUnique(t *testing.T) {
	assert.Nil(t, sortedUnique(nil))
	assert.Equal(t, []int{1, 2, 3}, sortedUnique([]int{3, 1, 2, 3, 1}))
	assert.Equal(t, []int{7}, sortedUnique([]int{7, 7, 7}))
}
