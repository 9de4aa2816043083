package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/document"
	"github.com/stroyassist/defectbot/internal/llm"
	"github.com/stroyassist/defectbot/internal/observability/metrics"
	"github.com/stroyassist/defectbot/internal/relevance"
	"github.com/stroyassist/defectbot/internal/vlm"
)

// State names the checkpoints of a run. Transitions move strictly forward;
// any stage failure lands in StateFailed.
type State string

const (
	StateCreated       State = "CREATED"
	StateDownloaded    State = "DOWNLOADED"
	StateOCRDone       State = "OCR_DONE"
	StateRelevanceDone State = "RELEVANCE_DONE"
	StateCleaned       State = "CLEANED"
	StateReported      State = "REPORTED"
	StateFailed        State = "FAILED"
)

var now = time.Now

// DownloadInfo describes the acquired source document.
type DownloadInfo struct {
	Filename  string
	Size      int64
	Path      string
	PageCount int
	Duration  time.Duration
}

// OCRInfo is the outcome of text extraction.
type OCRInfo struct {
	Document document.Document
	Method   string
	JSONPath string
	TxtPath  string
	Duration time.Duration
}

// RelevanceInfo holds the selected pages in ascending order plus the raw
// scores behind the selection.
type RelevanceInfo struct {
	Pages    []int
	Scores   []relevance.PageScore
	Usage    llm.Usage
	Duration time.Duration
}

// CleaningInfo summarizes the vision pass.
type CleaningInfo struct {
	ProcessedPages int
	Duration       time.Duration
}

// ReportInfo is the final stage outcome. CostKnown is false when the model is
// missing from the price table; Cost is then meaningless.
type ReportInfo struct {
	Path      string
	Defects   int
	Model     string
	Usage     llm.Usage
	Cost      float64
	CostKnown bool
	Duration  time.Duration
}

// Run is one pipeline execution. Not safe for concurrent use; a run lives on
// a single goroutine.
type Run struct {
	ID     string
	Source string
	Dir    string

	Download  *DownloadInfo
	OCR       *OCRInfo
	Relevance *RelevanceInfo
	Cleaning  *CleaningInfo
	Report    *ReportInfo

	deps      Deps
	logger    *slog.Logger
	state     State
	startedAt time.Time
	cleaned   vlm.Result

	failedStage     common.Stage
	cleaningRetried bool
	finishOnce      sync.Once
}

func (r *Run) State() State { return r.state }

// TotalDuration is the elapsed wall time since the run was created.
func (r *Run) TotalDuration() time.Duration {
	return time.Since(r.startedAt)
}

// NoRelevantPages reports the normal-halt condition: relevance ran and found
// nothing.
func (r *Run) NoRelevantPages() bool {
	return r.Relevance != nil && len(r.Relevance.Pages) == 0
}

// NoFindings reports a completed run whose analysis extracted zero defects.
func (r *Run) NoFindings() bool {
	return r.state == StateReported && r.Report != nil && r.Report.Defects == 0
}

// Outcome maps the final state onto the metrics outcome vocabulary.
func (r *Run) Outcome() string {
	switch {
	case r.state == StateReported && r.NoFindings():
		return metrics.OutcomeNoFindings
	case r.state == StateReported:
		return metrics.OutcomeCompleted
	case r.state == StateRelevanceDone && r.NoRelevantPages():
		return metrics.OutcomeNoRelevantPages
	default:
		return metrics.OutcomeFailed
	}
}

// Finish closes out the run's metrics and logs the outcome. Safe to defer;
// only the first call counts.
func (r *Run) Finish() {
	r.finishOnce.Do(func() {
		outcome := r.Outcome()
		total := r.TotalDuration()
		if r.deps.Metrics != nil {
			r.deps.Metrics.FinishRun(outcome, total)
		}
		r.logger.Info("pipeline.run.finished",
			"state", r.state,
			"outcome", outcome,
			"elapsed_ms", total.Milliseconds(),
		)
	})
}

// require guards a stage against out-of-order invocation. The message names
// the missing prerequisite; it surfaces to the caller unchanged.
func (r *Run) require(expected State, message string) error {
	if r.state != expected {
		return common.PreconditionError(message)
	}
	return nil
}

// fail marks the run failed and passes the error through.
func (r *Run) fail(err error) error {
	r.state = StateFailed
	r.failedStage = common.StageOf(err)
	r.logger.Error("pipeline.stage.failed",
		"stage", string(r.failedStage),
		"transient", common.IsTransient(err),
		"error", err,
	)
	return err
}

func (r *Run) observeStage(stage string, start time.Time, err error) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveStage(stage, time.Since(start), err)
	}
}
