package relevance

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/document"
	"github.com/stroyassist/defectbot/internal/llm"
)

// PageScore is one scored page.
type PageScore struct {
	PageNumber int
	Route      string
	Score      float32
}

// Selection is a completed page selection. Pages holds the qualifying page
// numbers in descending score order, truncated to the top limit; the
// pipeline re-sorts them ascending before the downstream stages. Scores keeps
// every scored page for logging and diagnostics.
type Selection struct {
	Pages  []int
	Scores []PageScore
	Usage  llm.Usage
}

// Selector runs the batched page scoring loop.
type Selector struct {
	router    *Router
	threshold float32
	topLimit  int
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewSelector(router *Router, cfg common.SemanticConfig, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}
	topLimit := cfg.TopPagesLimit
	if topLimit <= 0 {
		topLimit = 10
	}
	delay := cfg.BatchDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &Selector{
		router:    router,
		threshold: float32(cfg.ScoreThreshold),
		topLimit:  topLimit,
		batchSize: batchSize,
		// Paces batches against the scoring engine. Burst 1 lets the first
		// batch start immediately.
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  logger,
	}
}

// SelectPages scores every non-empty page and returns the qualifying subset.
// Zero qualifying pages is a valid empty result, not an error. Any engine
// failure aborts the whole selection; partial results are never returned.
func (s *Selector) SelectPages(ctx context.Context, doc document.Document) (Selection, error) {
	s.logger.Info("relevance.select.start", "filename", doc.Filename, "pages", doc.TotalPages)

	var scores []PageScore
	var usage llm.Usage

	pages := doc.Pages
	for start := 0; start < len(pages); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pages) {
			end = len(pages)
		}
		if start > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				return Selection{}, common.NewAppError(common.StageSemantic, "batch delay interrupted", err)
			}
		}
		s.logger.Info("relevance.batch.start", "from", start+1, "to", end, "total", len(pages))

		for _, page := range pages[start:end] {
			if strings.TrimSpace(page.FullText) == "" {
				s.logger.Warn("relevance.page.empty", "page", page.PageNumber)
				continue
			}

			match, u, err := s.router.Classify(ctx, page.FullText)
			usage.Add(u)
			if err != nil {
				return Selection{}, common.ClassifyError(common.StageSemantic, "page scoring", err)
			}

			scores = append(scores, PageScore{
				PageNumber: page.PageNumber,
				Route:      match.Route,
				Score:      match.Score,
			})
			s.logger.Info("relevance.page.scored",
				"page", page.PageNumber,
				"route", match.Route,
				"score", match.Score,
				"matched", match.Kind == MatchRoute,
			)
		}
	}

	selected := s.filterAndRank(scores)
	s.logger.Info("relevance.select.ok",
		"scored", len(scores),
		"selected", len(selected),
		"pages", selected,
		"total_tokens", usage.TotalTokens,
	)
	return Selection{Pages: selected, Scores: scores, Usage: usage}, nil
}

// filterAndRank keeps pages at or above the threshold, orders them by
// descending score, and cuts the list at the top limit. Similarity rank is
// only used for the cutoff.
func (s *Selector) filterAndRank(scores []PageScore) []int {
	qualifying := make([]PageScore, 0, len(scores))
	for _, ps := range scores {
		if ps.Score >= s.threshold {
			qualifying = append(qualifying, ps)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].Score > qualifying[j].Score
	})
	if len(qualifying) > s.topLimit {
		qualifying = qualifying[:s.topLimit]
	}

	pages := make([]int, 0, len(qualifying))
	for _, ps := range qualifying {
		pages = append(pages, ps.PageNumber)
	}
	return pages
}
