// Package vlm re-reads relevant PDF pages with a vision model. OCR output on
// scanned expertise reports is noisy; the vision pass recovers structure and
// numbering before defect extraction.
package vlm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/llm"
)

// CleanPrompt instructs the vision model to transcribe, not summarize.
const CleanPrompt = "Это страница технического отчёта о дефектах ремонта помещений. " +
	"Извлеки и приведи текст в аккуратную структуру, сохранив порядок, " +
	"пункты, нумерацию и каждую техническую деталь. " +
	"Ничего не сокращай и не опускай, не добавляй комментариев. " +
	"Ответом верни только очищенный текст страницы."

// CleanedPage is one page after the vision pass.
type CleanedPage struct {
	PageNumber  int    `json:"page_number"`
	CleanedText string `json:"cleaned_text"`
}

// Result is a completed cleaning call. ProcessedPages always equals
// len(Pages); Pages are in ascending page order.
type Result struct {
	SourcePDF      string        `json:"source_pdf"`
	ProcessedPages int           `json:"processed_pages"`
	Pages          []CleanedPage `json:"cleaned_pages"`
	Usage          llm.Usage     `json:"-"`
}

// Rasterizer renders one PDF page to PNG bytes. The OCR extractor provides
// this.
type Rasterizer interface {
	RasterizePage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

type Cleaner struct {
	vision llm.VisionCompleter
	raster Rasterizer
	logger *slog.Logger
}

func NewCleaner(vision llm.VisionCompleter, raster Rasterizer, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{vision: vision, raster: raster, logger: logger}
}

// CleanPages processes the listed pages strictly in ascending order,
// deduplicated. An empty page set is an input error, not an empty result. A
// failure on any page aborts the remaining ones.
func (c *Cleaner) CleanPages(ctx context.Context, pdfPath string, pageNumbers []int) (Result, error) {
	if len(pageNumbers) == 0 {
		return Result{}, common.NewAppError(common.StageVLM, "no page numbers provided for cleaning", common.ErrInvalidInput)
	}

	ordered := dedupSorted(pageNumbers)
	c.logger.Info("vlm.clean.start",
		"pdf", pdfPath,
		"pages", len(ordered),
		"requested", len(pageNumbers),
		"numbers", ordered,
	)

	var usage llm.Usage
	pages := make([]CleanedPage, 0, len(ordered))
	for _, num := range ordered {
		png, err := c.raster.RasterizePage(ctx, pdfPath, num)
		if err != nil {
			return Result{}, common.NewAppError(common.StageVLM, fmt.Sprintf("render page %d", num), err)
		}

		res, err := c.vision.ChatVision(ctx, fmt.Sprintf("%s\nСтраница: %d.", CleanPrompt, num), png)
		usage.Add(res.Usage)
		if err != nil {
			return Result{}, common.ClassifyError(common.StageVLM, fmt.Sprintf("clean page %d", num), err)
		}

		pages = append(pages, CleanedPage{PageNumber: num, CleanedText: res.Content})
		c.logger.Info("vlm.page.ok", "page", num, "chars", len(res.Content))
	}

	c.logger.Info("vlm.clean.ok", "pages", len(pages), "total_tokens", usage.TotalTokens)
	return Result{
		SourcePDF:      pdfPath,
		ProcessedPages: len(pages),
		Pages:          pages,
		Usage:          usage,
	}, nil
}

// Texts returns the cleaned page texts in page order.
func (r Result) Texts() []string {
	out := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		out = append(out, p.CleanedText)
	}
	return out
}

func dedupSorted(nums []int) []int {
	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
