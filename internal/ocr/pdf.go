package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stroyassist/defectbot/internal/document"
)

// extractPDF builds the Document. Pages whose text layer is usable are read
// directly; the rest are rasterized and recognized. Pages that end up with no
// non-empty fragments are dropped from the result entirely.
func (e *Extractor) extractPDF(ctx context.Context, path, displayName string) (Result, error) {
	var warns []string

	layer, total, layerErr := readTextLayer(path)
	if layerErr != nil {
		warns = append(warns, layerErr.Error())
	}

	pageTexts := make(map[int]string)
	var scanned []int
	for num := 1; num <= total; num++ {
		if e.cfg.MaxPages > 0 && num > e.cfg.MaxPages {
			break
		}
		text := layer[num]
		if len(strings.TrimSpace(text)) >= e.cfg.MinTextLayerChars {
			pageTexts[num] = text
		} else {
			scanned = append(scanned, num)
		}
	}

	var method string
	switch {
	case layerErr != nil || total == 0:
		// No readable structure at all: render the whole file and recognize
		// every produced image.
		method = "pdf-ocr"
		rendered, cleanup, w, err := e.renderAll(ctx, path)
		warns = append(warns, w...)
		if err != nil {
			return Result{}, err
		}
		defer cleanup()
		for num, img := range rendered {
			text, err := e.recognize(ctx, img)
			if err != nil {
				return Result{}, fmt.Errorf("page %d: %w", num, err)
			}
			pageTexts[num] = text
		}
	case len(pageTexts) == 0:
		method = "pdf-ocr"
		if err := e.recognizeScanned(ctx, path, scanned, pageTexts); err != nil {
			return Result{}, err
		}
	case len(scanned) > 0:
		method = "pdf-mixed"
		if err := e.recognizeScanned(ctx, path, scanned, pageTexts); err != nil {
			return Result{}, err
		}
	default:
		method = "pdf-text"
	}

	nums := make([]int, 0, len(pageTexts))
	for num := range pageTexts {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	var pages []document.Page
	for _, num := range nums {
		elements := splitFragments(pageTexts[num])
		if len(elements) == 0 {
			e.logger.Debug("ocr.page.empty", "page", num)
			continue
		}
		pages = append(pages, document.NewPage(num, elements))
		e.logger.Debug("ocr.page.ok", "page", num, "elements", len(elements))
	}

	return Result{
		Document: document.NewDocument(displayName, pages),
		Method:   method,
		Warnings: warns,
	}, nil
}

// recognizeScanned renders and recognizes the listed pages one at a time,
// filling pageTexts in place.
func (e *Extractor) recognizeScanned(ctx context.Context, path string, pages []int, pageTexts map[int]string) error {
	for _, num := range pages {
		img, cleanup, err := e.renderPage(ctx, path, num)
		if err != nil {
			return fmt.Errorf("render page %d: %w", num, err)
		}
		text, err := e.recognize(ctx, img)
		cleanup()
		if err != nil {
			return fmt.Errorf("page %d: %w", num, err)
		}
		pageTexts[num] = text
	}
	return nil
}
