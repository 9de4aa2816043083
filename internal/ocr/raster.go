package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// renderAll rasterizes the whole file: pdftoppm -r <dpi> -png <pdf> <prefix>.
// Returns page number -> png path; the caller must invoke cleanup after the
// images have been recognized.
func (e *Extractor) renderAll(ctx context.Context, path string) (map[int]string, func(), []string, error) {
	tmpDir, err := os.MkdirTemp("", "defectbot-pp-*")
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	prefix := filepath.Join(tmpDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return nil, nil, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		cleanup()
		return nil, nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	rendered := make(map[int]string, len(matches))
	var warns []string
	for i, img := range matches {
		num, ok := pageNumberFromRender(img)
		if !ok {
			// pdftoppm always suffixes the page number; fall back to the
			// position just in case.
			num = i + 1
			warns = append(warns, fmt.Sprintf("unparseable render name %q", filepath.Base(img)))
		}
		if e.cfg.MaxPages > 0 && num > e.cfg.MaxPages {
			continue
		}
		rendered[num] = img
	}
	return rendered, cleanup, warns, nil
}

// renderPage rasterizes a single page: pdftoppm -f <n> -l <n>.
func (e *Extractor) renderPage(ctx context.Context, path string, page int) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "defectbot-pp-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	prefix := filepath.Join(tmpDir, "page")
	n := strconv.Itoa(page)
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-f", n, "-l", n, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		cleanup()
		return "", nil, fmt.Errorf("page %d not rendered", page)
	}
	return matches[0], cleanup, nil
}

// recognize runs tesseract over one rendered page image.
func (e *Extractor) recognize(ctx context.Context, imgPath string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, imgPath, "stdout", "-l", e.cfg.Language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// RasterizePage renders one page to PNG bytes. Other stages use this for
// vision-model input.
func (e *Extractor) RasterizePage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	img, cleanup, err := e.renderPage(ctx, pdfPath, page)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return os.ReadFile(img)
}

// pageNumberFromRender parses the page number out of "<prefix>-NN.png".
func pageNumberFromRender(path string) (int, bool) {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return 0, false
	}
	num, err := strconv.Atoi(base[idx+1:])
	if err != nil || num <= 0 {
		return 0, false
	}
	return num, true
}
