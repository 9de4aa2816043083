// Package export writes the defect analysis spreadsheet.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stroyassist/defectbot/internal/defects"
)

// Sheet is the single worksheet name.
const Sheet = "Анализ дефектов"

// Column order is fixed; consumers rely on it.
var headers = []string{
	"Текст из АПО/экспертизы",
	"Помещение",
	"Локализация",
	"Дефект",
	"Наименование работы",
}

type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteReport produces the spreadsheet at path, one row per record plus the
// header row. Reference keys in the defect field come out as their Russian
// display names. An existing file at path is overwritten; parent directories
// are created. Zero records still produce a header-only report.
func (w *Writer) WriteReport(records []defects.Defect, path string) (string, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), Sheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(Sheet, cell, v)
	}

	for i, h := range headers {
		write(i+1, 1, h)
	}
	for i, r := range records {
		row := i + 2
		write(1, row, r.SourceText)
		write(2, row, r.Room)
		write(3, row, r.Location)
		write(4, row, r.DefectDisplay())
		write(5, row, r.WorkType)
	}

	_ = f.SetColWidth(Sheet, "A", "A", 50)
	_ = f.SetColWidth(Sheet, "B", "B", 16)
	_ = f.SetColWidth(Sheet, "C", "C", 20)
	_ = f.SetColWidth(Sheet, "D", "D", 44)
	_ = f.SetColWidth(Sheet, "E", "E", 26)

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	w.logger.Info("export.xlsx.ok",
		"path", path,
		"rows", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}
