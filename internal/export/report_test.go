package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stroyassist/defectbot/internal/defects"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(Sheet)
	require.NoError(t, err)
	return rows
}

func TestWriteReport_RowsAndDisplayNames(t *testing.T) {
	records := []defects.Defect{
		{
			SourceText: "На полу комнаты зазоры между ламелями ламината до 3 мм",
			Room:       "Комната",
			Location:   "Пол",
			Defect:     "laminate_board_gaps",
			WorkType:   "Отделочные работы",
		},
		{
			SourceText: "Трещина в штукатурном слое стены коридора",
			Room:       "Коридор",
			Location:   "Стена",
			Defect:     "Трещины в штукатурке",
			WorkType:   "Штукатурные работы",
		},
	}

	path := filepath.Join(t.TempDir(), "reports", "defect_analysis_120000.xlsx")
	got, err := NewWriter(nil).WriteReport(records, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"Текст из АПО/экспертизы",
		"Помещение",
		"Локализация",
		"Дефект",
		"Наименование работы",
	}, rows[0])

	// Reference key resolved to its display name.
	wantName, _ := defects.DisplayName("laminate_board_gaps")
	assert.Equal(t, wantName, rows[1][3])
	assert.Equal(t, "Комната", rows[1][1])
	// Free-text defect passes through untouched.
	assert.Equal(t, "Трещины в штукатурке", rows[2][3])
	assert.Equal(t, "Штукатурные работы", rows[2][4])
}

func TestWriteReport_NoFindingsWritesHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defect_analysis_120000.xlsx")
	_, err := NewWriter(nil).WriteReport(nil, path)
	require.NoError(t, err)

	rows := readRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, "Дефект", rows[0][3])
}

func TestWriteReport_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	w := NewWriter(nil)

	_, err := w.WriteReport([]defects.Defect{{SourceText: "a", Room: "Комната", Location: "Пол", Defect: "x", WorkType: "y"}}, path)
	require.NoError(t, err)
	_, err = w.WriteReport(nil, path)
	require.NoError(t, err)

	rows := readRows(t, path)
	assert.Len(t, rows, 1)
}
