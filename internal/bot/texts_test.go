package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stroyassist/defectbot/internal/common"
)

func TestDescribeFailure_MapsByStage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"source", common.NewAppError(common.StageSource, "unrecognized document link", nil), stageFailures[common.StageSource]},
		{"download", common.NewAppError(common.StageDownload, "HTTP 403", nil), stageFailures[common.StageDownload]},
		{"ocr", common.NewAppError(common.StageOCR, "tesseract exited 1", nil), stageFailures[common.StageOCR]},
		{"semantic", common.NewTransientError(common.StageSemantic, "rate limited", nil), stageFailures[common.StageSemantic]},
		{"vlm", common.NewAppError(common.StageVLM, "clean page 2", nil), stageFailures[common.StageVLM]},
		{"extraction", common.NewAppError(common.StageExtraction, "schema mismatch", nil), stageFailures[common.StageExtraction]},
		{"unmapped stage", common.NewAppError(common.StagePipeline, "allocate run directory", nil), msgUnexpected},
		{"plain error", errors.New("boom"), msgUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, describeFailure(tc.err))
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 Б", formatSize(512))
	assert.Equal(t, "2.0 КБ", formatSize(2048))
	assert.Equal(t, "2.50 МБ", formatSize(2621440))
}

func TestFormatPages(t *testing.T) {
	assert.Equal(t, "2, 3, 7", formatPages([]int{2, 3, 7}))
	assert.Equal(t, "—", formatPages(nil))
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.0021", formatCost(0.0021, true))
	assert.Equal(t, "н/д", formatCost(0, false))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "12.3 сек", formatSeconds(12.34))
}
