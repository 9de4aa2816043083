package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/defects"
	"github.com/stroyassist/defectbot/internal/llm"
)

type fakeChat struct {
	reply string
	err   error
	last  llm.ChatRequest
}

func (f *fakeChat) ChatJSON(_ context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	f.last = req
	if f.err != nil {
		return llm.ChatResult{}, f.err
	}
	return llm.ChatResult{
		Content: f.reply,
		Model:   "gpt-4.1-mini-2025-04-14",
		Usage:   llm.Usage{PromptTokens: 5000, CompletionTokens: 300, TotalTokens: 5300},
	}, nil
}

const validReply = `{"defects": [
  {"source_text": "царапины на ламинате в коридоре",
   "room": "Коридор", "location": "Пол",
   "defect": "laminate_chips_scratches", "work_type": "Отделочные работы"}
]}`

func TestCombineTexts(t *testing.T) {
	got := CombineTexts([]string{"первый текст\n", "  второй текст"})
	want := "=== Страница 1 ===\nпервый текст\n\n=== Страница 2 ===\nвторой текст"
	assert.Equal(t, want, got)
}

func TestAnalyze_DecodesDefects(t *testing.T) {
	chat := &fakeChat{reply: validReply}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	analysis, err := ex.Analyze(context.Background(), []string{"страница 1", "страница 2"})
	require.NoError(t, err)

	require.Len(t, analysis.Defects, 1)
	d := analysis.Defects[0]
	assert.Equal(t, "laminate_chips_scratches", d.Defect)
	assert.Equal(t, "Коридор", d.Room)
	assert.Equal(t, 5300, analysis.Usage.TotalTokens)
	assert.Equal(t, "gpt-4.1-mini-2025-04-14", analysis.Model)

	assert.Contains(t, chat.last.System, "construction expert")
	assert.Contains(t, chat.last.User, "=== Страница 1 ===")
	assert.Contains(t, chat.last.User, "=== Страница 2 ===")
	require.NotNil(t, chat.last.Schema)
}

func TestAnalyze_AcceptsFencedReply(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + validReply + "\n```"}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	analysis, err := ex.Analyze(context.Background(), []string{"текст"})
	require.NoError(t, err)
	assert.Len(t, analysis.Defects, 1)
}

func TestAnalyze_SanitizesLooseDefectKeys(t *testing.T) {
	reply := `{"defects": [
	  {"source_text": " зазоры между досками ",
	   "room": "Комната", "location": "Пол",
	   "defect": "Laminate Board Gaps", "work_type": "Отделочные работы"}
	]}`
	chat := &fakeChat{reply: reply}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	analysis, err := ex.Analyze(context.Background(), []string{"текст"})
	require.NoError(t, err)
	require.Len(t, analysis.Defects, 1)
	assert.Equal(t, "laminate_board_gaps", analysis.Defects[0].Defect)
	assert.Equal(t, "зазоры между досками", analysis.Defects[0].SourceText)
}

func TestAnalyze_RejectsUnknownDefectKey(t *testing.T) {
	reply := `{"defects": [
	  {"source_text": "что-то", "room": "Комната", "location": "Пол",
	   "defect": "made_up_key", "work_type": "Отделочные работы"}
	]}`
	chat := &fakeChat{reply: reply}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	_, err = ex.Analyze(context.Background(), []string{"текст"})
	require.Error(t, err)
	assert.Equal(t, common.StageExtraction, common.StageOf(err))
}

func TestAnalyze_TextVariantAllowsFreeDefect(t *testing.T) {
	reply := `{"defects": [
	  {"source_text": "трещина в стяжке", "room": "Кухня", "location": "Пол",
	   "defect": "Трещина в стяжке пола", "work_type": "Штукатурные работы"}
	]}`
	chat := &fakeChat{reply: reply}
	ex, err := NewExtractor(chat, defects.SchemaText, nil)
	require.NoError(t, err)

	analysis, err := ex.Analyze(context.Background(), []string{"текст"})
	require.NoError(t, err)
	require.Len(t, analysis.Defects, 1)
	assert.Equal(t, "Трещина в стяжке пола", analysis.Defects[0].Defect)
	assert.Contains(t, chat.last.System, "опытный эксперт")
}

func TestAnalyze_ZeroDefectsIsValid(t *testing.T) {
	chat := &fakeChat{reply: `{"defects": []}`}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	analysis, err := ex.Analyze(context.Background(), []string{"чистый текст"})
	require.NoError(t, err)
	assert.Empty(t, analysis.Defects)
}

func TestAnalyze_EmptyInputIsError(t *testing.T) {
	ex, err := NewExtractor(&fakeChat{}, defects.SchemaEnum, nil)
	require.NoError(t, err)

	_, err = ex.Analyze(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAnalyze_TransientFlagPropagates(t *testing.T) {
	chat := &fakeChat{err: rateLimited{}}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	_, err = ex.Analyze(context.Background(), []string{"текст"})
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
	assert.Equal(t, common.StageExtraction, common.StageOf(err))
}

type rateLimited struct{}

func (rateLimited) Error() string   { return "429 too many requests" }
func (rateLimited) Transient() bool { return true }

func TestAnalyze_PermanentChatFailure(t *testing.T) {
	chat := &fakeChat{err: errors.New("bad request")}
	ex, err := NewExtractor(chat, defects.SchemaEnum, nil)
	require.NoError(t, err)

	_, err = ex.Analyze(context.Background(), []string{"текст"})
	require.Error(t, err)
	assert.False(t, common.IsTransient(err))
}
