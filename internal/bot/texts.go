package bot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/pipeline"
)

// Button label on the persistent reply keyboard.
const buttonUpload = "Загрузить документ"

const (
	msgGreeting = "**ПРИВЕТ!** Я бот для анализа технических документов. Для начала вы можете загрузить документ."

	msgInstructions = "Отправьте ссылку на PDF из Google Drive.\n\n" +
		"Пайплайн включает 4 шага:" +
		"\n1️⃣ OCR (~4-5 минут)" +
		"\n2️⃣ Семантический анализ (~30 секунд)" +
		"\n3️⃣ Очистка через Vision LM (~1-2 минуты)" +
		"\n4️⃣ Таблица с параметрами дефектов (~1 минута)" +
		"\n\nПросто пришлите ссылку, как будете готовы."

	msgFallback = "**В РАЗРАБОТКЕ:** Бот находится в процессе разработки. Скоро здесь появится новая функциональность."

	msgLinkAccepted   = "☁️ Принял ссылку, начинаю загрузку документа..."
	msgUploadAccepted = "📄 Принял документ, начинаю обработку..."
	msgNotPDF         = "Пришлите PDF файл — другие форматы не поддерживаются."
	msgBusy           = "⏳ Бот сейчас занят обработкой других документов. Отправьте ссылку ещё раз через несколько минут."

	msgStepOCR      = "🚀 Шаг 1/4: OCR документа. Это займёт около 4-5 минут, пожалуйста подождите."
	msgStepSemantic = "🎯 Шаг 2/4: Семантический анализ релевантных страниц (~30 секунд)."
	msgStepVision   = "🧹 Шаг 3/4: Приведение текста через Vision LM (~1-2 минуты)."
	msgStepReport   = "📊 Шаг 4/4: Формируем таблицу с параметрами дефектов (~1 минута)."
	msgReportReady  = "✅ Шаг 4 завершён. Отправляю Excel с результатами и сводку по пайплайну."

	msgNoRelevantPages = "⚠️ Семантический анализ не обнаружил релевантных страниц с описанием дефектов. Пайплайн остановлен."
	msgCleaningRetry   = "⚠️ Временный сбой на шаге Vision-обработки, повторяю попытку..."
)

// Failure texts keyed by the stage that produced the error.
var stageFailures = map[common.Stage]string{
	common.StageSource: "❌ Не удалось распознать ссылку Google Drive. Проверьте, что отправляете ссылку вида " +
		"https://drive.google.com/file/d/<ID>/view и повторите попытку.",
	common.StageDownload:   "❌ Не удалось загрузить документ. Проверьте доступ по ссылке и повторите попытку.",
	common.StageOCR:        "❌ Ошибка OCR обработки документа.",
	common.StageSemantic:   "❌ Ошибка семантического анализа документа.",
	common.StageVLM:        "❌ Ошибка Vision-обработки страниц.",
	common.StageExtraction: "❌ Ошибка финального анализа дефектов.",
}

const msgUnexpected = "❌ Произошла непредвиденная ошибка при обработке документа. Попробуйте позже."

// describeFailure maps a pipeline error to its user-facing text. The mapping
// is by stage code, never by message content.
func describeFailure(err error) string {
	var ae *common.AppError
	if errors.As(err, &ae) {
		if text, ok := stageFailures[ae.Stage]; ok {
			return text
		}
	}
	return msgUnexpected
}

func downloadedText(dl *pipeline.DownloadInfo, runDir string) string {
	return fmt.Sprintf(
		"✅ Документ загружен успешно.\n📄 Имя: %s\n📦 Размер: %s\n🗂️ Папка результатов: %s",
		dl.Filename, formatSize(dl.Size), runDir,
	)
}

func ocrDoneText(info *pipeline.OCRInfo) string {
	return fmt.Sprintf(
		"✅ Шаг 1 завершён.\n📖 Страниц обработано: %d\n⏱️ Время шага: %s\nПереходим к шагу 2.",
		info.Document.TotalPages, formatSeconds(info.Duration.Seconds()),
	)
}

func semanticDoneText(info *pipeline.RelevanceInfo) string {
	return fmt.Sprintf(
		"✅ Шаг 2 завершён.\n📑 Релевантных страниц: %d\n🗂️ Номера страниц: %s\nПереходим к шагу 3.",
		len(info.Pages), formatPages(info.Pages),
	)
}

func cleaningDoneText(info *pipeline.CleaningInfo) string {
	return fmt.Sprintf(
		"✅ Шаг 3 завершён.\n🧾 Страниц очищено: %d\n⏱️ Время шага: %s\nПереходим к шагу 4.",
		info.ProcessedPages, formatSeconds(info.Duration.Seconds()),
	)
}

// reportCaption renders the summary attached to the spreadsheet.
func reportCaption(run *pipeline.Run) string {
	header := "✅ Анализ дефектов завершён!"
	if run.NoFindings() {
		header = "ℹ️ Анализ завершён: дефекты в документе не обнаружены."
	}
	return fmt.Sprintf(
		"%s\n\n📄 Документ: %s\n📖 Страниц OCR: %d\n🎯 Релевантные страницы: %s\n"+
			"⏱️ Время пайплайна: %s\n💰 Стоимость LLM шага: %s\n🗂️ Папка результатов: %s",
		header,
		run.OCR.Document.Filename,
		run.OCR.Document.TotalPages,
		formatPages(run.Relevance.Pages),
		formatSeconds(run.TotalDuration().Seconds()),
		formatCost(run.Report.Cost, run.Report.CostKnown),
		filepath.Base(run.Dir),
	)
}

// formatSize renders a byte count the way people read file sizes.
func formatSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d Б", size)
	}
	kb := float64(size) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.1f КБ", kb)
	}
	return fmt.Sprintf("%.2f МБ", kb/1024)
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.1f сек", s)
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "—"
	}
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ", ")
}

// formatCost renders the analysis-stage cost; unknown models have no price.
func formatCost(cost float64, known bool) string {
	if !known {
		return "н/д"
	}
	return fmt.Sprintf("$%.4f", cost)
}
