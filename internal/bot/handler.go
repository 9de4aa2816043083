package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/stroyassist/defectbot/internal/async"
	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/drive"
	"github.com/stroyassist/defectbot/internal/pipeline"
	"github.com/stroyassist/defectbot/internal/workspace"
)

// Sender is the slice of the Telegram API the handler uses. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Handler owns all chat behavior: dispatching updates, driving pipeline runs
// and rendering progress back into the chat.
type Handler struct {
	sender Sender
	orch   *pipeline.Orchestrator
	queue  *async.RunQueue
	http   *http.Client
	logger *slog.Logger
}

func NewHandler(sender Sender, orch *pipeline.Orchestrator, queue *async.RunQueue, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sender: sender,
		orch:   orch,
		queue:  queue,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logger,
	}
}

// HandleUpdate routes one incoming update. Pipeline work goes through the
// run queue; everything else is answered inline.
func (h *Handler) HandleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		h.replyWithKeyboard(chatID, msgGreeting)

	case msg.Text == buttonUpload:
		h.reply(chatID, msgInstructions)

	case msg.Document != nil:
		h.acceptUpload(chatID, msg.Document)

	case isDriveLink(msg.Text):
		h.acceptLink(chatID, strings.TrimSpace(msg.Text))

	default:
		h.replyWithKeyboard(chatID, msgFallback)
	}
}

func isDriveLink(text string) bool {
	_, ok := drive.ExtractFileID(text)
	return ok
}

func (h *Handler) acceptLink(chatID int64, link string) {
	task := async.Task{
		RunID:  uuid.NewString(),
		ChatID: chatID,
		Execute: func(ctx context.Context) {
			h.runFromLink(ctx, chatID, link)
		},
	}
	if !h.queue.TryEnqueue(task) {
		h.reply(chatID, msgBusy)
		return
	}
	h.reply(chatID, msgLinkAccepted)
}

func (h *Handler) acceptUpload(chatID int64, doc *tgbotapi.Document) {
	if !looksLikePDF(doc) {
		h.reply(chatID, msgNotPDF)
		return
	}
	fileID, fileName := doc.FileID, doc.FileName
	task := async.Task{
		RunID:  uuid.NewString(),
		ChatID: chatID,
		Execute: func(ctx context.Context) {
			h.runFromUpload(ctx, chatID, fileID, fileName)
		},
	}
	if !h.queue.TryEnqueue(task) {
		h.reply(chatID, msgBusy)
		return
	}
	h.reply(chatID, msgUploadAccepted)
}

func looksLikePDF(doc *tgbotapi.Document) bool {
	if doc.MimeType == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}

// runFromLink executes the whole pipeline for a Drive link.
func (h *Handler) runFromLink(ctx context.Context, chatID int64, link string) {
	run, err := h.orch.NewRun(link)
	if err != nil {
		h.logger.Error("bot.run.create_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, msgUnexpected)
		return
	}
	defer run.Finish()

	dl, err := run.DownloadDocument(ctx)
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	h.reply(chatID, downloadedText(dl, filepath.Base(run.Dir)))

	h.continueAnalysis(ctx, chatID, run)
}

// runFromUpload fetches a chat attachment through the Bot API into a temp
// file and runs the pipeline on it. The temp file is removed on every path.
func (h *Handler) runFromUpload(ctx context.Context, chatID int64, fileID, fileName string) {
	directURL, err := h.sender.GetFileDirectURL(fileID)
	if err != nil {
		h.logger.Error("bot.upload.resolve_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, msgUnexpected)
		return
	}

	tmp, err := workspace.TempPDF()
	if err != nil {
		h.logger.Error("bot.upload.temp_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, msgUnexpected)
		return
	}
	defer func() {
		if rmErr := os.Remove(tmp); rmErr != nil {
			h.logger.Warn("bot.upload.temp_cleanup_failed", "path", tmp, "error", rmErr)
		}
	}()

	if err := h.downloadTo(ctx, directURL, tmp); err != nil {
		h.logger.Error("bot.upload.fetch_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, stageFailures[common.StageDownload])
		return
	}

	run, err := h.orch.NewRun(fileName)
	if err != nil {
		h.logger.Error("bot.run.create_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, msgUnexpected)
		return
	}
	defer run.Finish()

	dl, err := run.AdoptLocalPDF(tmp, fileName)
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	h.reply(chatID, downloadedText(dl, filepath.Base(run.Dir)))

	h.continueAnalysis(ctx, chatID, run)
}

// continueAnalysis drives a run that already holds its document through OCR,
// relevance, cleaning and the final report.
func (h *Handler) continueAnalysis(ctx context.Context, chatID int64, run *pipeline.Run) {
	h.reply(chatID, msgStepOCR)
	ocrInfo, err := run.RunOCR(ctx)
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	h.reply(chatID, ocrDoneText(ocrInfo))

	h.reply(chatID, msgStepSemantic)
	rel, err := run.RunSemanticAnalysis(ctx)
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	if run.NoRelevantPages() {
		h.reply(chatID, msgNoRelevantPages)
		return
	}
	h.reply(chatID, semanticDoneText(rel))

	h.reply(chatID, msgStepVision)
	cl, err := run.RunVLMCleaning(ctx)
	if err != nil && common.IsTransient(err) {
		h.reply(chatID, msgCleaningRetry)
		cl, err = run.RetryCleaning(ctx)
	}
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	h.reply(chatID, cleaningDoneText(cl))

	h.reply(chatID, msgStepReport)
	rep, err := run.RunAnalysisAndReport(ctx)
	if err != nil {
		h.replyFailure(chatID, err)
		return
	}
	h.reply(chatID, msgReportReady)

	document := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(rep.Path))
	document.Caption = reportCaption(run)
	if _, err := h.sender.Send(document); err != nil {
		h.logger.Error("bot.report.send_failed", "chat_id", chatID, "error", err)
		h.reply(chatID, msgUnexpected)
	}
}

func (h *Handler) downloadTo(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch attachment: HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.Warn("bot.send.failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) replyWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainKeyboard
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.Warn("bot.send.failed", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) replyFailure(chatID int64, err error) {
	h.reply(chatID, describeFailure(err))
}
