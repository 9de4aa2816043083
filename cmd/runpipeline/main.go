// runpipeline drives one document through the full analysis pipeline without
// Telegram: download (or adopt a local PDF), OCR, relevance selection, vision
// cleaning and the xlsx report.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/drive"
	"github.com/stroyassist/defectbot/internal/export"
	"github.com/stroyassist/defectbot/internal/extract"
	"github.com/stroyassist/defectbot/internal/llm"
	"github.com/stroyassist/defectbot/internal/llm/openai"
	"github.com/stroyassist/defectbot/internal/observability/logging"
	"github.com/stroyassist/defectbot/internal/ocr"
	"github.com/stroyassist/defectbot/internal/pipeline"
	"github.com/stroyassist/defectbot/internal/relevance"
	"github.com/stroyassist/defectbot/internal/resilience"
	"github.com/stroyassist/defectbot/internal/vlm"
)

func main() {
	_ = godotenv.Load()

	link := flag.String("link", "", "Google Drive share link")
	file := flag.String("file", "", "local PDF path")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := logging.NewJSONLogger("runpipeline", cfg.LogLevel)
	slog.SetDefault(logger)

	if (*link == "") == (*file == "") {
		logger.Error("usage", "cmd", "runpipeline -link <drive-url> | -file <document.pdf>")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	llmClient := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.AnalysisModel,
		VisionModel:    cfg.OpenAI.VLMModel,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		Temperature:    cfg.OpenAI.Temperature,
		Timeout:        cfg.OpenAI.Timeout,
	}, logger)
	guarded := resilience.GuardLLM(llmClient, resilience.NewExecutor(resilience.DefaultConfig(), logger))

	routes := relevance.DefaultRoutes()
	if cfg.Semantic.RoutesFile != "" {
		loaded, err := relevance.LoadRoutes(cfg.Semantic.RoutesFile)
		if err != nil {
			logger.Error("failed to load semantic routes", "path", cfg.Semantic.RoutesFile, "error", err)
			os.Exit(1)
		}
		routes = loaded
	}
	router := relevance.NewRouter(guarded, routes, float32(cfg.Semantic.ScoreThreshold), logger)

	ocrExtractor := ocr.NewExtractor(ocr.Config{
		Pdftoppm:  cfg.OCR.PDFToPPMPath,
		Tesseract: cfg.OCR.TesseractPath,
		Language:  cfg.OCR.Language,
		DPI:       cfg.OCR.DPI,
		MaxPages:  cfg.OCR.MaxPages,
	}, logger)

	analyzer, err := extract.NewExtractor(guarded, cfg.Pipeline.DefectSchema, logger)
	if err != nil {
		logger.Error("failed to build defect extractor", "error", err)
		os.Exit(1)
	}

	pricing := llm.DefaultPricing()
	if cfg.OpenAI.PricingFile != "" {
		loaded, err := llm.LoadPricing(cfg.OpenAI.PricingFile)
		if err != nil {
			logger.Error("failed to load pricing table", "path", cfg.OpenAI.PricingFile, "error", err)
			os.Exit(1)
		}
		pricing = loaded
	}

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Fetcher:  drive.NewFetcher(nil, logger),
		OCR:      ocrExtractor,
		Selector: relevance.NewSelector(router, cfg.Semantic, logger),
		Cleaner:  vlm.NewCleaner(guarded, ocrExtractor, logger),
		Analyzer: analyzer,
		Reporter: export.NewWriter(logger),
		Pricing:  pricing,
		Logger:   logger,
	}, cfg.Pipeline.ResultDir)

	source := *link
	if source == "" {
		source = *file
	}
	run, err := orch.NewRun(source)
	if err != nil {
		logger.Error("failed to create run", "error", err)
		os.Exit(1)
	}
	defer run.Finish()

	var dl *pipeline.DownloadInfo
	if *link != "" {
		dl, err = run.DownloadDocument(ctx)
	} else {
		dl, err = run.AdoptLocalPDF(*file, filepath.Base(*file))
	}
	if err != nil {
		logger.Error("download failed", "error", err)
		os.Exit(1)
	}
	logger.Info("document ready", "filename", dl.Filename, "size_bytes", dl.Size, "pages", dl.PageCount)

	ocrInfo, err := run.RunOCR(ctx)
	if err != nil {
		logger.Error("ocr failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ocr done", "pages", ocrInfo.Document.TotalPages, "method", ocrInfo.Method)

	rel, err := run.RunSemanticAnalysis(ctx)
	if err != nil {
		logger.Error("relevance selection failed", "error", err)
		os.Exit(1)
	}
	if run.NoRelevantPages() {
		logger.Info("no relevant pages found, stopping", "outcome", run.Outcome())
		return
	}
	logger.Info("relevance done", "pages", rel.Pages)

	cl, err := run.RunVLMCleaning(ctx)
	if err != nil {
		logger.Error("vision cleaning failed", "error", err)
		os.Exit(1)
	}
	logger.Info("cleaning done", "processed_pages", cl.ProcessedPages)

	rep, err := run.RunAnalysisAndReport(ctx)
	if err != nil {
		logger.Error("defect analysis failed", "error", err)
		os.Exit(1)
	}
	logger.Info("pipeline completed",
		"outcome", run.Outcome(),
		"report", rep.Path,
		"defects", rep.Defects,
		"cost_usd", rep.Cost,
		"duration_ms", run.TotalDuration().Milliseconds(),
	)
}
