package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/stroyassist/defectbot/internal/async"
	"github.com/stroyassist/defectbot/internal/bot"
	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/drive"
	"github.com/stroyassist/defectbot/internal/export"
	"github.com/stroyassist/defectbot/internal/extract"
	"github.com/stroyassist/defectbot/internal/llm"
	"github.com/stroyassist/defectbot/internal/llm/openai"
	"github.com/stroyassist/defectbot/internal/observability/logging"
	"github.com/stroyassist/defectbot/internal/observability/metrics"
	"github.com/stroyassist/defectbot/internal/ocr"
	"github.com/stroyassist/defectbot/internal/pipeline"
	"github.com/stroyassist/defectbot/internal/relevance"
	"github.com/stroyassist/defectbot/internal/resilience"
	"github.com/stroyassist/defectbot/internal/vlm"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := logging.NewJSONLogger("defect-bot", cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.Bot.Token == "" {
		logger.Error("BOT_TOKEN env var is required")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := metrics.NewPipelineMetrics("defect-bot")

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
	selector := relevance.NewSelector(router, cfg.Semantic, logger)

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
		Selector: selector,
		Cleaner:  vlm.NewCleaner(guarded, ocrExtractor, logger),
		Analyzer: analyzer,
		Reporter: export.NewWriter(logger),
		Pricing:  pricing,
		Metrics:  pm,
		Logger:   logger,
	}, cfg.Pipeline.ResultDir)

	queue := async.NewRunQueue(logger,
		async.WithWorkers(cfg.Bot.MaxConcurrentRuns),
		async.WithQueueSize(cfg.Bot.QueueSize),
		async.WithMetrics(pm),
	)

	api, err := bot.NewAPI(cfg.Bot.Token)
	if err != nil {
		logger.Error("telegram authentication failed", "error", err)
		os.Exit(1)
	}
	handler := bot.NewHandler(api, orch, queue, logger)
	poller := bot.NewPoller(api, handler, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", pm.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Let in-flight runs finish before exiting.
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("defect-bot exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("defect-bot stopped")
}
