package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Bot      BotConfig
	OpenAI   OpenAIConfig
	OCR      OCRConfig
	Semantic SemanticConfig
	Pipeline PipelineConfig
	Metrics  MetricsConfig
	LogLevel string
}

// BotConfig holds Telegram-related configuration
type BotConfig struct {
	Token             string
	MaxConcurrentRuns int
	QueueSize         int
}

// OpenAIConfig holds credentials and model selection for every OpenAI call
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	AnalysisModel  string
	VLMModel       string
	EmbeddingModel string
	Temperature    float32
	Timeout        time.Duration
	PricingFile    string
}

// OCRConfig holds OCR-engine configuration
type OCRConfig struct {
	Language      string
	DPI           int
	MaxPages      int
	PDFToPPMPath  string
	TesseractPath string
}

// SemanticConfig holds relevance-selection configuration
type SemanticConfig struct {
	ScoreThreshold float64
	TopPagesLimit  int
	BatchSize      int
	BatchDelay     time.Duration
	RoutesFile     string
}

// PipelineConfig holds run-level configuration
type PipelineConfig struct {
	ResultDir    string
	DefectSchema string // "enum" or "text"
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Addr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Token:             getEnv("BOT_TOKEN", ""),
			MaxConcurrentRuns: getEnvAsInt("MAX_CONCURRENT_RUNS", 2),
			QueueSize:         getEnvAsInt("RUN_QUEUE_SIZE", 8),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			AnalysisModel:  getEnv("ANALYSIS_MODEL", "gpt-4.1-mini-2025-04-14"),
			VLMModel:       getEnv("VLM_MODEL", "gpt-4.1-mini-2025-04-14"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Temperature:    getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("HTTP_TIMEOUT", 120*time.Second),
			PricingFile:    getEnv("PRICING_FILE", ""),
		},
		OCR: OCRConfig{
			Language:      getEnv("OCR_LANGUAGE", "rus"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			PDFToPPMPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
			TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
		},
		Semantic: SemanticConfig{
			ScoreThreshold: getEnvAsFloat64("SEMANTIC_SCORE_THRESHOLD", 0.5),
			TopPagesLimit:  getEnvAsInt("SEMANTIC_TOP_PAGES_LIMIT", 10),
			BatchSize:      getEnvAsInt("SEMANTIC_BATCH_SIZE", 5),
			BatchDelay:     getEnvAsDuration("SEMANTIC_BATCH_DELAY", 100*time.Millisecond),
			RoutesFile:     getEnv("ROUTES_FILE", ""),
		},
		Pipeline: PipelineConfig{
			ResultDir:    getEnv("RESULT_DIR", "result"),
			DefectSchema: getEnv("DEFECT_SCHEMA", "enum"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return NewAppError(StagePipeline, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Semantic.ScoreThreshold <= 0 || c.Semantic.ScoreThreshold > 1 {
		return NewAppError(StagePipeline, "SEMANTIC_SCORE_THRESHOLD must be in (0, 1]", ErrInvalidInput)
	}
	if c.Semantic.TopPagesLimit <= 0 {
		return NewAppError(StagePipeline, "SEMANTIC_TOP_PAGES_LIMIT must be positive", ErrInvalidInput)
	}
	if c.Semantic.BatchSize <= 0 {
		return NewAppError(StagePipeline, "SEMANTIC_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	if v := c.Pipeline.DefectSchema; v != "enum" && v != "text" {
		return NewAppError(StagePipeline, "DEFECT_SCHEMA must be enum or text", ErrInvalidInput)
	}
	return nil
}
