// Package extract turns page texts into structured defect records through a
// schema-constrained LLM call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/defects"
	"github.com/stroyassist/defectbot/internal/llm"
)

// Analysis is one completed extraction call.
type Analysis struct {
	Defects []defects.Defect
	Model   string
	Usage   llm.Usage
}

type Extractor struct {
	chat     llm.ChatCompleter
	variant  string
	schema   map[string]any
	compiled *jsonschema.Schema
	logger   *slog.Logger
}

// NewExtractor compiles the schema for the chosen variant once.
func NewExtractor(chat llm.ChatCompleter, variant string, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if variant == "" {
		variant = defects.SchemaEnum
	}
	schema := defects.BuildSchema(variant)
	compiled, err := llm.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("compile defect schema: %w", err)
	}
	return &Extractor{
		chat:     chat,
		variant:  variant,
		schema:   schema,
		compiled: compiled,
		logger:   logger,
	}, nil
}

// CombineTexts joins page texts into the analysis input: each fragment gets a
// positional page banner, fragments are separated by a blank line.
func CombineTexts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for i, text := range texts {
		parts = append(parts, fmt.Sprintf("=== Страница %d ===\n%s", i+1, strings.TrimSpace(text)))
	}
	return strings.Join(parts, "\n\n")
}

// Analyze submits the combined text and decodes the defect list. Zero
// extracted defects is a valid result. An empty input is an input error.
func (e *Extractor) Analyze(ctx context.Context, texts []string) (Analysis, error) {
	if len(texts) == 0 {
		return Analysis{}, common.NewAppError(common.StageExtraction, "no page texts to analyze", common.ErrInvalidInput)
	}

	combined := CombineTexts(texts)
	e.logger.Info("extract.analyze.start",
		"fragments", len(texts),
		"chars", len(combined),
		"schema", e.variant,
	)

	res, err := e.chat.ChatJSON(ctx, llm.ChatRequest{
		System: defects.ExpertPrompt(e.variant),
		User:   defects.UserPrompt(combined),
		Schema: e.schema,
	})
	if err != nil {
		return Analysis{}, common.ClassifyError(common.StageExtraction, "defect analysis call", err)
	}

	raw := []byte(llm.CleanJSONBlock(res.Content))
	if err := llm.ValidateAgainst(e.compiled, raw); err != nil {
		cleaned, sErr := e.sanitize(raw)
		if sErr != nil {
			return Analysis{}, common.NewAppError(common.StageExtraction, "defect analysis response rejected", err)
		}
		if vErr := llm.ValidateAgainst(e.compiled, cleaned); vErr != nil {
			return Analysis{}, common.NewAppError(common.StageExtraction, "defect analysis response rejected", vErr)
		}
		e.logger.Warn("extract.sanitize_applied", "bytes", len(cleaned))
		raw = cleaned
	}

	var out defects.AnalysisResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return Analysis{}, common.NewAppError(common.StageExtraction, "decode defect list", err)
	}

	e.logger.Info("extract.analyze.ok",
		"defects", len(out.Defects),
		"model", res.Model,
		"prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens,
	)
	return Analysis{Defects: out.Defects, Model: res.Model, Usage: res.Usage}, nil
}

// sanitize repairs recoverable deviations before re-validation: surrounding
// whitespace in string fields and loosely formatted defect keys. Records are
// never dropped.
func (e *Extractor) sanitize(raw []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	items, ok := m["defects"].([]any)
	if !ok {
		return nil, fmt.Errorf("no defects array")
	}

	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for key, value := range record {
			s, ok := value.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if key == "defect" && e.variant == defects.SchemaEnum {
				if canonical, ok := defects.Canonicalize(s); ok {
					s = canonical
				}
			}
			record[key] = s
		}
	}
	return json.Marshal(m)
}
