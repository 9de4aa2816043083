package llm

import (
	"fmt"
	"math"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ModelPrice is the USD price per 1000 tokens.
type ModelPrice struct {
	Prompt     float64 `yaml:"prompt"`
	Completion float64 `yaml:"completion"`
}

// Pricing maps base model names to their per-1K prices.
type Pricing map[string]ModelPrice

// Versioned model names share the base model's price.
var builtinPricing = Pricing{
	"gpt-4.1-mini": {Prompt: 0.00015, Completion: 0.00060},
	"gpt-4.1":      {Prompt: 0.00200, Completion: 0.00800},
	"gpt-4o-mini":  {Prompt: 0.00015, Completion: 0.00060},
	"gpt-4o":       {Prompt: 0.00250, Completion: 0.01000},
}

// DefaultPricing returns a copy of the built-in price table.
func DefaultPricing() Pricing {
	p := make(Pricing, len(builtinPricing))
	for k, v := range builtinPricing {
		p[k] = v
	}
	return p
}

// LoadPricing merges model prices from a YAML file over the built-in table:
//
//	models:
//	  gpt-4.1-mini:
//	    prompt: 0.00015
//	    completion: 0.00060
func LoadPricing(path string) (Pricing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	var doc struct {
		Models map[string]ModelPrice `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	p := DefaultPricing()
	for model, price := range doc.Models {
		p[model] = price
	}
	return p, nil
}

var reModelDateSuffix = regexp.MustCompile(`-20\d{2}-\d{2}-\d{2}$`)

// Normalize maps a versioned model name ("gpt-4.1-mini-2025-04-14") to its
// priced base name. Unknown models come back unchanged.
func (p Pricing) Normalize(model string) string {
	if _, ok := p[model]; ok {
		return model
	}
	base := reModelDateSuffix.ReplaceAllString(model, "")
	if _, ok := p[base]; ok {
		return base
	}
	return model
}

// Cost prices one call's usage in USD, rounded to 6 decimals. The second
// return is false when the model has no known price; callers display the
// cost as unavailable in that case.
func (p Pricing) Cost(model string, usage Usage) (float64, bool) {
	price, ok := p[p.Normalize(model)]
	if !ok {
		return 0, false
	}
	cost := float64(usage.PromptTokens)/1000*price.Prompt +
		float64(usage.CompletionTokens)/1000*price.Completion
	return math.Round(cost*1e6) / 1e6, true
}

// NormalizeModel resolves against the built-in table.
func NormalizeModel(model string) string {
	return builtinPricing.Normalize(model)
}

// Cost prices usage against the built-in table.
func Cost(model string, usage Usage) (float64, bool) {
	return builtinPricing.Cost(model, usage)
}
