// Package relevance scores document pages against reference utterances that
// describe construction-defect language, and selects the pages worth sending
// through the expensive cleaning and extraction stages.
package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/stroyassist/defectbot/internal/llm"
)

// Route is one named utterance set the router can match against.
type Route struct {
	Name       string   `yaml:"name"`
	Utterances []string `yaml:"utterances"`
}

// MatchKind tags the shape of a classification result. An explicit variant
// instead of probing the result at runtime.
type MatchKind int

const (
	// MatchNone: nothing to match against (no routes, or empty input).
	MatchNone MatchKind = iota
	// MatchBelow: a best route exists but its score is below the threshold.
	MatchBelow
	// MatchRoute: the route matched at or above the threshold.
	MatchRoute
)

// Match is one classification outcome. Route and Score are set for both
// MatchRoute and MatchBelow.
type Match struct {
	Kind  MatchKind
	Route string
	Score float32
}

// Router classifies text by cosine similarity against pre-embedded route
// utterances. A route's score for a text is the maximum similarity across
// its utterances.
type Router struct {
	embedder  llm.Embedder
	routes    []Route
	threshold float32
	logger    *slog.Logger

	mu      sync.Mutex
	synced  bool
	vectors map[string][][]float32
}

func NewRouter(embedder llm.Embedder, routes []Route, threshold float32, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		embedder:  embedder,
		routes:    routes,
		threshold: threshold,
		logger:    logger,
	}
}

// Sync embeds every route utterance in one call. Invoked lazily by Classify;
// safe to call up front to fail fast on credential problems.
func (r *Router) Sync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncLocked(ctx)
}

func (r *Router) syncLocked(ctx context.Context) error {
	if r.synced {
		return nil
	}

	var inputs []string
	for _, route := range r.routes {
		inputs = append(inputs, route.Utterances...)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no route utterances configured")
	}

	vectors, usage, err := r.embedder.Embeddings(ctx, inputs)
	if err != nil {
		return fmt.Errorf("embed route utterances: %w", err)
	}

	r.vectors = make(map[string][][]float32, len(r.routes))
	offset := 0
	for _, route := range r.routes {
		r.vectors[route.Name] = vectors[offset : offset+len(route.Utterances)]
		offset += len(route.Utterances)
	}
	r.synced = true

	r.logger.Info("relevance.router.synced",
		"routes", len(r.routes),
		"utterances", len(inputs),
		"prompt_tokens", usage.PromptTokens,
	)
	return nil
}

// Classify scores text against every route and returns the best one.
func (r *Router) Classify(ctx context.Context, text string) (Match, llm.Usage, error) {
	r.mu.Lock()
	if err := r.syncLocked(ctx); err != nil {
		r.mu.Unlock()
		return Match{}, llm.Usage{}, err
	}
	vectors := r.vectors
	r.mu.Unlock()

	if len(r.routes) == 0 {
		return Match{Kind: MatchNone}, llm.Usage{}, nil
	}

	embedded, usage, err := r.embedder.Embeddings(ctx, []string{text})
	if err != nil {
		return Match{}, usage, fmt.Errorf("embed page text: %w", err)
	}
	query := embedded[0]

	best := Match{Kind: MatchNone}
	for _, route := range r.routes {
		var score float32
		for _, v := range vectors[route.Name] {
			if s := cosine(query, v); s > score {
				score = s
			}
		}
		if best.Kind == MatchNone || score > best.Score {
			best = Match{Kind: MatchBelow, Route: route.Name, Score: score}
		}
	}
	if best.Kind != MatchNone && best.Score >= r.threshold {
		best.Kind = MatchRoute
	}
	return best, usage, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
