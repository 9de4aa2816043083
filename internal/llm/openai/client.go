package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stroyassist/defectbot/internal/llm"
)

// APIError is a failed provider call. Status 0 means the request never got a
// response (network error, timeout).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return "openai request failed: " + e.Body
	}
	return fmt.Sprintf("openai status %d: %s", e.Status, e.Body)
}

// Transient reports whether a retry could plausibly succeed.
func (e *APIError) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

// ChatJSON sends a text chat request constrained to a JSON object reply.
// When req.Schema is set it is passed to the model in a trailing system
// message; validating the reply against it is the caller's job.
func (c *Client) ChatJSON(ctx context.Context, req llm.ChatRequest) (llm.ChatResult, error) {
	messages := []map[string]any{
		{"role": "system", "content": req.System},
		{"role": "user", "content": req.User},
	}
	if req.Schema != nil {
		messages[1]["content"] = req.User + "\n\nReturn ONLY JSON that matches the provided schema."
		messages = append(messages, map[string]any{
			"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema),
		})
	}

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	if req.Schema != nil {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	return c.chat(ctx, c.cfg.Model, body)
}

// ChatVision asks the vision model about one PNG page image.
func (c *Client) ChatVision(ctx context.Context, prompt string, png []byte) (llm.ChatResult, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	body := map[string]any{
		"model": c.cfg.VisionModel,
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": prompt},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			},
		}},
	}
	return c.chat(ctx, c.cfg.VisionModel, body)
}

func (c *Client) chat(ctx context.Context, model string, body map[string]any) (llm.ChatResult, error) {
	raw, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return llm.ChatResult{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage llm.Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.ChatResult{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return llm.ChatResult{}, fmt.Errorf("no choices in openai response")
	}
	if cc.Model == "" {
		cc.Model = model
	}
	return llm.ChatResult{
		Content: strings.TrimSpace(cc.Choices[0].Message.Content),
		Model:   cc.Model,
		Usage:   cc.Usage,
	}, nil
}

// Embeddings returns one vector per input, index-aligned.
func (c *Client) Embeddings(ctx context.Context, inputs []string) ([][]float32, llm.Usage, error) {
	body := map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": inputs,
	}
	raw, err := c.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, llm.Usage{}, err
	}

	var er struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Usage llm.Usage `json:"usage"`
	}
	if err := json.Unmarshal(raw, &er); err != nil {
		return nil, llm.Usage{}, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(er.Data) != len(inputs) {
		return nil, er.Usage, fmt.Errorf("embeddings count mismatch: got %d, want %d", len(er.Data), len(inputs))
	}

	sort.Slice(er.Data, func(i, j int) bool { return er.Data[i].Index < er.Data[j].Index })
	out := make([][]float32, len(er.Data))
	for i, d := range er.Data {
		out[i] = d.Embedding
	}
	return out, er.Usage, nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.log.Info("llm.http.request",
		"req_id", reqID,
		"path", path,
		"content_length", len(b),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("llm.http.send_error",
			"req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &APIError{Status: 0, Body: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	c.log.Info("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(raw), 2048)}
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
