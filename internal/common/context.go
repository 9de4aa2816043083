package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID  contextKey = "run_id"
	ContextKeyChatID contextKey = "chat_id"
)

// WithRunID adds a pipeline run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the pipeline run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithChatID adds the originating chat ID to the context
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, ContextKeyChatID, chatID)
}

// ChatIDFromContext extracts the originating chat ID from context
func ChatIDFromContext(ctx context.Context) (int64, bool) {
	chatID, ok := ctx.Value(ContextKeyChatID).(int64)
	return chatID, ok
}
