package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	tagKey       contextKey = "tag"
)

// WithSessionID adds a capture session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// GetSessionID returns the session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// WithTag adds a call tag to the context.
func WithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey, tag)
}

// GetTag returns the call tag from the context.
func GetTag(ctx context.Context) string {
	tag, _ := ctx.Value(tagKey).(string)
	return tag
}

func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id := GetSessionID(ctx); id != "" {
		fields = append(fields, slog.String(string(sessionIDKey), id))
	}
	if tag := GetTag(ctx); tag != "" {
		fields = append(fields, slog.String(string(tagKey), tag))
	}
	return fields
}
