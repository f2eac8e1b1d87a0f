package services

import "context"

type contextKey string

const (
	tmdbIDKey    contextKey = "tmdb_id"
	phoneKey     contextKey = "phone"
	requestIDKey contextKey = "request_id"
)

// WithTMDBID annotates context with the request's movie identifier.
func WithTMDBID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, tmdbIDKey, id)
}

// TMDBIDFromContext extracts the movie identifier if present.
func TMDBIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(tmdbIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithPhone annotates context with the requester's phone number.
func WithPhone(ctx context.Context, phone string) context.Context {
	if phone == "" {
		return ctx
	}
	return context.WithValue(ctx, phoneKey, phone)
}

// PhoneFromContext extracts the requester's phone number if present.
func PhoneFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(phoneKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
