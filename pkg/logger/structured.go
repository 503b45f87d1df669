package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// zlog stays a no-op logger until InitStructured runs, so library code and tests are quiet.
var zlog = zerolog.Nop()

// InitStructured initializes the structured zerolog logger
func InitStructured(env string) {
	var w io.Writer = os.Stdout
	if env == "development" || env == "dev" || env == "local" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	SetLogger(zerolog.New(w).With().
		Timestamp().
		Str("service", "angple-cms").
		Logger())
}

// SetLogger replaces the global logger
func SetLogger(l zerolog.Logger) {
	zlog = l
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID global logger tagged with request_id
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}

// WithActor adds the acting user. An empty role is left out.
func WithActor(l zerolog.Logger, actorID, role string) zerolog.Logger {
	c := l.With().Str("actor_id", actorID)
	if role != "" {
		c = c.Str("role", role)
	}
	return c.Logger()
}

// WithRevision adds the revision coordinates every workflow log line carries
func WithRevision(l zerolog.Logger, kind, contentID, revisionID string, version int) zerolog.Logger {
	return l.With().
		Str("kind", kind).
		Str("content_id", contentID).
		Str("revision_id", revisionID).
		Int("version", version).
		Logger()
}

// NewContext returns ctx carrying l
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext the request-scoped logger stored by NewContext, else the global one
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &zlog
}
