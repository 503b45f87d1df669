package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(zerolog.Nop()) })
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	return fields
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	buf := capture(t)

	FromContext(context.Background()).Info().Msg("global")
	assert.Equal(t, "global", decode(t, buf)["message"])
}

func TestFromContext_CarriesRequestActorAndRevision(t *testing.T) {
	buf := capture(t)

	l := WithActor(WithRequestID("req-1"), "editor-1", "content_editor")
	ctx := NewContext(context.Background(), l)
	scoped := WithRevision(*FromContext(ctx), "course", "c1", "rev-9", 3)
	scoped.Warn().Msg("hook failed")

	fields := decode(t, buf)
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "editor-1", fields["actor_id"])
	assert.Equal(t, "content_editor", fields["role"])
	assert.Equal(t, "course", fields["kind"])
	assert.Equal(t, "c1", fields["content_id"])
	assert.Equal(t, "rev-9", fields["revision_id"])
	assert.EqualValues(t, 3, fields["version"])
	assert.Equal(t, "warn", fields["level"])
}

func TestWithActor_OmitsEmptyRole(t *testing.T) {
	buf := capture(t)

	l := WithActor(*GetLogger(), "system", "")
	l.Info().Msg("x")

	fields := decode(t, buf)
	assert.Equal(t, "system", fields["actor_id"])
	assert.NotContains(t, fields, "role")
}

func TestNopLoggerIsNotStored(t *testing.T) {
	ctx := NewContext(context.Background(), zerolog.Nop())
	assert.Same(t, GetLogger(), FromContext(ctx))
}
