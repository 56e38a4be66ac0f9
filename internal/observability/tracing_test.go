package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracerProvider_LogsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tp := NewTracerProvider(logger)
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	_, span := tp.Tracer("qsearch.test").Start(context.Background(), "statement")
	span.SetAttributes(attribute.String("db.system", "sqlite"))
	RecordError(span, errors.New("database is locked"))
	span.End()

	out := buf.String()
	assert.Contains(t, out, `msg="span statement"`)
	assert.Contains(t, out, "db.system=sqlite")
	assert.Contains(t, out, `error="database is locked"`)
}

func TestRecordError_Nil(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tp := NewTracerProvider(logger)
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	_, span := tp.Tracer("qsearch.test").Start(context.Background(), "ok")
	RecordError(span, nil)
	span.End()

	assert.NotContains(t, buf.String(), "error=")
}
