package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

func filteredProvider(logger *slog.Logger) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	filter := observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(filter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), exporter
}

func spanAttrMap(span tracetest.SpanStub) map[string]any {
	out := make(map[string]any, len(span.Attributes))
	for _, kv := range span.Attributes {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}

	return out
}

func TestAttributeFilter_AllowsScanKeys(t *testing.T) {
	t.Parallel()

	tp, exporter := filteredProvider(nil)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("scan.fingerprint", "abc"),
		attribute.Int64("batch.last_id", 100),
		attribute.String("error.type", "fetch"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := spanAttrMap(spans[0])
	assert.Equal(t, "abc", attrs["scan.fingerprint"])
	assert.Equal(t, int64(100), attrs["batch.last_id"])
	assert.Equal(t, "fetch", attrs["error.type"])
}

func TestAttributeFilter_StripsDocumentData(t *testing.T) {
	t.Parallel()

	tp, exporter := filteredProvider(nil)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(
		attribute.String("document.content", "<p>secret</p>"),
		attribute.String("document.locator", "https://example.com/draft"),
		attribute.String("author.name", "someone"),
		attribute.String("user.id", "12345"),
		attribute.String("random.key", "x"),
		attribute.Int64("cursor.position", 7),
	)
	span.End()

	attrs := spanAttrMap(exporter.GetSpans()[0])

	assert.NotContains(t, attrs, "document.content")
	assert.NotContains(t, attrs, "document.locator")
	assert.NotContains(t, attrs, "author.name")
	assert.NotContains(t, attrs, "user.id")
	assert.NotContains(t, attrs, "random.key")
	assert.Equal(t, int64(7), attrs["cursor.position"])
}

func TestAttributeFilter_LogsDroppedKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	tp, _ := filteredProvider(slog.New(slog.NewTextHandler(&buf, nil)))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.String("author.email", "a@example.com"))
	span.End()

	assert.Contains(t, buf.String(), "span attribute dropped")
	assert.Contains(t, buf.String(), "author.email")
}
