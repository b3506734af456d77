package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// allowedPrefixes are attribute key prefixes that reach the exporter.
var allowedPrefixes = []string{
	"blockaudit.",
	"scan.",
	"batch.",
	"cursor.",
	"block.",
	"error.",
}

// blockedPrefixes are always stripped, even when an allowed prefix matches.
var blockedPrefixes = []string{
	"user.",
	"author.",
	"document.content",
	"document.locator",
}

// attributeFilter is a SpanProcessor that strips attributes outside the
// allow-list before forwarding spans to its delegate. Document bodies, author
// names and URLs never leave the process.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewAttributeFilter returns a SpanProcessor that filters span attributes.
// When logger is non-nil, every dropped key is logged at warn level.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

// OnStart delegates to the wrapped processor.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd delegates a filtered view of the span.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

// Shutdown delegates to the wrapped processor.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush delegates to the wrapped processor.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) allowed(key string) bool {
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return f.drop(key)
		}
	}

	if key == "error" {
		return true
	}

	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return f.drop(key)
}

func (f *attributeFilter) drop(key string) bool {
	if f.logger != nil {
		f.logger.Warn("span attribute dropped", "key", key)
	}

	return false
}

// filteredSpan wraps a ReadOnlySpan and returns only allowed attributes.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns only the allowed attributes.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if s.filter.allowed(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}
