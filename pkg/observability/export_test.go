package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProbeBuildResource exposes buildResource for tests.
func ProbeBuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(cfg)
}

// ProbeSampled reports whether a root span is sampled under cfg.
func ProbeSampled(cfg Config) bool {
	tp := sdktrace.NewTracerProvider(traceOptions(cfg)...)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("probe").Start(context.Background(), "probe")
	defer span.End()

	return span.SpanContext().IsSampled()
}
