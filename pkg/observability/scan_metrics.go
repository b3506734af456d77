package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricDocumentsTotal        = "blockaudit.scan.documents.total"
	metricBatchesTotal          = "blockaudit.scan.batches.total"
	metricExtractionErrorsTotal = "blockaudit.scan.extraction_errors.total"
	metricBatchDuration         = "blockaudit.scan.batch.duration.seconds"
)

// durationBucketBoundaries covers 1ms to 300s: small batches on a local
// database up to large batches against a slow store.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// ScanMetrics holds OTel instruments for the batch scanner.
type ScanMetrics struct {
	documentsTotal   metric.Int64Counter
	batchesTotal     metric.Int64Counter
	extractionErrors metric.Int64Counter
	batchDuration    metric.Float64Histogram
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	docs, err := mt.Int64Counter(metricDocumentsTotal,
		metric.WithDescription("Total documents audited"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDocumentsTotal, err)
	}

	batches, err := mt.Int64Counter(metricBatchesTotal,
		metric.WithDescription("Total batches committed"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchesTotal, err)
	}

	extraction, err := mt.Int64Counter(metricExtractionErrorsTotal,
		metric.WithDescription("Documents whose block markup could not be parsed"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricExtractionErrorsTotal, err)
	}

	batchDur, err := mt.Float64Histogram(metricBatchDuration,
		metric.WithDescription("Per-batch processing duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBatchDuration, err)
	}

	return &ScanMetrics{
		documentsTotal:   docs,
		batchesTotal:     batches,
		extractionErrors: extraction,
		batchDuration:    batchDur,
	}, nil
}

// RecordBatch records one committed batch.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordBatch(ctx context.Context, documents int, duration time.Duration) {
	if sm == nil {
		return
	}

	sm.documentsTotal.Add(ctx, int64(documents))
	sm.batchesTotal.Add(ctx, 1)
	sm.batchDuration.Record(ctx, duration.Seconds())
}

// RecordExtractionError counts a document whose blocks were skipped.
// Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordExtractionError(ctx context.Context) {
	if sm == nil {
		return
	}

	sm.extractionErrors.Add(ctx, 1)
}
