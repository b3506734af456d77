// Package scan iterates a document store in ID-ordered batches and persists
// a resumption cursor after every committed batch.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/blockaudit/pkg/cursor"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
	"github.com/Sumatoshi-tech/blockaudit/pkg/progress"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
)

// DefaultBatchSize is the number of documents fetched per batch.
const DefaultBatchSize = 100

const tracerName = "blockaudit"

var (
	// ErrInvalidBatchSize is returned for non-positive batch sizes.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	// ErrCursorRegression is returned when a store yields a batch that does not
	// move past the cursor.
	ErrCursorRegression = errors.New("batch does not advance cursor")
)

// Func handles one document. A returned error stops the scan before the
// current batch is committed.
type Func func(ctx context.Context, doc docstore.Document) error

// Config holds scanner options. Zero values select defaults.
type Config struct {
	BatchSize int
	Progress  progress.Sink
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *observability.ScanMetrics
}

// Plan describes one scan.
type Plan struct {
	// Key is the query whose fingerprint names the cursor, normally the
	// filters exactly as the user gave them.
	Key query.Spec
	// Filter is the query sent to the document store, with defaults applied.
	Filter query.Spec
}

// Stats summarizes a scan.
type Stats struct {
	Fingerprint    string
	StartPosition  int64
	EndPosition    int64
	Documents      int64
	Batches        int
	BatchDurations []time.Duration
}

// Scanner runs plans against a document store.
type Scanner struct {
	docs    docstore.Store
	cursors cursor.Store
	cfg     Config
}

// New creates a Scanner.
func New(docs docstore.Store, cursors cursor.Store, cfg Config) (*Scanner, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, cfg.BatchSize)
	}

	if cfg.Progress == nil {
		cfg.Progress = progress.Nop{}
	}

	if cfg.Logger == nil {
		cfg.Logger = observability.DiscardLogger()
	}

	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	return &Scanner{docs: docs, cursors: cursors, cfg: cfg}, nil
}

// Rewind resets the cursor of key without scanning.
func (s *Scanner) Rewind(ctx context.Context, key query.Spec) error {
	fp := key.Fingerprint()

	err := s.cursors.Reset(ctx, fp)
	if err != nil {
		return fmt.Errorf("rewind cursor %s: %w", fp, err)
	}

	s.cfg.Logger.InfoContext(ctx, "cursor rewound", "fingerprint", fp)

	return nil
}

// Run calls fn for every document matching plan.Filter after the stored
// cursor, in ID order. The cursor advances to the last ID of each batch once
// fn has returned nil for all of its documents. Errors from the store, the
// cursor store or fn end the scan with the cursor at the last committed batch.
func (s *Scanner) Run(ctx context.Context, plan Plan, fn Func) (Stats, error) {
	fp := plan.Key.Fingerprint()

	pos, _, err := s.cursors.Read(ctx, fp)
	if err != nil {
		return Stats{}, fmt.Errorf("read cursor %s: %w", fp, err)
	}

	stats := Stats{Fingerprint: fp, StartPosition: pos, EndPosition: pos}

	ctx, span := s.cfg.Tracer.Start(ctx, "blockaudit.scan",
		trace.WithAttributes(
			attribute.String("scan.fingerprint", fp),
			attribute.Int("scan.batch_size", s.cfg.BatchSize),
			attribute.Int64("cursor.position", pos),
		))
	defer span.End()

	logger := s.cfg.Logger.With("fingerprint", fp)

	remaining, err := s.docs.Count(ctx, plan.Filter, pos)
	if err != nil {
		return stats, s.fail(span, fmt.Errorf("count documents: %w", err))
	}

	logger.InfoContext(ctx, "scan starting", "cursor", pos, "remaining", remaining, "filter", plan.Filter.String())
	s.notify(ctx, logger, s.cfg.Progress.Start(remaining))

	defer func() { s.notify(ctx, logger, s.cfg.Progress.Finish()) }()

	for {
		err = ctx.Err()
		if err != nil {
			return stats, s.fail(span, fmt.Errorf("scan interrupted at cursor %d: %w", pos, err))
		}

		started := time.Now()

		next, n, batchErr := s.batch(ctx, logger, plan.Filter, pos, fn)
		if batchErr != nil {
			return stats, s.fail(span, batchErr)
		}

		if n == 0 {
			break
		}

		err = s.cursors.Write(ctx, fp, next)
		if err != nil {
			return stats, s.fail(span, fmt.Errorf("commit cursor %d: %w", next, err))
		}

		elapsed := time.Since(started)
		pos = next
		stats.EndPosition = pos
		stats.Documents += int64(n)
		stats.Batches++
		stats.BatchDurations = append(stats.BatchDurations, elapsed)

		s.cfg.Metrics.RecordBatch(ctx, n, elapsed)
		s.notify(ctx, logger, s.cfg.Progress.Batch(pos))
		logger.DebugContext(ctx, "batch committed", "cursor", pos, "documents", n, "elapsed", elapsed)

		if n < s.cfg.BatchSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int64("scan.documents", stats.Documents),
		attribute.Int("scan.batches", stats.Batches),
		attribute.Int64("cursor.position", pos),
	)

	logger.InfoContext(ctx, "scan finished", "documents", stats.Documents, "batches", stats.Batches, "cursor", pos)

	return stats, nil
}

// batch fetches and handles one batch. It returns the new cursor position and
// the number of documents handled.
func (s *Scanner) batch(
	ctx context.Context, logger *slog.Logger, filter query.Spec, after int64, fn Func,
) (int64, int, error) {
	ctx, span := s.cfg.Tracer.Start(ctx, "blockaudit.scan.batch",
		trace.WithAttributes(attribute.Int64("batch.after_id", after)))
	defer span.End()

	docs, err := s.docs.Fetch(ctx, filter, after, s.cfg.BatchSize)
	if err != nil {
		return after, 0, s.fail(span, fmt.Errorf("fetch batch after %d: %w", after, err))
	}

	if len(docs) == 0 {
		return after, 0, nil
	}

	last := docs[len(docs)-1].ID
	if last <= after {
		return after, 0, s.fail(span, fmt.Errorf("%w: last id %d, cursor %d", ErrCursorRegression, last, after))
	}

	for _, doc := range docs {
		err = fn(ctx, doc)
		if err != nil {
			return after, 0, s.fail(span, fmt.Errorf("process document %d: %w", doc.ID, err))
		}

		s.notify(ctx, logger, s.cfg.Progress.Document(doc.ID))
	}

	span.SetAttributes(
		attribute.Int("batch.documents", len(docs)),
		attribute.Int64("batch.last_id", last),
	)

	return last, len(docs), nil
}

func (s *Scanner) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

// notify logs progress sink failures; they never stop a scan.
func (s *Scanner) notify(ctx context.Context, logger *slog.Logger, err error) {
	if err != nil {
		logger.WarnContext(ctx, "progress sink failed", "error", err)
	}
}
