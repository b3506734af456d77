package scan_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/blockaudit/pkg/cursor"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
	"github.com/Sumatoshi-tech/blockaudit/pkg/scan"
)

var errBoom = errors.New("boom")

func corpus(n int) *docstore.MemoryStore {
	store := docstore.NewMemoryStore()

	for i := 1; i <= n; i++ {
		category := "post"
		if i%3 == 0 {
			category = "page"
		}

		store.Add(docstore.Document{
			ID:       int64(i),
			Category: category,
			Status:   "publish",
			Locator:  fmt.Sprintf("https://example.com/?p=%d", i),
		})
	}

	return store
}

func plan(t *testing.T, args ...string) scan.Plan {
	t.Helper()

	spec, err := query.Parse(args)
	require.NoError(t, err)

	return scan.Plan{Key: spec, Filter: spec}
}

func newScanner(t *testing.T, docs docstore.Store, cursors cursor.Store, cfg scan.Config) *scan.Scanner {
	t.Helper()

	s, err := scan.New(docs, cursors, cfg)
	require.NoError(t, err)

	return s
}

func collectIDs(ids *[]int64) scan.Func {
	return func(_ context.Context, doc docstore.Document) error {
		*ids = append(*ids, doc.ID)

		return nil
	}
}

func position(t *testing.T, cursors cursor.Store, p scan.Plan) int64 {
	t.Helper()

	pos, _, err := cursors.Read(context.Background(), p.Key.Fingerprint())
	require.NoError(t, err)

	return pos
}

func TestRun_FullScanCommitsEveryBatch(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(25), cursors, scan.Config{BatchSize: 10})
	p := plan(t)

	var ids []int64

	stats, err := s.Run(context.Background(), p, collectIDs(&ids))
	require.NoError(t, err)

	assert.Len(t, ids, 25)
	assert.IsIncreasing(t, ids)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, int64(25), stats.Documents)
	assert.Equal(t, int64(25), stats.EndPosition)
	assert.Len(t, stats.BatchDurations, 3)
	assert.Equal(t, int64(25), position(t, cursors, p))
}

func TestRun_ExactMultipleOfBatchSize(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(20), cursors, scan.Config{BatchSize: 10})

	stats, err := s.Run(context.Background(), plan(t), func(context.Context, docstore.Document) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, int64(20), stats.EndPosition)
}

func TestRun_ResumesAfterCallbackFailure(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(25), cursors, scan.Config{BatchSize: 10})
	p := plan(t)

	var first []int64

	_, err := s.Run(context.Background(), p, func(ctx context.Context, doc docstore.Document) error {
		if doc.ID == 15 {
			return errBoom
		}

		return collectIDs(&first)(ctx, doc)
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(10), position(t, cursors, p), "cursor stays at the last committed batch")

	var second []int64

	stats, err := s.Run(context.Background(), p, collectIDs(&second))
	require.NoError(t, err)

	assert.Equal(t, int64(10), stats.StartPosition)
	assert.Equal(t, int64(11), second[0])
	assert.Len(t, second, 15)
}

func TestRun_IdempotentAfterFullScan(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(7), cursors, scan.Config{BatchSize: 3})
	p := plan(t)

	_, err := s.Run(context.Background(), p, func(context.Context, docstore.Document) error { return nil })
	require.NoError(t, err)

	var ids []int64

	stats, err := s.Run(context.Background(), p, collectIDs(&ids))
	require.NoError(t, err)

	assert.Empty(t, ids)
	assert.Zero(t, stats.Batches)
	assert.Equal(t, int64(7), position(t, cursors, p))
}

func TestRewind_ResetsWithoutScanning(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(5), cursors, scan.Config{BatchSize: 2})
	p := plan(t, "category=post")

	_, err := s.Run(context.Background(), p, func(context.Context, docstore.Document) error { return nil })
	require.NoError(t, err)
	require.Equal(t, int64(5), position(t, cursors, p))

	require.NoError(t, s.Rewind(context.Background(), p.Key))

	_, ok, err := cursors.Read(context.Background(), p.Key.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_DistinctQueriesKeepSeparateCursors(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(9), cursors, scan.Config{BatchSize: 4})

	posts := plan(t, "category=post")
	pages := plan(t, "category=page")

	var postIDs, pageIDs []int64

	_, err := s.Run(context.Background(), posts, collectIDs(&postIDs))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), pages, collectIDs(&pageIDs))
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 4, 5, 7, 8}, postIDs)
	assert.Equal(t, []int64{3, 6, 9}, pageIDs)
	assert.Equal(t, int64(8), position(t, cursors, posts))
	assert.Equal(t, int64(9), position(t, cursors, pages))
}

func TestRun_KeyNamesCursorFilterSelectsDocuments(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(6), cursors, scan.Config{BatchSize: 10})

	key := plan(t).Key
	filter := plan(t, "category=page").Filter

	var ids []int64

	_, err := s.Run(context.Background(), scan.Plan{Key: key, Filter: filter}, collectIDs(&ids))
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 6}, ids)

	pos, ok, err := cursors.Read(context.Background(), key.Fingerprint())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(6), pos)
}

type failingStore struct {
	docstore.Store

	failAfter int64
}

func (f failingStore) Fetch(ctx context.Context, spec query.Spec, afterID int64, limit int) ([]docstore.Document, error) {
	if afterID >= f.failAfter {
		return nil, errBoom
	}

	return f.Store.Fetch(ctx, spec, afterID, limit)
}

func TestRun_FetchErrorLeavesCursor(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, failingStore{Store: corpus(30), failAfter: 20}, cursors, scan.Config{BatchSize: 10})
	p := plan(t)

	stats, err := s.Run(context.Background(), p, func(context.Context, docstore.Document) error { return nil })
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, int64(20), position(t, cursors, p))
}

type rewindingStore struct {
	docstore.Store
}

func (rewindingStore) Fetch(context.Context, query.Spec, int64, int) ([]docstore.Document, error) {
	return []docstore.Document{{ID: 1}}, nil
}

func TestRun_RejectsCursorRegression(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	p := plan(t)
	require.NoError(t, cursors.Write(context.Background(), p.Key.Fingerprint(), 5))

	s := newScanner(t, rewindingStore{Store: corpus(10)}, cursors, scan.Config{BatchSize: 10})

	_, err := s.Run(context.Background(), p, func(context.Context, docstore.Document) error { return nil })
	require.ErrorIs(t, err, scan.ErrCursorRegression)
	assert.Equal(t, int64(5), position(t, cursors, p))
}

type brokenSink struct{}

func (brokenSink) Start(int64) error    { return errBoom }
func (brokenSink) Document(int64) error { return errBoom }
func (brokenSink) Batch(int64) error    { return errBoom }
func (brokenSink) Finish() error        { return errBoom }

func TestRun_ProgressFailuresAreIgnored(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(5), cursors, scan.Config{BatchSize: 2, Progress: brokenSink{}})

	stats, err := s.Run(context.Background(), plan(t), func(context.Context, docstore.Document) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Documents)
}

func TestRun_CanceledContextStopsAtBatchBoundary(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	s := newScanner(t, corpus(30), cursors, scan.Config{BatchSize: 10})
	p := plan(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.Run(ctx, p, func(_ context.Context, doc docstore.Document) error {
		if doc.ID == 10 {
			cancel()
		}

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(10), position(t, cursors, p))
}

func TestRun_EmitsSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	s := newScanner(t, corpus(5), cursor.NewMemoryStore(), scan.Config{BatchSize: 2, Tracer: tp.Tracer("test")})

	_, err := s.Run(context.Background(), plan(t), func(context.Context, docstore.Document) error { return nil })
	require.NoError(t, err)

	counts := map[string]int{}
	for _, span := range exporter.GetSpans() {
		counts[span.Name]++
	}

	assert.Equal(t, 1, counts["blockaudit.scan"])
	assert.Equal(t, 3, counts["blockaudit.scan.batch"])
}

func TestNew_RejectsNegativeBatchSize(t *testing.T) {
	t.Parallel()

	_, err := scan.New(corpus(1), cursor.NewMemoryStore(), scan.Config{BatchSize: -1})
	require.ErrorIs(t, err, scan.ErrInvalidBatchSize)
}
