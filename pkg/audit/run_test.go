package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
	"github.com/Sumatoshi-tech/blockaudit/pkg/blocks"
	"github.com/Sumatoshi-tech/blockaudit/pkg/cursor"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
	"github.com/Sumatoshi-tech/blockaudit/pkg/scan"
)

var contents = []string{
	`<!-- wp:heading --><h2>A</h2><!-- /wp:heading --><!-- wp:paragraph {"align":"center"} --><p>x</p><!-- /wp:paragraph -->`,
	`<!-- wp:group --><div><!-- wp:paragraph --><p>y</p><!-- /wp:paragraph --><!-- wp:paragraph --><p>z</p><!-- /wp:paragraph --></div><!-- /wp:group -->`,
	`<p>legacy content</p>`,
	`<!-- wp:button {"align":"left"} /-->` + "\n\n" + `<!-- wp:heading {"level":3} --><h3>B</h3><!-- /wp:heading -->`,
}

func corpus(n int) *docstore.MemoryStore {
	store := docstore.NewMemoryStore()

	categories := []string{"post", "page", "post", "revision"}
	statuses := []string{"publish", "publish", "draft", "publish"}

	for i := 0; i < n; i++ {
		store.Add(docstore.Document{
			ID:       int64(i + 1),
			Category: categories[i%len(categories)],
			Status:   statuses[i%len(statuses)],
			Locator:  fmt.Sprintf("https://example.com/?p=%d", i+1),
			Content:  contents[i%len(contents)],
		})
	}

	return store
}

func options(docs docstore.Store, cursors cursor.Store, batchSize int) audit.Options {
	return audit.Options{
		Docs:     docs,
		Cursors:  cursors,
		Scan:     scan.Config{BatchSize: batchSize},
		Defaults: audit.Defaults{Status: "publish", ExcludedCategories: []string{"revision"}},
	}
}

func filters(t *testing.T, args ...string) query.Spec {
	t.Helper()

	spec, err := query.Parse(args)
	require.NoError(t, err)

	return spec
}

type totals struct{ count, docs int }

func tally(t *testing.T, res audit.Result) map[string]totals {
	t.Helper()

	out := map[string]totals{}

	for _, row := range res.Rows {
		name, _ := row.Get(audit.ColumnName)
		count, _ := row.Get(audit.ColumnCount)
		docs, _ := row.Get(audit.ColumnPostCount)
		out[name.(string)] = totals{count: count.(int), docs: docs.(int)}
	}

	return out
}

func TestEffectiveQuery_AppliesDefaults(t *testing.T) {
	t.Parallel()

	store := corpus(8)
	d := audit.Defaults{Status: "publish", ExcludedCategories: []string{"revision"}}

	effective, err := audit.EffectiveQuery(context.Background(), store, query.Spec{}, d)
	require.NoError(t, err)

	assert.Equal(t, []string{"publish"}, effective.Values(query.KeyStatus))
	assert.Equal(t, []string{"page", "post"}, effective.Values(query.KeyCategory))

	given := filters(t, "category=page", "status=draft")

	effective, err = audit.EffectiveQuery(context.Background(), store, given, d)
	require.NoError(t, err)

	assert.Equal(t, given.Canonical(), effective.Canonical())
}

func TestRun_AuditsPublishedDocuments(t *testing.T) {
	t.Parallel()

	report, err := audit.Run(context.Background(), options(corpus(8), cursor.NewMemoryStore(), 3), audit.Request{
		OrderBy: audit.OrderByName,
	})
	require.NoError(t, err)

	// Published, non-revision documents: 1, 2, 5, 6.
	assert.Equal(t, int64(4), report.Stats.Documents)
	assert.Equal(t, map[string]totals{
		"core/heading":   {count: 2, docs: 2},
		"core/paragraph": {count: 6, docs: 4},
		"core/group":     {count: 2, docs: 2},
	}, tally(t, report.Result))

	heading := report.Result.Rows[1]
	details, _ := heading.Get(audit.ColumnDetails)
	assert.Equal(t, audit.Row{{Key: "H2", Value: 2}}, details)
}

func TestRun_SecondRunHasNoResults(t *testing.T) {
	t.Parallel()

	opts := options(corpus(8), cursor.NewMemoryStore(), 3)

	_, err := audit.Run(context.Background(), opts, audit.Request{})
	require.NoError(t, err)

	report, err := audit.Run(context.Background(), opts, audit.Request{})
	require.ErrorIs(t, err, audit.ErrNoResults)
	assert.Zero(t, report.Stats.Documents)
}

type flakyCursors struct {
	cursor.Store

	writes    int
	failWrite int
}

func (f *flakyCursors) Write(ctx context.Context, fp string, pos int64) error {
	f.writes++
	if f.writes == f.failWrite {
		return errors.New("disk full")
	}

	return f.Store.Write(ctx, fp, pos)
}

func TestRun_ResumedRunsAddUpToOneRun(t *testing.T) {
	t.Parallel()

	request := audit.Request{Filters: filters(t, "category=any", "status=publish,draft")}

	whole, err := audit.Run(context.Background(), options(corpus(40), cursor.NewMemoryStore(), 5), request)
	require.NoError(t, err)

	cursors := &flakyCursors{Store: cursor.NewMemoryStore(), failWrite: 3}
	opts := options(corpus(40), cursors, 5)

	_, err = audit.Run(context.Background(), opts, request)
	require.Error(t, err)

	pos, ok, err := cursors.Read(context.Background(), request.Filters.Fingerprint())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(10), pos)

	// The interrupted run lost its aggregates; re-audit the committed part.
	first, err := audit.Run(context.Background(), options(corpus(10), cursor.NewMemoryStore(), 5), request)
	require.NoError(t, err)

	second, err := audit.Run(context.Background(), opts, request)
	require.NoError(t, err)
	assert.Equal(t, int64(30), second.Stats.Documents)

	combined := tally(t, first.Result)
	for name, v := range tally(t, second.Result) {
		c := combined[name]
		combined[name] = totals{count: c.count + v.count, docs: c.docs + v.docs}
	}

	assert.Equal(t, tally(t, whole.Result), combined)
}

func TestRun_RewindResetsWithoutProcessing(t *testing.T) {
	t.Parallel()

	cursors := cursor.NewMemoryStore()
	opts := options(corpus(8), cursors, 3)

	_, err := audit.Run(context.Background(), opts, audit.Request{})
	require.NoError(t, err)

	parsed := 0
	opts.Parser = func(content string) (blocks.Block, error) {
		parsed++

		return blocks.Parse(content)
	}

	report, err := audit.Run(context.Background(), opts, audit.Request{Rewind: true})
	require.NoError(t, err)

	assert.True(t, report.Rewound)
	assert.Zero(t, parsed)

	_, ok, err := cursors.Read(context.Background(), query.Spec{}.Fingerprint())
	require.NoError(t, err)
	assert.False(t, ok)

	report, err = audit.Run(context.Background(), opts, audit.Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.Stats.Documents)
}

func TestRun_MalformedDocumentIsSkipped(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemoryStore(
		docstore.Document{ID: 1, Category: "post", Status: "publish", Content: `<!-- wp:group --><div>`},
		docstore.Document{ID: 2, Category: "post", Status: "publish", Content: `<!-- wp:quote /-->`},
	)

	report, err := audit.Run(context.Background(), options(store, cursor.NewMemoryStore(), 10), audit.Request{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExtractionErrors)
	assert.Equal(t, int64(2), report.Stats.Documents)
	assert.Equal(t, map[string]totals{"core/quote": {count: 1, docs: 1}}, tally(t, report.Result))
}

func TestRun_ScanFailureIsFatal(t *testing.T) {
	t.Parallel()

	cursors := &flakyCursors{Store: cursor.NewMemoryStore(), failWrite: 1}

	_, err := audit.Run(context.Background(), options(corpus(8), cursors, 3), audit.Request{})
	require.Error(t, err)
	require.NotErrorIs(t, err, audit.ErrNoResults)
}
