package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/blockaudit/pkg/blocks"
	"github.com/Sumatoshi-tech/blockaudit/pkg/cursor"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
	"github.com/Sumatoshi-tech/blockaudit/pkg/scan"
)

// Defaults are applied to filters the user left out. They never change the
// cursor fingerprint.
type Defaults struct {
	// Status is used when no status filter is given. Empty means none.
	Status string
	// ExcludedCategories are removed from the store's categories when no
	// category filter is given.
	ExcludedCategories []string
}

// EffectiveQuery returns filters with defaults applied.
func EffectiveQuery(ctx context.Context, docs docstore.Store, filters query.Spec, d Defaults) (query.Spec, error) {
	effective := filters

	if !filters.Has(query.KeyStatus) && d.Status != "" {
		effective = effective.With(query.KeyStatus, d.Status)
	}

	if !filters.Has(query.KeyCategory) {
		all, err := docs.Categories(ctx)
		if err != nil {
			return query.Spec{}, fmt.Errorf("list categories: %w", err)
		}

		kept := slices.DeleteFunc(all, func(c string) bool {
			return slices.Contains(d.ExcludedCategories, c)
		})

		effective = effective.With(query.KeyCategory, kept...)
	}

	return effective, nil
}

// ParseFunc turns document content into a block tree.
type ParseFunc func(content string) (blocks.Block, error)

// Options wires a run to its collaborators.
type Options struct {
	Docs     docstore.Store
	Cursors  cursor.Store
	Scan     scan.Config
	Defaults Defaults
	// Parser defaults to blocks.Parse.
	Parser   ParseFunc
	Registry *Registry
	// Resolver defaults to LocatorReference.
	Resolver ReferenceResolver
	Logger   *slog.Logger
}

// Request is one invocation of the audit.
type Request struct {
	Filters query.Spec
	OrderBy OrderBy
	Rewind  bool
}

// Report is the outcome of Run.
type Report struct {
	// Rewound is set when the request only reset the cursor.
	Rewound bool
	Stats   scan.Stats
	// ExtractionErrors counts documents whose markup could not be parsed.
	ExtractionErrors int
	Result           Result
}

// Run audits the documents matching req.Filters that lie after the stored
// cursor. With req.Rewind it only resets the cursor. A run that aggregates
// nothing returns ErrNoResults.
func Run(ctx context.Context, opts Options, req Request) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	if opts.Scan.Logger == nil {
		opts.Scan.Logger = logger
	}

	parse := opts.Parser
	if parse == nil {
		parse = blocks.Parse
	}

	scanner, err := scan.New(opts.Docs, opts.Cursors, opts.Scan)
	if err != nil {
		return Report{}, err
	}

	if req.Rewind {
		err = scanner.Rewind(ctx, req.Filters)
		if err != nil {
			return Report{}, err
		}

		return Report{Rewound: true}, nil
	}

	filter, err := EffectiveQuery(ctx, opts.Docs, req.Filters, opts.Defaults)
	if err != nil {
		return Report{}, err
	}

	agg := NewAggregator(
		WithRegistry(opts.Registry),
		WithReferenceResolver(opts.Resolver),
		WithLogger(logger),
	)

	var report Report

	report.Stats, err = scanner.Run(ctx, scan.Plan{Key: req.Filters, Filter: filter},
		func(ctx context.Context, doc docstore.Document) error {
			root, parseErr := parse(doc.Content)
			if parseErr != nil {
				report.ExtractionErrors++
				opts.Scan.Metrics.RecordExtractionError(ctx)
				logger.WarnContext(ctx, "skipping document with malformed blocks",
					"document", doc.ID, "error", parseErr)

				return nil
			}

			agg.AddDocument(ctx, doc, blocks.Flatten(root))

			return nil
		})
	if err != nil {
		return report, fmt.Errorf("scan: %w", err)
	}

	report.Result, err = Finalize(agg.Aggregates(), req.OrderBy)
	if err != nil {
		return report, err
	}

	return report, nil
}
