// Package audit folds flattened block sequences into per-type statistics and
// orders them for rendering.
package audit

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/blockaudit/pkg/blocks"
	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

// Aggregate is the running statistic of one block type.
type Aggregate struct {
	Name             string
	Count            int
	DocumentCount    int
	ExampleReference string
	// Categories lists each containing category once, in first-seen order.
	Categories []string
	Details    Details

	categorySet map[string]struct{}
}

func (a *Aggregate) addCategory(category string) {
	if _, seen := a.categorySet[category]; seen {
		return
	}

	a.categorySet[category] = struct{}{}
	a.Categories = append(a.Categories, category)
}

// ReferenceResolver returns the example reference recorded for a block type
// first seen in doc.
type ReferenceResolver func(doc docstore.Document) string

// LocatorReference is the default ReferenceResolver.
func LocatorReference(doc docstore.Document) string {
	return doc.Locator
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRegistry sets the extension collectors.
func WithRegistry(r *Registry) Option {
	return func(a *Aggregator) { a.registry = r }
}

// WithReferenceResolver overrides how example references are chosen.
func WithReferenceResolver(fn ReferenceResolver) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.resolve = fn
		}
	}
}

// WithLogger sets the logger used for collector failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator owns the block type to Aggregate mapping of one run. It is not
// safe for concurrent use.
type Aggregator struct {
	registry *Registry
	resolve  ReferenceResolver
	logger   *slog.Logger

	order  []*Aggregate
	byName map[string]*Aggregate
	// extensions caches Registry.Has per block type.
	extensions map[string]bool
	seen       map[string]struct{}
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		resolve:    LocatorReference,
		logger:     observability.DiscardLogger(),
		byName:     map[string]*Aggregate{},
		extensions: map[string]bool{},
		seen:       map[string]struct{}{},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// AddDocument folds the flattened blocks of doc into the mapping. Name-less
// blocks must already be renamed, as blocks.Flatten does.
func (a *Aggregator) AddDocument(ctx context.Context, doc docstore.Document, flat []blocks.Block) {
	clear(a.seen)

	for _, block := range flat {
		if block.Name == "" {
			continue
		}

		agg := a.aggregate(block.Name, doc)
		agg.Count++
		agg.addCategory(doc.Category)
		agg.Details = a.collect(ctx, agg.Details, block)

		a.seen[block.Name] = struct{}{}
	}

	for name := range a.seen {
		a.byName[name].DocumentCount++
	}
}

// Aggregates returns the aggregates in first-seen order.
func (a *Aggregator) Aggregates() []*Aggregate {
	return a.order
}

// Len returns the number of distinct block types seen.
func (a *Aggregator) Len() int {
	return len(a.order)
}

func (a *Aggregator) aggregate(name string, doc docstore.Document) *Aggregate {
	if agg, ok := a.byName[name]; ok {
		return agg
	}

	agg := &Aggregate{
		Name:             name,
		ExampleReference: a.resolve(doc),
		Details:          Details{},
		categorySet:      map[string]struct{}{},
	}

	a.byName[name] = agg
	a.order = append(a.order, agg)

	return agg
}

func (a *Aggregator) collect(ctx context.Context, details Details, block blocks.Block) Details {
	collectBuiltins(details, block)

	has, ok := a.extensions[block.Name]
	if !ok {
		has = a.registry.Has(block.Name)
		a.extensions[block.Name] = has
	}

	if !has {
		return details
	}

	out, err := a.registry.apply(details, block)
	if err != nil {
		a.logger.DebugContext(ctx, "detail collector failed, resetting details",
			"block", block.Name, "error", err)

		return Details{}
	}

	return out
}
