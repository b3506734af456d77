package audit

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// ErrNoResults is returned by Finalize when nothing was aggregated.
var ErrNoResults = errors.New("no results")

// ErrInvalidOrderBy is returned by ParseOrderBy for unknown sort keys.
var ErrInvalidOrderBy = errors.New("invalid order-by")

// OrderBy selects the sort key of the finalized rows.
type OrderBy string

// Sort keys.
const (
	// OrderByName sorts by block name ascending.
	OrderByName OrderBy = "name"
	// OrderByCount sorts by occurrence count descending.
	OrderByCount OrderBy = "count"
	// OrderByPostCount sorts by distinct document count descending.
	OrderByPostCount OrderBy = "post_count"
)

// orderByAliases maps accepted spellings to sort keys.
var orderByAliases = map[string]OrderBy{
	"name":           OrderByName,
	"count":          OrderByCount,
	"post_count":     OrderByPostCount,
	"document_count": OrderByPostCount,
}

// ParseOrderBy validates a sort key. An empty string selects OrderByName.
func ParseOrderBy(s string) (OrderBy, error) {
	if s == "" {
		return OrderByName, nil
	}

	o, ok := orderByAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q (want name, count or post_count)", ErrInvalidOrderBy, s)
	}

	return o, nil
}

// Column headers of finalized rows, in order.
const (
	ColumnName       = "Block Name"
	ColumnCount      = "Count"
	ColumnPostCount  = "Post Count"
	ColumnExample    = "Example URL"
	ColumnCategories = "Categories"
	ColumnDetails    = "Details"
)

// Cell is one key/value pair of an ordered row.
type Cell struct {
	Key   string
	Value any
}

// Row is an ordered mapping. Renderers must keep its key order.
type Row []Cell

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, c := range r {
		if c.Key == key {
			return c.Value, true
		}
	}

	return nil, false
}

// Keys returns the keys of r in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}

	return keys
}

// Result is the finalized report.
type Result struct {
	// Columns is the key order of the first row.
	Columns []string
	Rows    []Row
}

// Finalize orders aggs by orderBy and converts them to rows. Ties keep the
// order of aggs. Details become a Row sorted by key, or "" when empty.
func Finalize(aggs []*Aggregate, orderBy OrderBy) (Result, error) {
	if len(aggs) == 0 {
		return Result{}, ErrNoResults
	}

	sorted := slices.Clone(aggs)

	switch orderBy {
	case OrderByName, "":
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	case OrderByCount:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	case OrderByPostCount:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DocumentCount > sorted[j].DocumentCount })
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidOrderBy, orderBy)
	}

	rows := make([]Row, 0, len(sorted))
	for _, agg := range sorted {
		rows = append(rows, toRow(agg))
	}

	return Result{Columns: rows[0].Keys(), Rows: rows}, nil
}

func toRow(agg *Aggregate) Row {
	categories := slices.Clone(agg.Categories)
	if categories == nil {
		categories = []string{}
	}

	return Row{
		{Key: ColumnName, Value: agg.Name},
		{Key: ColumnCount, Value: agg.Count},
		{Key: ColumnPostCount, Value: agg.DocumentCount},
		{Key: ColumnExample, Value: agg.ExampleReference},
		{Key: ColumnCategories, Value: categories},
		{Key: ColumnDetails, Value: sortedDetails(agg.Details)},
	}
}

func sortedDetails(d Details) any {
	if len(d) == 0 {
		return ""
	}

	row := make(Row, 0, len(d))

	for _, k := range slices.Sorted(maps.Keys(d)) {
		value := d[k]
		if hist, ok := value.(map[string]int); ok {
			value = sortedHistogram(hist)
		}

		row = append(row, Cell{Key: k, Value: value})
	}

	return row
}

func sortedHistogram(hist map[string]int) Row {
	row := make(Row, 0, len(hist))

	for _, k := range slices.Sorted(maps.Keys(hist)) {
		row = append(row, Cell{Key: k, Value: hist[k]})
	}

	return row
}
