package audit

import (
	"fmt"
	"regexp"

	"github.com/Sumatoshi-tech/blockaudit/pkg/blocks"
)

// Block types with built-in collectors.
const (
	EmbedBlock   = "core/embed"
	HeadingBlock = "core/heading"
)

// Detail keys written by the built-in collectors.
const (
	AlignKey    = "align"
	ProviderKey = "providerNameSlug"
)

var headingTag = regexp.MustCompile(`^H\d$`)

// Collector enriches the details of one block type with a single occurrence
// of that type. It may add keys or increment counters and returns the updated
// map. A nil map or an error resets the type's details.
type Collector func(details Details, block blocks.Block) (Details, error)

// Registry holds extension collectors: wildcard collectors that see every
// block type and collectors bound to one type name. It must not be modified
// while an Aggregator is using it.
type Registry struct {
	all    []Collector
	byName map[string][]Collector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string][]Collector{}}
}

// RegisterAll adds a collector that runs for every block type.
func (r *Registry) RegisterAll(c Collector) {
	r.all = append(r.all, c)
}

// Register adds a collector that runs only for blocks named name.
func (r *Registry) Register(name string, c Collector) {
	r.byName[name] = append(r.byName[name], c)
}

// Has reports whether any extension collector applies to name.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}

	return len(r.all) > 0 || len(r.byName[name]) > 0
}

// apply runs the wildcard collectors and then the collectors for the block's
// type, each receiving its predecessor's result.
func (r *Registry) apply(details Details, block blocks.Block) (Details, error) {
	chain := append(r.all[:len(r.all):len(r.all)], r.byName[block.Name]...)

	for _, c := range chain {
		var err error

		details, err = c(details, block)
		if err != nil {
			return nil, err
		}

		if details == nil {
			return nil, fmt.Errorf("%w: nil map", ErrInvalidDetails)
		}
	}

	return details, details.Validate()
}

// collectBuiltins applies the align collector and then the collector for the
// block's exact type, if any.
func collectBuiltins(details Details, block blocks.Block) {
	if align, ok := block.Attrs[AlignKey].(string); ok {
		details.IncrementIn(AlignKey, align)
	}

	switch block.Name {
	case EmbedBlock:
		if slug, ok := block.Attrs[ProviderKey].(string); ok && slug != "" {
			details.IncrementIn(ProviderKey, slug)
		}
	case HeadingBlock:
		for _, tag := range blocks.StartTags(block.InnerHTML) {
			if headingTag.MatchString(tag) {
				details.Increment(tag)
			}
		}
	}
}
