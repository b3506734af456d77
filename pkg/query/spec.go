// Package query holds the filter set that selects documents for an audit and
// derives the fingerprint its cursor is stored under.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Filter keys understood by the document stores.
const (
	KeyCategory = "category"
	KeyStatus   = "status"
	KeyAuthor   = "author"
)

// AnyValue disables the category predicate when given as the only category.
const AnyValue = "any"

// fingerprintBytes is the number of hash bytes kept in a fingerprint.
const fingerprintBytes = 16

const valueSeparator = ","

// Sentinel errors for filter validation.
var (
	ErrReservedKey   = errors.New("ordering and pagination are controlled by the scanner")
	ErrUnknownFilter = errors.New("unknown filter key")
	ErrMalformed     = errors.New("malformed filter, expected key=value")
)

// reservedKeys may never appear in a filter set.
var reservedKeys = map[string]bool{
	"order":          true,
	"orderby":        true,
	"paged":          true,
	"offset":         true,
	"posts_per_page": true,
}

// aliases maps accepted spellings onto canonical filter keys.
var aliases = map[string]string{
	KeyCategory:   KeyCategory,
	"post_type":   KeyCategory,
	KeyStatus:     KeyStatus,
	"post_status": KeyStatus,
	KeyAuthor:     KeyAuthor,
	"post_author": KeyAuthor,
}

// Spec is an ordered set of filters. The zero value matches everything.
// A Spec is never modified after construction; With returns a copy.
type Spec struct {
	keys   []string
	values map[string][]string
}

// New builds a Spec from key/value-list pairs, validating every key.
func New(pairs ...Pair) (Spec, error) {
	spec := Spec{values: make(map[string][]string, len(pairs))}

	for _, p := range pairs {
		key, err := canonicalKey(p.Key)
		if err != nil {
			return Spec{}, err
		}

		if _, seen := spec.values[key]; !seen {
			spec.keys = append(spec.keys, key)
		}

		spec.values[key] = append(spec.values[key], p.Values...)
	}

	return spec, nil
}

// Pair is one filter key with its values.
type Pair struct {
	Key    string
	Values []string
}

// Parse builds a Spec from "key=value[,value...]" arguments, in order.
func Parse(args []string) (Spec, error) {
	pairs := make([]Pair, 0, len(args))

	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "--"))

		if !ok || key == "" {
			return Spec{}, fmt.Errorf("%w: %q", ErrMalformed, arg)
		}

		pairs = append(pairs, Pair{Key: key, Values: splitValues(raw)})
	}

	return New(pairs...)
}

func splitValues(raw string) []string {
	parts := strings.Split(raw, valueSeparator)
	values := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}

	return values
}

func canonicalKey(key string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(key))

	if reservedKeys[lower] {
		return "", fmt.Errorf("%w: %q", ErrReservedKey, key)
	}

	canonical, ok := aliases[lower]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}

	return canonical, nil
}

// Keys returns the filter keys in insertion order.
func (s Spec) Keys() []string {
	return slices.Clone(s.keys)
}

// Values returns the values for key, or nil.
func (s Spec) Values(key string) []string {
	return slices.Clone(s.values[key])
}

// Has reports whether key was given.
func (s Spec) Has(key string) bool {
	_, ok := s.values[key]

	return ok
}

// Empty reports whether the Spec has no filters.
func (s Spec) Empty() bool {
	return len(s.keys) == 0
}

// MatchesAnyCategory reports whether the category filter is absent or contains "any".
func (s Spec) MatchesAnyCategory() bool {
	values, ok := s.values[KeyCategory]

	return !ok || slices.Contains(values, AnyValue)
}

// With returns a copy of s where key is set to values. Existing keys keep
// their position.
func (s Spec) With(key string, values ...string) Spec {
	out := Spec{
		keys:   slices.Clone(s.keys),
		values: make(map[string][]string, len(s.values)+1),
	}

	for k, v := range s.values {
		out.values[k] = slices.Clone(v)
	}

	if _, seen := out.values[key]; !seen {
		out.keys = append(out.keys, key)
	}

	out.values[key] = slices.Clone(values)

	return out
}

// Canonical returns the serialization the fingerprint is computed from:
// keys sorted, each value list sorted and deduplicated.
func (s Spec) Canonical() string {
	keys := slices.Clone(s.keys)
	slices.Sort(keys)

	entries := make([][2]any, 0, len(keys))

	for _, key := range keys {
		values := slices.Clone(s.values[key])
		slices.Sort(values)
		values = slices.Compact(values)

		if values == nil {
			values = []string{}
		}

		entries = append(entries, [2]any{key, values})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		// Only strings are marshaled.
		panic(fmt.Sprintf("query: marshal canonical form: %v", err))
	}

	return string(data)
}

// Fingerprint returns a short, stable hash of the canonical serialization.
func (s Spec) Fingerprint() string {
	sum := sha256.Sum256([]byte(s.Canonical()))

	return hex.EncodeToString(sum[:fingerprintBytes])
}

// String renders the filters as "key=v1,v2" pairs in insertion order.
func (s Spec) String() string {
	parts := make([]string, 0, len(s.keys))

	for _, key := range s.keys {
		parts = append(parts, key+"="+strings.Join(s.values[key], valueSeparator))
	}

	return strings.Join(parts, " ")
}
