package audit

import (
	"errors"
	"fmt"
	"maps"
)

// ErrInvalidDetails is returned by Details.Validate for values other than
// counters and histograms.
var ErrInvalidDetails = errors.New("invalid details")

// Details holds structural statistics for one block type. Each value is
// either a counter (int) or a histogram (map[string]int).
type Details map[string]any

// Increment adds one to the counter at key.
func (d Details) Increment(key string) {
	n, _ := d[key].(int)
	d[key] = n + 1
}

// IncrementIn adds one to bucket within the histogram at key. A non-histogram
// value at key is replaced.
func (d Details) IncrementIn(key, bucket string) {
	hist, ok := d[key].(map[string]int)
	if !ok {
		hist = map[string]int{}
		d[key] = hist
	}

	hist[bucket]++
}

// Validate reports whether every value is a counter or a histogram.
func (d Details) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil map", ErrInvalidDetails)
	}

	for key, value := range d {
		switch value.(type) {
		case int, map[string]int:
		default:
			return fmt.Errorf("%w: %q holds %T", ErrInvalidDetails, key, value)
		}
	}

	return nil
}

// Clone returns a deep copy of d.
func (d Details) Clone() Details {
	out := make(Details, len(d))

	for key, value := range d {
		if hist, ok := value.(map[string]int); ok {
			out[key] = maps.Clone(hist)

			continue
		}

		out[key] = value
	}

	return out
}
