// Package progress reports scan progress on a side channel. Sinks never see
// aggregation state, and callers treat their errors as non-fatal.
package progress

// Sink receives scan notifications.
type Sink interface {
	// Start is called once with the number of documents left to scan.
	Start(total int64) error
	// Document is called after each processed document.
	Document(id int64) error
	// Batch is called after a batch is committed, with the new cursor position.
	Batch(cursor int64) error
	// Finish is called once when the scan ends, successfully or not.
	Finish() error
}

// Nop discards every notification.
type Nop struct{}

// Start implements Sink.
func (Nop) Start(int64) error { return nil }

// Document implements Sink.
func (Nop) Document(int64) error { return nil }

// Batch implements Sink.
func (Nop) Batch(int64) error { return nil }

// Finish implements Sink.
func (Nop) Finish() error { return nil }
