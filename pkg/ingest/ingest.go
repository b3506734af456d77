// Package ingest loads newline-delimited JSON documents, plain or
// lz4-compressed, into a document store. Every document is checked against
// the embedded document schema before it is stored.
package ingest

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/blockaudit/pkg/docstore"
	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

// DefaultBatchSize is the number of documents inserted per transaction.
const DefaultBatchSize = 500

// CompressedExtension marks lz4-compressed input files.
const CompressedExtension = ".lz4"

//go:embed document.schema.json
var documentSchema []byte

// Sentinel errors.
var (
	ErrInvalidDocument  = errors.New("document does not match schema")
	ErrEmpty            = errors.New("no documents in input")
	ErrInvalidBatchSize = errors.New("ingest batch size must be positive")
)

// Inserter stores a batch of documents.
type Inserter interface {
	Insert(ctx context.Context, docs ...docstore.Document) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize sets the number of documents per Insert call.
func WithBatchSize(n int) Option {
	return func(l *Loader) { l.batchSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader validates and stores documents.
type Loader struct {
	schema    *gojsonschema.Schema
	logger    *slog.Logger
	batchSize int
}

// NewLoader compiles the document schema.
func NewLoader(opts ...Option) (*Loader, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}

	l := &Loader{
		schema:    schema,
		logger:    observability.DiscardLogger(),
		batchSize: DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, l.batchSize)
	}

	return l, nil
}

// Validate checks one raw JSON document against the schema.
func (l *Loader) Validate(raw []byte) error {
	result, err := l.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(problems, "; "))
}

// Load reads documents from r until EOF and inserts them into dst in
// batches. It returns the number of documents stored. Batches inserted
// before an error stay stored.
func (l *Loader) Load(ctx context.Context, dst Inserter, r io.Reader) (int64, error) {
	dec := json.NewDecoder(r)

	var total int64

	batch := make([]docstore.Document, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		err := dst.Insert(ctx, batch...)
		if err != nil {
			return err
		}

		total += int64(len(batch))
		l.logger.DebugContext(ctx, "batch imported", "documents", len(batch), "total", total)
		batch = batch[:0]

		return nil
	}

	for n := 1; ; n++ {
		var raw json.RawMessage

		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return total, fmt.Errorf("decode document %d: %w", n, err)
		}

		err = l.Validate(raw)
		if err != nil {
			return total, fmt.Errorf("document %d: %w", n, err)
		}

		var doc docstore.Document

		err = json.Unmarshal(raw, &doc)
		if err != nil {
			return total, fmt.Errorf("decode document %d: %w", n, err)
		}

		batch = append(batch, doc)

		if len(batch) == l.batchSize {
			err = flush()
			if err != nil {
				return total, err
			}
		}
	}

	err := flush()
	if err != nil {
		return total, err
	}

	if total == 0 {
		return 0, ErrEmpty
	}

	return total, nil
}

// Open opens path for reading, decompressing it when it ends in CompressedExtension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	if !strings.HasSuffix(path, CompressedExtension) {
		return f, nil
	}

	return compressedReader{Reader: lz4.NewReader(f), file: f}, nil
}

type compressedReader struct {
	*lz4.Reader
	file *os.File
}

func (c compressedReader) Close() error {
	return c.file.Close()
}
