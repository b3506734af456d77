// Package report renders finalized audit results.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

// ErrUnknownFormat is returned for unsupported output formats.
var ErrUnknownFormat = errors.New("unknown format")

// Format names an output format.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCount Format = "count"
	FormatPlot  Format = "plot"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatCSV, FormatJSON, FormatYAML, FormatCount, FormatPlot}

// ParseFormat validates a format name. An empty name selects FormatTable.
func ParseFormat(name string) (Format, error) {
	if name == "" {
		return FormatTable, nil
	}

	for _, f := range Formats {
		if strings.EqualFold(name, string(f)) {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Render writes res to w in format.
func Render(w io.Writer, format Format, res audit.Result) error {
	var err error

	switch format {
	case FormatTable, "":
		err = writeString(w, newTable(res).Render()+"\n")
	case FormatCSV:
		err = renderCSV(w, res)
	case FormatJSON:
		err = renderJSON(w, res)
	case FormatYAML:
		err = renderYAML(w, res)
	case FormatCount:
		err = writeString(w, fmt.Sprintf("%d\n", len(res.Rows)))
	case FormatPlot:
		err = renderPlot(w, res)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}

	return nil
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)

	return err
}
