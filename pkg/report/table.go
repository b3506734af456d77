package report

import (
	"bytes"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

// newTable lays res out with one column per entry of res.Columns.
func newTable(res audit.Result) table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleDefault)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}

	tbl.AppendHeader(header)

	for _, row := range res.Rows {
		cells := make(table.Row, len(res.Columns))

		for i, col := range res.Columns {
			value, _ := row.Get(col)
			cells[i] = cellText(value)
		}

		tbl.AppendRow(cells)
	}

	return tbl
}

// cellText prints scalars as-is and lists or mappings as compact JSON.
func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64:
		return fmt.Sprintf("%d", v)
	default:
		var buf bytes.Buffer

		err := encodeJSON(&buf, v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return buf.String()
	}
}
