package report

import (
	"encoding/csv"
	"io"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

// renderCSV writes RFC 4180 CSV: a header of res.Columns, then one record per
// row with cells formatted as in the table.
func renderCSV(w io.Writer, res audit.Result) error {
	cw := csv.NewWriter(w)

	err := cw.Write(res.Columns)
	if err != nil {
		return err
	}

	for _, row := range res.Rows {
		record := make([]string, len(res.Columns))

		for i, col := range res.Columns {
			value, _ := row.Get(col)
			record[i] = cellText(value)
		}

		err = cw.Write(record)
		if err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}
