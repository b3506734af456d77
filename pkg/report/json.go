package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/Sumatoshi-tech/blockaudit/pkg/audit"
)

func renderJSON(w io.Writer, res audit.Result) error {
	var buf bytes.Buffer

	buf.WriteByte('[')

	for i, row := range res.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}

		err := encodeJSON(&buf, row)
		if err != nil {
			return err
		}
	}

	buf.WriteString("]\n")

	_, err := w.Write(buf.Bytes())

	return err
}

// encodeJSON writes value as compact JSON, keeping the key order of rows.
func encodeJSON(buf *bytes.Buffer, value any) error {
	row, ok := value.(audit.Row)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}

		buf.Write(data)

		return nil
	}

	buf.WriteByte('{')

	for i, cell := range row {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(cell.Key)
		if err != nil {
			return err
		}

		buf.Write(key)
		buf.WriteByte(':')

		err = encodeJSON(buf, cell.Value)
		if err != nil {
			return err
		}
	}

	buf.WriteByte('}')

	return nil
}
