package export

import (
	"bytes"
	"encoding/json"

	"symdir/models"
)

// encodeJSON writes an array of objects whose keys follow the column order,
// one record per line.
func encodeJSON(listings []models.Listing, cols []Column) ([]byte, error) {
	keys := make([][]byte, len(cols))
	for i, c := range cols {
		k, err := json.Marshal(string(c))
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for n, l := range listings {
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n  {")
		for i, c := range cols {
			if i > 0 {
				buf.WriteByte(',')
			}
			v, err := json.Marshal(c.value(l))
			if err != nil {
				return nil, err
			}
			buf.Write(keys[i])
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	if len(listings) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}
