package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"symdir/models"
)

type memFileWriter struct{ buffer *bytes.Buffer }

func newMemFileWriter() *memFileWriter { return &memFileWriter{buffer: &bytes.Buffer{}} }

func (m *memFileWriter) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFileWriter) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFileWriter) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFileWriter) Read([]byte) (int, error)                  { return 0, nil }
func (m *memFileWriter) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFileWriter) Close() error                              { return nil }
func (m *memFileWriter) Bytes() []byte                             { return m.buffer.Bytes() }

// parquetSchema builds a JSON schema with one UTF8 column per export column.
func parquetSchema(cols []Column) string {
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = fmt.Sprintf(`{"Tag":"name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED"}`, c.key())
	}
	return `{"Tag":"name=listing, repetitiontype=REQUIRED","Fields":[` + strings.Join(fields, ",") + `]}`
}

func encodeParquet(listings []models.Listing, cols []Column) ([]byte, error) {
	mw := newMemFileWriter()
	pw, err := writer.NewJSONWriter(parquetSchema(cols), mw, 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rec := make(map[string]string, len(cols))
	for _, l := range listings {
		for _, c := range cols {
			rec[c.key()] = c.value(l)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if err := pw.Write(string(data)); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet: %w", err)
	}
	return mw.Bytes(), nil
}
