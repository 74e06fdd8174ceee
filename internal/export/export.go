package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"symdir/logger"
	"symdir/models"
)

// ErrUnknownFormat is returned for a format name outside Formats().
var ErrUnknownFormat = errors.New("unknown export format")

type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

const (
	ContentTypeCSV     = "text/csv"
	ContentTypeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON    = "application/json"
	ContentTypeParquet = "application/vnd.apache.parquet"
)

// baseName is the download name used by the dashboard.
const baseName = "usa_tickers_metadata"

func Formats() []Format {
	return []Format{FormatCSV, FormatXLSX, FormatJSON, FormatParquet}
}

// ParseFormat accepts a format name in any case; "excel" is an alias of xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON, FormatParquet:
		return f, nil
	case "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return ContentTypeCSV
	case FormatXLSX:
		return ContentTypeXLSX
	case FormatJSON:
		return ContentTypeJSON
	case FormatParquet:
		return ContentTypeParquet
	default:
		return "application/octet-stream"
	}
}

// FileName is the attachment name for an export in format f.
func (f Format) FileName() string {
	return baseName + "." + string(f)
}

// Export serializes listings with the given column order. The payload
// depends only on its inputs. Nil columns select DefaultColumns.
func Export(listings []models.Listing, format Format, columns []Column) ([]byte, string, error) {
	cols, err := validateColumns(columns)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	var payload []byte
	switch format {
	case FormatCSV:
		payload, err = encodeCSV(listings, cols)
	case FormatXLSX:
		payload, err = encodeXLSX(listings, cols)
	case FormatJSON:
		payload, err = encodeJSON(listings, cols)
	case FormatParquet:
		payload, err = encodeParquet(listings, cols)
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}

	log := logger.GetLogger().WithComponent("export")
	logger.LogPerformanceEntry(log, "export", string(format), time.Since(start), logger.Fields{
		"rows":  len(listings),
		"bytes": len(payload),
	})
	return payload, format.ContentType(), nil
}
