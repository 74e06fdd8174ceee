package export

import (
	"github.com/xuri/excelize/v2"

	"symdir/models"
)

const sheetName = "Listings"

func encodeXLSX(listings []models.Listing, cols []Column) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, err
	}

	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = string(c)
	}
	if err := sw.SetRow("A1", row); err != nil {
		return nil, err
	}

	for n, l := range listings {
		for i, c := range cols {
			row[i] = c.value(l)
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
