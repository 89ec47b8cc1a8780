package pipeline

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ParseWorkbook reads every sheet of an xlsx, xlsm or legacy xls workbook,
// in workbook order. The container is detected from the content, not the
// file name. Sheets without any row are skipped.
func ParseWorkbook(data []byte) ([]Sheet, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return parseOOXML(data)
	case bytes.HasPrefix(data, ole2Magic):
		return parseBIFF(data)
	case len(data) == 0:
		return nil, fmt.Errorf("%w: empty workbook", ErrParse)
	default:
		return nil, fmt.Errorf("%w: unrecognized workbook container", ErrParse)
	}
}

func parseOOXML(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, name, err)
		}
		if len(rows) == 0 {
			continue
		}
		sheets = append(sheets, newSheet(name, rows))
	}
	return sheets, nil
}

// parseBIFF reads a legacy xls workbook. The reader panics on some corrupt
// inputs; those panics are reported as parse errors.
func parseBIFF(data []byte) (sheets []Sheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets = nil
			err = fmt.Errorf("%w: corrupt xls workbook: %v", ErrParse, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: xls container has no workbook stream", ErrParse)
	}

	for i := range wb.NumSheets() {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		rows := biffRows(ws)
		if len(rows) == 0 {
			continue
		}
		sheets = append(sheets, newSheet(ws.Name, rows))
	}
	return sheets, nil
}

// biffRows keeps absent rows and cells as empty positions and drops
// trailing empty rows, the way excelize reports them.
func biffRows(ws *xls.WorkSheet) [][]string {
	var rows [][]string
	for r := 0; r <= int(ws.MaxRow); r++ {
		row := biffRow(ws, r)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, max(row.LastCol(), 0))
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, trimTrailingEmpty(cells))
	}

	end := len(rows)
	for end > 0 && len(rows[end-1]) == 0 {
		end--
	}
	return rows[:end]
}

func trimTrailingEmpty(cells []string) []string {
	end := len(cells)
	for end > 0 && cells[end-1] == "" {
		end--
	}
	return cells[:end]
}

// biffRow returns nil for rows absent from the sheet; WorkSheet.Row
// dereferences the missing entry.
func biffRow(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
