package core

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX parses the first worksheet of an Office Open XML workbook.
// The first row is the header. Cells are typed from the stored value and
// cell type rather than from their display text.
func readXLSX(data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read xlsx workbook", Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read xlsx workbook", Err: ErrEmptyFile}
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &SplitError{Kind: KindDecoding, Message: fmt.Sprintf("unable to read worksheet %q", sheet), Err: err}
	}

	typer := newXLSXCellTyper(f, sheet)
	rows := make([][]Value, len(raw))
	for i, rec := range raw {
		rows[i] = make([]Value, len(rec))
		for j, s := range rec {
			v, err := typer.value(i, j, s)
			if err != nil {
				return nil, &SplitError{Kind: KindDecoding, Message: fmt.Sprintf("unable to read worksheet %q", sheet), Err: err}
			}
			rows[i][j] = v
		}
	}
	return spreadsheetDataset(rows, "xlsx")
}

// xlsxCellTyper turns raw stored cell text into Values. Numbers carrying a
// date or time format become ISO 8601 strings.
type xlsxCellTyper struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

func newXLSXCellTyper(f *excelize.File, sheet string) *xlsxCellTyper {
	t := &xlsxCellTyper{f: f, sheet: sheet, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		t.date1904 = *props.Date1904
	}
	return t
}

func (t *xlsxCellTyper) value(row, col int, raw string) (Value, error) {
	if raw == "" {
		return NullValue(), nil
	}
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Value{}, err
	}
	typ, err := t.f.GetCellType(t.sheet, cell)
	if err != nil {
		return Value{}, err
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeFormula, excelize.CellTypeDate, excelize.CellTypeError:
		return StringValue(raw), nil
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return StringValue("TRUE"), nil
		}
		return StringValue("FALSE"), nil
	}

	num, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return StringValue(raw), nil
	}
	if t.isDateCell(cell) {
		if when, err := excelize.ExcelDateToTime(num, t.date1904); err == nil {
			return StringValue(formatExcelTime(when, num)), nil
		}
	}
	return NumberValue(num), nil
}

// isDateCell reports whether the cell's number format renders a date or
// time. Results are cached per style.
func (t *xlsxCellTyper) isDateCell(cell string) bool {
	styleID, err := t.f.GetCellStyle(t.sheet, cell)
	if err != nil {
		return false
	}
	if isDate, ok := t.dateStyles[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := t.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	t.dateStyles[styleID] = isDate
	return isDate
}

// isDateNumFmt recognizes the built-in date and time formats and custom
// format codes with date or time tokens outside quoted or bracketed text.
func isDateNumFmt(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		return hasDateTokens(*custom)
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47,
		id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	return false
}

func hasDateTokens(code string) bool {
	var inQuote, inBracket, escaped bool
	for _, r := range strings.ToLower(code) {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'y', r == 'd', r == 'h', r == 's':
			return true
		}
	}
	return false
}

// formatExcelTime renders a serial date as a date, a date and time, or a
// bare time for serials below one day.
func formatExcelTime(t time.Time, serial float64) string {
	switch {
	case serial < 1:
		return t.Format(time.TimeOnly)
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format(time.DateOnly)
	default:
		return t.Format(time.DateTime)
	}
}

// xlsSheet is the part of a BIFF worksheet the reader needs.
type xlsSheet interface {
	rowCount() int
	rowCells(i int) []string
}

type biffSheet struct {
	ws *xls.WorkSheet
}

func (s biffSheet) rowCount() int { return int(s.ws.MaxRow) + 1 }

func (s biffSheet) rowCells(i int) []string {
	row := s.ws.Row(i)
	if row == nil {
		return nil
	}
	cells := make([]string, 0, row.LastCol())
	for j := 0; j < row.LastCol(); j++ {
		cells = append(cells, row.Col(j))
	}
	return cells
}

// readXLS parses the first worksheet of a legacy BIFF workbook. The BIFF
// reader only exposes cell text, so cells are typed with ParseCell.
func readXLS(data []byte) (ds *Dataset, err error) {
	// The BIFF parser panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			ds, err = nil, &SplitError{Kind: KindDecoding, Message: "unable to read xls workbook", Err: fmt.Errorf("%v", r)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read xls workbook", Err: err}
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read xls workbook", Err: ErrEmptyFile}
	}
	return spreadsheetDataset(xlsRows(biffSheet{ws: ws}), "xls")
}

// xlsRows reads every row of sheet, typing cells with ParseCell.
func xlsRows(sheet xlsSheet) [][]Value {
	n := sheet.rowCount()
	rows := make([][]Value, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, parseRecord(sheet.rowCells(i)))
	}
	return rows
}

// spreadsheetDataset skips leading and interior empty rows and takes the first
// remaining row as the header. The header is widened to the widest data row;
// the extra columns get "Unnamed: <i>" names.
func spreadsheetDataset(rows [][]Value, kind string) (*Dataset, error) {
	start := 0
	for start < len(rows) && isEmptyValues(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read " + kind + " workbook", Err: ErrEmptyFile}
	}

	width := len(rows[start])
	data := make([][]Value, 0, len(rows)-start-1)
	for _, r := range rows[start+1:] {
		if isEmptyValues(r) {
			continue
		}
		if len(r) > width {
			width = len(r)
		}
		data = append(data, r)
	}

	header := make([]string, width)
	for i, v := range rows[start] {
		header[i] = v.String()
	}

	ds, err := newTypedDataset(header, data)
	if err != nil {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read " + kind + " workbook", Err: err}
	}
	return ds, nil
}

// isEmptyValues reports whether every cell is null or blank text.
func isEmptyValues(rec []Value) bool {
	for _, v := range rec {
		if strings.TrimSpace(v.String()) != "" {
			return false
		}
	}
	return true
}

// renderXLSX writes columns and rows as a single-sheet workbook, header first.
func renderXLSX(columns []string, rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v.Any()
		}
		if err := sw.SetRow(cell, values); err != nil {
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
