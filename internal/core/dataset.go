package core

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Format identifies how an upload is parsed and how its groups are rendered.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatText Format = "txt"
)

// SupportedExtensions lists the accepted upload extensions in display order.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls", ".txt"}

// DetectFormat maps a declared filename to its format by extension.
// It returns the lowercased extension alongside the format.
func DetectFormat(filename string) (Format, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return FormatCSV, ext, nil
	case ".xlsx":
		return FormatXLSX, ext, nil
	case ".xls":
		return FormatXLS, ext, nil
	case ".txt":
		return FormatText, ext, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return "", ext, &SplitError{
		Kind:    KindUnsupportedFormat,
		Message: fmt.Sprintf("unsupported file type %s (supported: %s)", ext, strings.Join(SupportedExtensions, ", ")),
	}
}

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a single cell: a string, a number, or null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// NullValue returns the missing-value marker.
func NullValue() Value { return Value{} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the missing-value marker.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Number returns the numeric payload and whether v is a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// String renders v as text. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	default:
		return ""
	}
}

// Any returns v as a plain Go value for writers that take interface slices.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	default:
		return nil
	}
}

// ParseCell converts raw cell text into a Value. Empty text is null; text
// that survives a float64 round trip unchanged is a number; everything else
// stays a string so leading zeros and formatting are never lost.
func ParseCell(raw string) Value {
	if raw == "" {
		return NullValue()
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return StringValue(raw)
	}
	if formatNumber(f) != raw {
		return StringValue(raw)
	}
	return NumberValue(f)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Row holds one value per Dataset column, in column order.
type Row []Value

// SyntheticColumn names the single column produced when a text file has no
// usable delimiter.
const SyntheticColumn = "content"

// Dataset is the parsed, uniform form of an upload.
type Dataset struct {
	Columns []string
	Rows    []Row

	// Synthetic is set when Columns is the single SyntheticColumn produced
	// by the freeform-text fallback.
	Synthetic bool

	// Encoding and Delimiter record how a text upload was decoded.
	// Both are zero for spreadsheets.
	Encoding  string
	Delimiter rune
}

// ColumnIndex returns the position of name in Columns, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// RequireColumn fails with a schema error listing the available columns when
// name is not one of the dataset's columns.
func (d *Dataset) RequireColumn(name string) (int, error) {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return -1, &SplitError{
			Kind:    KindSchema,
			Message: fmt.Sprintf("column %q not found; available columns: [%s]", name, quoteJoin(d.Columns)),
		}
	}
	return idx, nil
}

// newDataset builds a Dataset from a header record and raw text records,
// typing each field with ParseCell.
func newDataset(header []string, records [][]string) (*Dataset, error) {
	typed := make([][]Value, len(records))
	for i, rec := range records {
		typed[i] = parseRecord(rec)
	}
	return newTypedDataset(header, typed)
}

// parseRecord types every field of a text record.
func parseRecord(rec []string) []Value {
	values := make([]Value, len(rec))
	for i, s := range rec {
		values[i] = ParseCell(s)
	}
	return values
}

// newTypedDataset builds a Dataset from a header and already typed records.
// Header names are made unique, short records are padded with nulls and
// records with more fields than the header are rejected.
func newTypedDataset(header []string, records [][]Value) (*Dataset, error) {
	ds := &Dataset{Columns: uniqueColumns(header)}
	width := len(ds.Columns)
	ds.Rows = make([]Row, 0, len(records))

	for i, rec := range records {
		if len(rec) > width {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", i+2, width, len(rec))
		}
		row := make(Row, width)
		copy(row, rec)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// uniqueColumns names blank headers "Unnamed: <i>" and suffixes repeats
// with ".<n>", so every column name is distinct.
func uniqueColumns(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for n := 1; seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		seen[candidate] = true
		cols[i] = candidate
	}
	return cols
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, ", ")
}
