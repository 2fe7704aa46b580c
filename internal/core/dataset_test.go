package core

import (
	"errors"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"a.csv", FormatCSV, false},
		{"A.CSV", FormatCSV, false},
		{"book.xlsx", FormatXLSX, false},
		{"old.xls", FormatXLS, false},
		{"notes.txt", FormatText, false},
		{"dir.v2/notes", "", true},
		{"archive.zip", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := DetectFormat(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("err = %v, want unsupported format", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("DetectFormat = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw  string
		kind Kind
	}{
		{"", KindNull},
		{"42", KindNumber},
		{"-3.25", KindNumber},
		{"0.1", KindNumber},
		{"007", KindString},
		{"1.50", KindString},
		{"1e3", KindString},
		{"NaN", KindString},
		{"Inf", KindString},
		{" 5", KindString},
		{"abc", KindString},
	}
	for _, tt := range tests {
		v := ParseCell(tt.raw)
		if v.Kind() != tt.kind {
			t.Errorf("ParseCell(%q).Kind() = %d, want %d", tt.raw, v.Kind(), tt.kind)
		}
		if v.String() != tt.raw {
			t.Errorf("ParseCell(%q).String() = %q, want the input back", tt.raw, v.String())
		}
	}
}

func TestValueAny(t *testing.T) {
	if NullValue().Any() != nil {
		t.Error("null Any() != nil")
	}
	if StringValue("x").Any() != "x" {
		t.Error("string Any() mismatch")
	}
	if NumberValue(2).Any() != 2.0 {
		t.Error("number Any() mismatch")
	}
}

func TestNewDataset_RejectsExtraFields(t *testing.T) {
	_, err := newDataset([]string{"a", "b"}, [][]string{{"1", "2"}, {"1", "2", "3"}})
	if err == nil || err.Error() != "line 3: expected 2 fields, saw 3" {
		t.Errorf("err = %v", err)
	}
}

func TestUniqueColumns(t *testing.T) {
	got := uniqueColumns([]string{"x", "x", "", "x.1", " "})
	want := []string{"x", "x.1", "Unnamed: 2", "x.1.1", "Unnamed: 4"}
	if !equalStrings(got, want) {
		t.Errorf("uniqueColumns = %q, want %q", got, want)
	}
}
