package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// MaxKeyLength caps the sanitized group key inside an artifact filename.
const MaxKeyLength = 50

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// OutputArtifact is one rendered group, ready for packaging.
type OutputArtifact struct {
	Key      string
	Filename string
	Data     []byte
	RowCount int
}

// SanitizeKey replaces characters outside letters, digits, underscore,
// hyphen and dot with underscores and truncates to MaxKeyLength.
func SanitizeKey(key string) string {
	safe := unsafeFilenameChars.ReplaceAllString(key, "_")
	if len(safe) > MaxKeyLength {
		safe = safe[:MaxKeyLength]
	}
	return safe
}

// OutputExtension is the extension artifacts of an upload are written with.
// Legacy .xls uploads come back as .xlsx workbooks.
func OutputExtension(filename string) (string, error) {
	format, _, err := DetectFormat(filename)
	if err != nil {
		return "", err
	}
	if format == FormatXLS {
		return ".xlsx", nil
	}
	return filepath.Ext(filename), nil
}

// Materialize renders every group in the format of the original upload.
// Filenames are "<stem>_<sanitized key><ext>" and are unique within the
// result, compared case-insensitively; clashes get "_2", "_3" and so on.
func Materialize(ctx context.Context, ds *Dataset, groups []RowGroup, originalFilename string) ([]OutputArtifact, error) {
	format, _, err := DetectFormat(originalFilename)
	if err != nil {
		return nil, err
	}
	ext, _ := OutputExtension(originalFilename)
	base := filepath.Base(originalFilename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	names := newFilenameSet()
	artifacts := make([]OutputArtifact, 0, len(groups))
	for _, g := range groups {
		data, err := renderGroup(format, ds, g.Rows)
		if err != nil {
			return nil, &SplitError{
				Kind:    KindRendering,
				Message: fmt.Sprintf("unable to render group %q", g.Key),
				Err:     err,
			}
		}
		artifacts = append(artifacts, OutputArtifact{
			Key:      g.Key,
			Filename: names.claim(stem, SanitizeKey(g.Key), ext),
			Data:     data,
			RowCount: len(g.Rows),
		})
	}

	logging.FromContext(ctx).Info("groups rendered", "artifacts", len(artifacts), "extension", ext)
	return artifacts, nil
}

func renderGroup(format Format, ds *Dataset, rows []Row) ([]byte, error) {
	switch format {
	case FormatXLSX, FormatXLS:
		return renderXLSX(ds.Columns, rows)
	case FormatCSV:
		return renderDelimited(ds.Columns, rows, ',')
	case FormatText:
		if ds.Synthetic && len(ds.Columns) == 1 {
			return renderLines(rows), nil
		}
		return renderDelimited(ds.Columns, rows, '\t')
	}
	return nil, fmt.Errorf("no renderer for format %q", format)
}

// renderDelimited writes a header and rows as UTF-8 delimited text.
func renderDelimited(columns []string, rows []Row, sep rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = sep

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i := range record {
			record[i] = row[i].String()
		}
		// A lone empty field would be a blank line, which readers skip.
		if len(record) == 1 && record[0] == "" {
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderLines writes the single column one value per line, no header.
func renderLines(rows []Row) []byte {
	var buf bytes.Buffer
	for _, row := range rows {
		buf.WriteString(row[0].String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

type filenameSet map[string]bool

func newFilenameSet() filenameSet { return make(filenameSet) }

func (s filenameSet) claim(stem, key, ext string) string {
	name := stem + "_" + key + ext
	for n := 2; s[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("%s_%s_%d%s", stem, key, n, ext)
	}
	s[strings.ToLower(name)] = true
	return name
}
