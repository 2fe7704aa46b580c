package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// TextSeparators are tried, in order, when parsing freeform text uploads.
var TextSeparators = []rune{'\t', ',', ';', '|'}

// Ingestor turns raw upload bytes into a Dataset.
type Ingestor struct {
	Detector CharsetDetector
}

// NewIngestor returns an Ingestor using the statistical charset detector.
func NewIngestor() *Ingestor {
	return &Ingestor{Detector: NewChardetDetector()}
}

// Ingest parses data according to the extension of filename.
func (in *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (*Dataset, error) {
	format, _, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read file", Err: ErrEmptyFile}
	}

	var ds *Dataset
	switch format {
	case FormatCSV:
		ds, err = in.readCSV(ctx, data)
	case FormatText:
		ds, err = in.readText(ctx, data)
	case FormatXLSX:
		ds, err = readXLSX(data)
	case FormatXLS:
		ds, err = readXLS(data)
	}
	if err != nil {
		return nil, err
	}
	if len(ds.Rows) == 0 {
		return nil, &SplitError{Kind: KindDecoding, Message: "unable to read file", Err: ErrNoDataRows}
	}
	return ds, nil
}

// IngestColumn parses data and checks that column exists before anything
// else happens to the dataset.
func (in *Ingestor) IngestColumn(ctx context.Context, filename string, data []byte, column string) (*Dataset, error) {
	ds, err := in.Ingest(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if _, err := ds.RequireColumn(column); err != nil {
		return nil, err
	}
	return ds, nil
}

func (in *Ingestor) detect(raw []byte) string {
	if in.Detector == nil {
		return ""
	}
	return in.Detector.Detect(raw)
}

// readCSV walks the candidate encodings; the first one that decodes and
// parses wins.
func (in *Ingestor) readCSV(ctx context.Context, raw []byte) (*Dataset, error) {
	logger := logging.FromContext(ctx)
	detected := in.detect(raw)
	candidates := candidateEncodings(detected)

	for _, enc := range candidates {
		logger.Debug("trying csv encoding", "encoding", enc, "detected", detected)

		text, err := decodeStrict(raw, enc)
		if err != nil {
			logger.Debug("csv decode failed", "encoding", enc, "error", err)
			continue
		}
		ds, err := parseDelimited(text, ',')
		if err != nil {
			logger.Debug("csv parse failed", "encoding", enc, "error", err)
			continue
		}
		ds.Encoding = enc
		ds.Delimiter = ','
		logger.Info("csv decoded", "encoding", enc, "columns", len(ds.Columns), "rows", len(ds.Rows))
		return ds, nil
	}

	return nil, &SplitError{
		Kind:    KindDecoding,
		Message: fmt.Sprintf("unable to decode CSV file, tried encodings: [%s]", strings.Join(candidates, ", ")),
	}
}

// readText decodes with the single detected encoding, then looks for a
// separator that yields more than one column. Without one, every non-blank
// line becomes a row of the synthetic content column.
func (in *Ingestor) readText(ctx context.Context, raw []byte) (*Dataset, error) {
	logger := logging.FromContext(ctx)
	enc := canonicalEncoding(in.detect(raw))
	if enc == "" {
		enc = EncodingUTF8
	}

	text, err := decodeStrict(raw, enc)
	if err != nil {
		return nil, &SplitError{
			Kind:    KindDecoding,
			Message: fmt.Sprintf("unable to decode text file, tried encodings: [%s]", enc),
			Err:     err,
		}
	}

	for _, sep := range TextSeparators {
		ds, err := parseDelimited(text, sep)
		if err != nil || len(ds.Columns) <= 1 {
			continue
		}
		ds.Encoding = enc
		ds.Delimiter = sep
		logger.Info("text decoded", "encoding", enc, "separator", string(sep), "columns", len(ds.Columns))
		return ds, nil
	}

	ds := &Dataset{Columns: []string{SyntheticColumn}, Synthetic: true, Encoding: enc}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r\n\v\f")
		if line == "" {
			continue
		}
		ds.Rows = append(ds.Rows, Row{StringValue(line)})
	}
	logger.Info("text decoded as single column", "encoding", enc, "rows", len(ds.Rows))
	return ds, nil
}

// parseDelimited reads text with sep, using the first record as the header.
func parseDelimited(text string, sep rune) (*Dataset, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return newDataset(records[0], records[1:])
}
