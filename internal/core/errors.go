package core

import "errors"

// ErrorKind classifies a pipeline failure by the stage that produced it.
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindDecoding          ErrorKind = "decoding"
	KindSchema            ErrorKind = "schema"
	KindRendering         ErrorKind = "rendering"
	KindPackaging         ErrorKind = "packaging"
)

// SplitError is the typed failure returned by every pipeline stage.
// Message is safe to show to users; Err carries the underlying cause.
type SplitError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SplitError) Error() string {
	if e.Err != nil && e.Message == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SplitError) Unwrap() error { return e.Err }

// Is matches any SplitError of the same kind, so the sentinels below work
// with errors.Is.
func (e *SplitError) Is(target error) bool {
	t, ok := target.(*SplitError)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrUnsupportedFormat = &SplitError{Kind: KindUnsupportedFormat}
	ErrDecoding          = &SplitError{Kind: KindDecoding}
	ErrSchema            = &SplitError{Kind: KindSchema}
	ErrRendering         = &SplitError{Kind: KindRendering}
	ErrPackaging         = &SplitError{Kind: KindPackaging}
)

var (
	// ErrEmptyFile is returned for uploads with no content at all.
	ErrEmptyFile = errors.New("empty file")

	// ErrNoDataRows is returned when a file holds a header but no rows.
	ErrNoDataRows = errors.New("no data rows after header")
)

// errorKind returns the kind of a pipeline error, defaulting to packaging
// for failures raised outside the parsing and rendering stages.
func errorKind(err error) ErrorKind {
	var se *SplitError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindPackaging
}
