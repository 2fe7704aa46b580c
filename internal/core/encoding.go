package core

// encoding.go resolves the character encoding of delimited-text uploads.
//
// A statistical detector supplies a best guess; CSV ingestion then walks an
// ordered candidate list (the guess first, then FallbackEncodings) and keeps
// the first candidate that both decodes strictly and parses. Decoding is
// strict: any byte sequence the encoding cannot map fails the candidate
// rather than being silently replaced.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// EncodingUTF8 is the canonical name of UTF-8, also the encoding every
// rendered text artifact uses.
const EncodingUTF8 = "utf-8"

// FallbackEncodings are tried, in order, after the detected encoding.
var FallbackEncodings = []string{
	EncodingUTF8,
	"big5",
	"gbk",
	"gb18030",
	"iso-8859-1",
	"windows-1252",
}

// CharsetDetector guesses the encoding of raw bytes. It returns a canonical
// encoding name, or "" when it has no opinion.
type CharsetDetector interface {
	Detect(raw []byte) string
}

// ChardetDetector is the default CharsetDetector, backed by ICU-style
// statistical recognizers.
type ChardetDetector struct {
	detector *chardet.Detector
}

// NewChardetDetector creates a text detector.
func NewChardetDetector() *ChardetDetector {
	return &ChardetDetector{detector: chardet.NewTextDetector()}
}

// Detect implements CharsetDetector.
func (d *ChardetDetector) Detect(raw []byte) string {
	if hasUTF8BOM(raw) {
		return EncodingUTF8
	}
	result, err := d.detector.DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return canonicalEncoding(result.Charset)
}

// canonicalEncoding normalizes detector and user supplied names.
func canonicalEncoding(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "utf8":
		return EncodingUTF8
	case "gb-18030":
		return "gb18030"
	case "gb2312", "gb_2312-80", "euc-cn":
		return "gbk"
	case "latin-1", "latin1":
		return "iso-8859-1"
	case "cp1252":
		return "windows-1252"
	}
	return n
}

// candidateEncodings returns detected followed by every fallback not equal to it.
func candidateEncodings(detected string) []string {
	detected = canonicalEncoding(detected)
	out := make([]string, 0, len(FallbackEncodings)+1)
	if detected != "" {
		out = append(out, detected)
	}
	for _, enc := range FallbackEncodings {
		if enc != detected {
			out = append(out, enc)
		}
	}
	return out
}

var knownEncodings = map[string]encoding.Encoding{
	"big5":         traditionalchinese.Big5,
	"gbk":          simplifiedchinese.GBK,
	"gb18030":      simplifiedchinese.GB18030,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"shift_jis":    japanese.ShiftJIS,
	"euc-jp":       japanese.EUCJP,
	"euc-kr":       korean.EUCKR,
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if enc, ok := knownEncodings[name]; ok {
		return enc, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return enc, nil
}

// decodeStrict converts raw bytes in the named encoding to UTF-8 text.
// A UTF-8 BOM is dropped. Bytes the encoding cannot map are an error.
func decodeStrict(raw []byte, name string) (string, error) {
	if name == EncodingUTF8 {
		data, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(raw)))
		if err != nil {
			return "", err
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("encoding error: invalid %s byte sequence", name)
		}
		return string(data), nil
	}

	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("encoding error: %s: %w", name, err)
	}
	// x/text decoders substitute U+FFFD for unmappable input.
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.Contains(raw, []byte("\xef\xbf\xbd")) {
		return "", fmt.Errorf("encoding error: invalid %s byte sequence", name)
	}
	return string(out), nil
}

func hasUTF8BOM(raw []byte) bool {
	return len(raw) >= 3 && raw[0] == 0xEF && raw[1] == 0xBB && raw[2] == 0xBF
}
