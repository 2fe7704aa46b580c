package core

import "io"

// BOMSkippingReader wraps an io.Reader and drops a leading UTF-8 byte order
// mark (0xEF 0xBB 0xBF), which spreadsheet tools on Windows commonly write.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	pending    []byte // bytes read during the BOM check that were not a BOM
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. The first call checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if !(n == 3 && hasUTF8BOM(r.buf[:])) {
			r.pending = r.buf[:n]
		}
		if err == io.EOF {
			if len(r.pending) == 0 {
				return 0, io.EOF
			}
			copied := copy(p, r.pending)
			r.pending = r.pending[copied:]
			if len(r.pending) == 0 {
				return copied, io.EOF
			}
			return copied, nil
		}
	}

	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		if copied < len(p) {
			n, err := r.reader.Read(p[copied:])
			return copied + n, err
		}
		return copied, nil
	}

	return r.reader.Read(p)
}
