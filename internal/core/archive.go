package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// Archive describes a packaged zip on local disk.
type Archive struct {
	Path    string
	Size    int64
	Digest  string // hex BLAKE3 of the archive bytes
	Entries int
}

// Package writes every artifact into a deflate-compressed zip at
// dir/name, each under its filename at the archive root. Any failure
// removes the partial file.
func Package(ctx context.Context, dir, name string, artifacts []OutputArtifact) (*Archive, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, packagingError(err)
	}

	archive, err := writeArchive(f, artifacts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, packagingError(err)
	}
	archive.Path = path

	logging.FromContext(ctx).Info("archive written",
		"path", path,
		"entries", archive.Entries,
		"bytes", archive.Size,
	)
	return archive, nil
}

func writeArchive(w io.Writer, artifacts []OutputArtifact) (*Archive, error) {
	hasher := blake3.New()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(w, hasher, counter))

	modified := time.Now()
	seen := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if seen[a.Filename] {
			return nil, fmt.Errorf("duplicate archive entry %q", a.Filename)
		}
		seen[a.Filename] = true

		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Filename,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", a.Filename, err)
		}
		if _, err := entry.Write(a.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", a.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	return &Archive{
		Size:    counter.n,
		Digest:  hex.EncodeToString(hasher.Sum(nil)),
		Entries: len(artifacts),
	}, nil
}

func packagingError(err error) error {
	return &SplitError{Kind: KindPackaging, Message: "unable to write archive", Err: err}
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
