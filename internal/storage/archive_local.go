package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalArchiveStore keeps archives in a directory on local disk. Locations
// are absolute file paths inside that directory.
type LocalArchiveStore struct {
	dir string
}

// NewLocalArchiveStore creates dir if needed.
func NewLocalArchiveStore(dir string) (*LocalArchiveStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve results dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &LocalArchiveStore{dir: abs}, nil
}

// Dir returns the absolute results directory.
func (s *LocalArchiveStore) Dir() string { return s.dir }

// Publish moves srcPath to <dir>/<name>. When a rename is not possible, as
// across filesystems, the file is copied and the source removed.
func (s *LocalArchiveStore) Publish(_ context.Context, name, srcPath string) (string, error) {
	dst := filepath.Join(s.dir, filepath.Base(name))

	if err := os.Rename(srcPath, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(srcPath, dst); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("publish %s: %w", name, err)
	}
	os.Remove(srcPath)
	return dst, nil
}

// Open opens a location returned by Publish. Paths outside the results
// directory are refused.
func (s *LocalArchiveStore) Open(_ context.Context, location string) (io.ReadCloser, int64, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, 0, err
	}
	rel, err := filepath.Rel(s.dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, 0, fmt.Errorf("archive %s is outside the results directory", location)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, 0, fmt.Errorf("open archive: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat archive: %w", err)
	}
	return f, st.Size(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
