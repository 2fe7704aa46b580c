package core

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fixedDetector always reports the same encoding.
type fixedDetector string

func (d fixedDetector) Detect([]byte) string { return string(d) }

func testIngestor(detected string) *Ingestor {
	return &Ingestor{Detector: fixedDetector(detected)}
}

// memTasks is a minimal TaskStore for service tests.
type memTasks struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func newMemTasks() *memTasks { return &memTasks{tasks: make(map[string]Task)} }

func (m *memTasks) Create(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *memTasks) Get(_ context.Context, id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t, nil
}

func (m *memTasks) Update(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrTaskNotFound
	}
	m.tasks[t.ID] = t
	return nil
}

// dirArchives publishes archives by renaming them into dir.
type dirArchives struct{ dir string }

func (d dirArchives) Publish(_ context.Context, name, src string) (string, error) {
	dst := filepath.Join(d.dir, name)
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (d dirArchives) Open(_ context.Context, loc string) (io.ReadCloser, int64, error) {
	f, err := os.Open(loc)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func mustIngest(t *testing.T, in *Ingestor, name, content string) *Dataset {
	t.Helper()
	ds, err := in.Ingest(context.Background(), name, []byte(content))
	if err != nil {
		t.Fatalf("Ingest(%s): %v", name, err)
	}
	return ds
}

func columnValues(ds *Dataset, column string) []string {
	idx := ds.ColumnIndex(column)
	out := make([]string, len(ds.Rows))
	for i, r := range ds.Rows {
		out[i] = r[idx].String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
