package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

type pipelineFixture struct {
	pipeline *Pipeline
	scratch  string
	results  string
}

func newPipelineFixture(t *testing.T, detected string) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		scratch: filepath.Join(t.TempDir(), "scratch"),
		results: t.TempDir(),
	}
	if err := os.MkdirAll(f.scratch, 0o755); err != nil {
		t.Fatal(err)
	}
	f.pipeline = &Pipeline{
		Ingestor:    testIngestor(detected),
		Archives:    dirArchives{dir: f.results},
		ScratchRoot: f.scratch,
	}
	return f
}

func (f *pipelineFixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned: %d entries", len(entries))
	}
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func TestPipeline_Big5Departments(t *testing.T) {
	f := newPipelineFixture(t, "")
	raw := big5(t, "部門,姓名\n工程,A\n財務,B\n業務,C\n工程,D\n財務,E\n工程,F\n")

	res := f.pipeline.Run(context.Background(), Job{FileName: "staff.csv", Data: raw, Column: "部門"})
	if !res.Success {
		t.Fatalf("Run failed: %s", res.Error)
	}
	if res.SplitGroups != 3 || res.OutputFiles != 3 {
		t.Errorf("groups = %d, files = %d, want 3 and 3", res.SplitGroups, res.OutputFiles)
	}
	if res.TotalRows != 6 {
		t.Errorf("TotalRows = %d, want 6", res.TotalRows)
	}

	sum := 0
	for _, d := range res.FileDetails {
		sum += d.RowCount
	}
	if sum != res.TotalRows {
		t.Errorf("file detail rows sum to %d, want %d", sum, res.TotalRows)
	}
	if res.FileDetails[0].GroupValue != "工程" || res.FileDetails[0].RowCount != 3 {
		t.Errorf("first detail = %+v", res.FileDetails[0])
	}

	if filepath.Dir(res.ZipPath) != f.results {
		t.Errorf("ZipPath %q not in results dir", res.ZipPath)
	}
	if filepath.Base(res.ZipPath) != "staff_split_results.zip" {
		t.Errorf("archive name = %q", filepath.Base(res.ZipPath))
	}
	if names := zipNames(t, res.ZipPath); len(names) != 3 {
		t.Errorf("zip entries = %q, want 3", names)
	}
	if res.ArchiveDigest == "" {
		t.Error("ArchiveDigest empty")
	}
	f.assertScratchEmpty(t)
}

func TestPipeline_TextFallsBackToSingleColumn(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	res := f.pipeline.Run(context.Background(), Job{
		FileName: "words.txt",
		Data:     []byte("apple\nbanana  \n\napple\n"),
		Column:   SyntheticColumn,
	})
	if !res.Success {
		t.Fatalf("Run failed: %s", res.Error)
	}
	if res.TotalRows != 3 || res.SplitGroups != 2 {
		t.Errorf("rows = %d, groups = %d, want 3 and 2", res.TotalRows, res.SplitGroups)
	}
}

func TestPipeline_MissingValuesGroup(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	res := f.pipeline.Run(context.Background(), Job{
		FileName: "people.csv",
		Data:     []byte("name,dept\na,x\nb,\nc,y\nd,\n"),
		Column:   "dept",
	})
	if !res.Success {
		t.Fatalf("Run failed: %s", res.Error)
	}

	var found bool
	for _, d := range res.FileDetails {
		if d.GroupValue == EmptyGroupKey {
			found = true
			if d.RowCount != 2 {
				t.Errorf("empty group rows = %d, want 2", d.RowCount)
			}
			if d.Filename != "people__empty_.csv" {
				t.Errorf("empty group filename = %q", d.Filename)
			}
		}
	}
	if !found {
		t.Errorf("no %q group in %+v", EmptyGroupKey, res.FileDetails)
	}
}

func TestPipeline_BatchSlices(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	var b strings.Builder
	b.WriteString("id,dept\n")
	for i := 0; i < 7; i++ {
		b.WriteString("1,eng\n")
	}
	b.WriteString("2,ops\n")

	res := f.pipeline.Run(context.Background(), Job{
		FileName:  "big.csv",
		Data:      []byte(b.String()),
		Column:    "dept",
		BatchSize: 3,
	})
	if !res.Success {
		t.Fatalf("Run failed: %s", res.Error)
	}

	engRows := 0
	batches := 0
	for _, d := range res.FileDetails {
		if strings.HasPrefix(d.GroupValue, "eng_batch_") {
			batches++
			engRows += d.RowCount
			if d.RowCount > 3 {
				t.Errorf("%s has %d rows", d.GroupValue, d.RowCount)
			}
		}
	}
	if batches != 3 || engRows != 7 {
		t.Errorf("eng batches = %d with %d rows, want 3 with 7", batches, engRows)
	}
}

func TestPipeline_MissingColumn(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	res := f.pipeline.Run(context.Background(), Job{
		FileName: "people.csv",
		Data:     []byte("name,city\na,b\n"),
		Column:   "dept",
	})
	if res.Success {
		t.Fatal("Run succeeded, want failure")
	}
	if !strings.Contains(res.Error, `available columns: ["name", "city"]`) {
		t.Errorf("Error = %q, want the available columns", res.Error)
	}
	if res.ZipPath != "" || len(res.FileDetails) != 0 {
		t.Errorf("failure result carries output: %+v", res)
	}
	if entries, _ := os.ReadDir(f.results); len(entries) != 0 {
		t.Errorf("archive produced on failure: %d files", len(entries))
	}
	f.assertScratchEmpty(t)
}

func TestPipeline_UnsupportedFormat(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	res := f.pipeline.Run(context.Background(), Job{FileName: "a.json", Data: []byte("{}"), Column: "x"})
	if res.Success || !strings.Contains(res.Error, "unsupported file type .json") {
		t.Errorf("result = %+v", res)
	}
}

type failingArchives struct{ dirArchives }

func (failingArchives) Publish(context.Context, string, string) (string, error) {
	return "", os.ErrPermission
}

func TestPipeline_PublishFailureCleansScratch(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	f.pipeline.Archives = failingArchives{}

	res := f.pipeline.Run(context.Background(), Job{FileName: "a.csv", Data: []byte("k\nv\n"), Column: "k"})
	if res.Success {
		t.Fatal("Run succeeded, want failure")
	}
	if !strings.Contains(res.Error, "unable to publish archive") {
		t.Errorf("Error = %q", res.Error)
	}
	f.assertScratchEmpty(t)
}

type panickingArchives struct{ dirArchives }

func (panickingArchives) Publish(context.Context, string, string) (string, error) {
	panic("boom")
}

func TestPipeline_PanicBecomesFailure(t *testing.T) {
	f := newPipelineFixture(t, "utf-8")
	f.pipeline.Archives = panickingArchives{}

	res := f.pipeline.Run(context.Background(), Job{FileName: "a.csv", Data: []byte("k\nv\n"), Column: "k"})
	if res.Success || !strings.Contains(res.Error, "split job panicked: boom") {
		t.Errorf("result = %+v", res)
	}
	f.assertScratchEmpty(t)
}
