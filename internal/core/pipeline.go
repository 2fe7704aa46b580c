package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/colsplit/internal/logging"
)

// Job is the input of one pipeline run.
type Job struct {
	FileName  string
	Data      []byte
	Column    string
	BatchSize int // 0 means no cap

	// ArchiveName is the name the archive is published under. Empty means
	// "<stem>_split_results.zip".
	ArchiveName string
}

// Pipeline runs ingest, split, materialize and package in sequence.
// Each Run gets its own scratch directory under ScratchRoot and removes it
// before returning.
type Pipeline struct {
	Ingestor    *Ingestor
	Archives    ArchiveStore
	ScratchRoot string // "" means os.TempDir()
}

// NewPipeline returns a pipeline with the default Ingestor.
func NewPipeline(archives ArchiveStore, scratchRoot string) *Pipeline {
	return &Pipeline{
		Ingestor:    NewIngestor(),
		Archives:    archives,
		ScratchRoot: scratchRoot,
	}
}

// ArchiveFileName is the archive name users see for an upload.
func ArchiveFileName(uploadName string) string {
	base := filepath.Base(uploadName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_split_results.zip"
}

// Run executes job and always returns a SplitResult; failures and panics
// become a result with Success false.
func (p *Pipeline) Run(ctx context.Context, job Job) (result SplitResult) {
	logger := logging.FromContext(ctx).With("filename", job.FileName, "column", job.Column)
	ctx = logging.WithContext(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in split pipeline", "panic", r)
			result = failedResult(fmt.Errorf("split job panicked: %v", r))
		}
	}()

	res, err := p.run(ctx, job)
	if err != nil {
		logger.Warn("split failed", "kind", errorKind(err), "error", err)
		return failedResult(err)
	}
	logger.Info("split completed",
		"total_rows", res.TotalRows,
		"groups", res.SplitGroups,
		"archive", res.ZipPath,
	)
	return res
}

func (p *Pipeline) run(ctx context.Context, job Job) (SplitResult, error) {
	if _, _, err := DetectFormat(job.FileName); err != nil {
		return SplitResult{}, err
	}

	ingestor := p.Ingestor
	if ingestor == nil {
		ingestor = NewIngestor()
	}
	ds, err := ingestor.IngestColumn(ctx, job.FileName, job.Data, job.Column)
	if err != nil {
		return SplitResult{}, err
	}

	groups, err := Split(ctx, ds, job.Column, job.BatchSize)
	if err != nil {
		return SplitResult{}, err
	}

	artifacts, err := Materialize(ctx, ds, groups, job.FileName)
	if err != nil {
		return SplitResult{}, err
	}

	scratch, err := os.MkdirTemp(p.ScratchRoot, "colsplit-*")
	if err != nil {
		return SplitResult{}, packagingError(fmt.Errorf("create scratch dir: %w", err))
	}
	defer removeScratch(logging.FromContext(ctx), scratch)

	name := job.ArchiveName
	if name == "" {
		name = ArchiveFileName(job.FileName)
	}
	archive, err := Package(ctx, scratch, filepath.Base(name), artifacts)
	if err != nil {
		return SplitResult{}, err
	}

	location, err := p.Archives.Publish(ctx, name, archive.Path)
	if err != nil {
		return SplitResult{}, &SplitError{Kind: KindPackaging, Message: "unable to publish archive", Err: err}
	}

	details := make([]FileDetail, len(artifacts))
	for i, a := range artifacts {
		details[i] = FileDetail{GroupValue: a.Key, RowCount: a.RowCount, Filename: a.Filename}
	}
	return SplitResult{
		Success:       true,
		TotalRows:     len(ds.Rows),
		SplitGroups:   len(groups),
		OutputFiles:   len(artifacts),
		ZipPath:       location,
		ArchiveDigest: archive.Digest,
		FileDetails:   details,
	}, nil
}

func removeScratch(logger *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove scratch dir", "dir", dir, "error", err)
	}
}
