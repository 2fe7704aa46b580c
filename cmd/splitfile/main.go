// splitfile splits a local CSV, Excel or text file by the values of one
// column and writes the per-group files into a zip archive.
//
//	splitfile --column NAME [--batch-size N] [--out DIR] FILE
//
// The SplitResult is printed to stdout as JSON. Logs go to stderr. The exit
// status is 1 when the split fails.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/JonMunkholm/colsplit/internal/core"
	"github.com/JonMunkholm/colsplit/internal/logging"
	"github.com/JonMunkholm/colsplit/internal/storage"
)

// errSplitFailed signals a failed result that has already been printed.
var errSplitFailed = errors.New("split failed")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, errSplitFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		column    string
		batchSize int
		outDir    string
		scratch   string
		logLevel  string
		logFormat string
	)

	flagSet := pflag.NewFlagSet("splitfile", pflag.ContinueOnError)
	flagSet.StringVarP(&column, "column", "c", "", "column whose values define the groups (required)")
	flagSet.IntVarP(&batchSize, "batch-size", "b", 0, "maximum rows per output file (0 = no limit)")
	flagSet.StringVarP(&outDir, "out", "o", ".", "directory the archive is written to")
	flagSet.StringVar(&scratch, "scratch", "", "directory for temporary files (default: system temp dir)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: splitfile --column NAME [--batch-size N] [--out DIR] FILE\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return fmt.Errorf("expected exactly one FILE argument, got %d", flagSet.NArg())
	}
	if column == "" {
		return errors.New("--column is required")
	}

	slog.SetDefault(logging.New(os.Stderr, logLevel, logFormat))

	path := flagSet.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	archives, err := storage.NewLocalArchiveStore(outDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := core.NewPipeline(archives, scratch).Run(ctx, core.Job{
		FileName:  path,
		Data:      data,
		Column:    column,
		BatchSize: batchSize,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !result.Success {
		return errSplitFailed
	}
	return nil
}
