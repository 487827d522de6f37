package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kon-rad/strace-to-duckdb/internal/config"
	"github.com/kon-rad/strace-to-duckdb/internal/hardening"
	"github.com/kon-rad/strace-to-duckdb/internal/ingest"
	"github.com/kon-rad/strace-to-duckdb/internal/logging"
	"github.com/kon-rad/strace-to-duckdb/internal/progress"
	"github.com/kon-rad/strace-to-duckdb/internal/store"
)

var (
	outputPath string
	workerFlag int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "strace-to-duckdb [OPTIONS] <trace_file>...",
	Short:        "Bulk-load strace(1) trace files into a DuckDB table for SQL analysis",
	Args:         cobra.MinimumNArgs(1),
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "strace.db", "output database path")
	rootCmd.Flags().IntVar(&workerFlag, "workers", 0, "worker count override (0 = auto)")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	if _, statErr := os.Stat(outputPath); statErr == nil {
		if rmErr := os.Remove(outputPath); rmErr != nil {
			return fmt.Errorf("remove existing output %s: %w", outputPath, rmErr)
		}
	}

	coordinator, err := store.Open(outputPath)
	if err != nil {
		logger.Error("failed to open database", "path", outputPath, "error", err)
		return err
	}
	defer func() {
		if closeErr := coordinator.Close(); closeErr != nil {
			logger.Warn("error closing database", "error", closeErr)
		}
	}()

	dbInfo, err := coordinator.Info(ctx)
	if err != nil {
		logger.Error("failed to read database info", "error", err)
		return err
	}
	logger.Info("database opened", "path", dbInfo.Path, "table", dbInfo.Table)

	workerCount := workerFlag
	if workerCount <= 0 {
		workerCount = cfg.WorkerCount
	}
	if workerCount <= 0 {
		workerCount = ingest.DefaultWorkerCount(len(args))
	}

	reporter := progress.New(os.Stderr)

	stats, ingestErr := ingest.Run(coordinator, args, workerCount, cfg.MaxLineBytes, cfg.ProgressInterval, func(snap ingest.Snapshot) {
		if snap.Done() {
			reporter.Finish(snap)
		} else {
			reporter.Sample(snap)
		}
	})
	if ingestErr != nil {
		logger.Error("ingestion failed", "error", ingestErr)
		return ingestErr
	}

	summary, err := coordinator.Stats(ctx)
	if err != nil {
		logger.Error("failed to compute summary statistics", "error", err)
		return err
	}

	printSummary(stats, summary, coordinator.Path())
	return nil
}

func printSummary(stats ingest.AggregateStats, summary store.Summary, path string) {
	rss, rssErr := hardening.CurrentRSSBytes()

	fmt.Println()
	fmt.Println("strace-to-duckdb summary")
	fmt.Println("------------------------")
	fmt.Printf("files processed:    %s\n", humanize.Comma(stats.FilesProcessed))
	fmt.Printf("files with errors:  %s\n", humanize.Comma(stats.FilesWithErrors))
	fmt.Printf("total lines:        %s\n", humanize.Comma(stats.TotalLines))
	fmt.Printf("parsed lines:       %s\n", humanize.Comma(stats.ParsedLines))
	fmt.Printf("failed lines:       %s\n", humanize.Comma(stats.FailedLines))
	fmt.Printf("output database:    %s\n", path)
	fmt.Println()
	fmt.Printf("total rows:         %s\n", humanize.Comma(summary.TotalRows))
	fmt.Printf("distinct syscalls:  %s\n", humanize.Comma(summary.DistinctSyscall))
	fmt.Printf("distinct pids:      %s\n", humanize.Comma(summary.DistinctPID))
	fmt.Printf("error rows:         %s\n", humanize.Comma(summary.ErrorRows))
	if rssErr == nil {
		fmt.Printf("current rss:        %s\n", humanize.Bytes(uint64(rss)))
	}
}
