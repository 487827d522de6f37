// Package ingest implements the parallel ingestion engine: a
// fixed-size worker pool that shares one database instance across
// per-worker connections, distributing files by static round-robin
// assignment rather than a work-stealing queue.
package ingest

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kon-rad/strace-to-duckdb/internal/fileproc"
	"github.com/kon-rad/strace-to-duckdb/internal/store"
)

// Snapshot is a point-in-time read of the aggregate counters, taken by
// the coordinator's progress loop and handed to a progress reporter.
type Snapshot struct {
	FilesTotal      int64
	FilesComplete   int64
	FilesWithErrors int64
	TotalLines      int64
	ParsedLines     int64
	FailedLines     int64
}

// Done reports whether every file has either completed or errored.
func (s Snapshot) Done() bool {
	return s.FilesComplete+s.FilesWithErrors >= s.FilesTotal
}

// AggregateStats is the final return value of Run: the same five
// counters as Snapshot, without the total (the caller already has it).
type AggregateStats struct {
	FilesProcessed  int64
	FilesWithErrors int64
	TotalLines      int64
	ParsedLines     int64
	FailedLines     int64
}

type counters struct {
	filesComplete   atomic.Int64
	filesWithErrors atomic.Int64
	totalLines      atomic.Int64
	parsedLines     atomic.Int64
	failedLines     atomic.Int64
}

func (c *counters) snapshot(total int64) Snapshot {
	return Snapshot{
		FilesTotal:      total,
		FilesComplete:   c.filesComplete.Load(),
		FilesWithErrors: c.filesWithErrors.Load(),
		TotalLines:      c.totalLines.Load(),
		ParsedLines:     c.parsedLines.Load(),
		FailedLines:     c.failedLines.Load(),
	}
}

// DefaultWorkerCount implements the "auto" clamp from the external
// interface contract: logical CPU count, never more than the number of
// files, never less than one.
func DefaultWorkerCount(fileCount int) int {
	n := runtime.NumCPU()
	if fileCount > 0 && fileCount < n {
		n = fileCount
	}
	if n < 1 {
		n = 1
	}
	return n
}

// assignedCount returns how many of n paths worker w owns under a
// round-robin stride of stride, i.e. len(range(w, n, stride)).
func assignedCount(w, stride, n int) int64 {
	if w >= n {
		return 0
	}
	return int64((n-w+stride-1)/stride)
}

// isFileLevel reports whether err is one of the three error kinds the
// engine treats as already accounted for by files_with_errors, rather
// than critical.
func isFileLevel(err error) bool {
	var tooLong *fileproc.LineTooLongError
	if errors.As(err, &tooLong) {
		return true
	}
	return os.IsNotExist(err) || os.IsPermission(err)
}

// Run processes paths against coordinator's database instance using
// actualWorkers = min(workerCount, len(paths)) workers. onSample, if
// non-nil, is called roughly every sampleInterval with the current
// aggregate snapshot, and once more after every worker has joined.
func Run(coordinator *store.Handle, paths []string, workerCount int, capBytes int64, sampleInterval time.Duration, onSample func(Snapshot)) (AggregateStats, error) {
	if len(paths) == 0 {
		return AggregateStats{}, nil
	}

	actualWorkers := workerCount
	if actualWorkers > len(paths) {
		actualWorkers = len(paths)
	}
	if actualWorkers < 1 {
		actualWorkers = 1
	}

	var c counters
	errSlots := make([]error, actualWorkers)

	var wg sync.WaitGroup
	for w := 0; w < actualWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			runWorker(w, actualWorkers, coordinator, paths, capBytes, &c, &errSlots[w])
		}(w)
	}

	total := int64(len(paths))
	if onSample != nil {
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			snap := c.snapshot(total)
			if snap.Done() {
				break
			}
			onSample(snap)
			<-ticker.C
		}
	}

	wg.Wait()

	if onSample != nil {
		onSample(c.snapshot(total))
	}

	var critical error
	for _, err := range errSlots {
		if err == nil || isFileLevel(err) {
			continue
		}
		if critical == nil {
			critical = err
		}
	}

	return AggregateStats{
		FilesProcessed:  c.filesComplete.Load(),
		FilesWithErrors: c.filesWithErrors.Load(),
		TotalLines:      c.totalLines.Load(),
		ParsedLines:     c.parsedLines.Load(),
		FailedLines:     c.failedLines.Load(),
	}, critical
}

// runWorker owns one connection and one append session for the
// lifetime of all its assigned files; it never shares either with
// another worker. errSlot is last-write-wins: when several of the
// worker's files fail, only the most recent error is kept.
func runWorker(w, stride int, coordinator *store.Handle, paths []string, capBytes int64, c *counters, errSlot *error) {
	assigned := assignedCount(w, stride, len(paths))

	handle, err := store.ConnectTo(coordinator)
	if err != nil {
		*errSlot = err
		c.filesWithErrors.Add(assigned)
		return
	}
	defer func() { _ = handle.Close() }()

	if err := handle.BeginAppend(); err != nil {
		*errSlot = err
		c.filesWithErrors.Add(assigned)
		return
	}
	defer func() { _ = handle.EndAppend() }()

	for i := w; i < len(paths); i += stride {
		stats, err := fileproc.Process(paths[i], capBytes, handle.Append)
		if err != nil {
			slog.Warn("file failed", "path", paths[i], "error", err)
			c.filesWithErrors.Add(1)
			*errSlot = err
			continue
		}
		c.filesComplete.Add(1)
		c.totalLines.Add(stats.TotalLines)
		c.parsedLines.Add(stats.ParsedLines)
		c.failedLines.Add(stats.FailedLines)
	}
}
