// Package fileproc reads one trace file in two passes: the first sizes
// a line buffer to the file's longest line (bounded by a hard cap), the
// second dispatches each line to the parser and then to an Appender.
package fileproc

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kon-rad/strace-to-duckdb/internal/parser"
	"github.com/kon-rad/strace-to-duckdb/internal/pidextract"
	"github.com/kon-rad/strace-to-duckdb/internal/record"
)

// DefaultCapBytes is the hard per-line sanity cap (10 MiB).
const DefaultCapBytes = 10 * 1024 * 1024

// scratchSize is the fixed-size read buffer pass 1 and pass 2 use to
// pull bytes off disk; it is independent of line length, which is what
// keeps peak memory bounded by the actual longest line rather than by
// the cap.
const scratchSize = 8 * 1024

// minLineBufferSize is the floor for the pass-2 line buffer, so tiny
// files don't force a buffer smaller than is worth allocating.
const minLineBufferSize = 4096

// LineTooLongError is a terminal, file-level error: the line at Index
// (0-based) reached Size bytes, exceeding the cap. Size counts the
// line's '\n' when that was the byte that pushed it over.
type LineTooLongError struct {
	Index int64
	Size  int64
}

func (e *LineTooLongError) Error() string {
	return fmt.Sprintf("line %d exceeds cap at %d bytes", e.Index, e.Size)
}

// Stats is the per-file outcome of Process.
type Stats struct {
	TotalLines  int64
	ParsedLines int64
	FailedLines int64
}

// countLinesAndMaxLength makes one pass over path with a small,
// fixed-size scratch buffer, counting line terminations and tracking
// the largest delimiter-inclusive span. A span exceeding capBytes
// aborts immediately with *LineTooLongError.
func countLinesAndMaxLength(path string, capBytes int64) (totalLines int64, maxLen int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, scratchSize)
	var lineLen int64
	var lineIdx int64

	for {
		b, readErr := r.ReadByte()
		if readErr != nil {
			if readErr == io.EOF {
				if lineLen > 0 {
					if lineLen > maxLen {
						maxLen = lineLen
					}
					lineIdx++
				}
				return lineIdx, maxLen, nil
			}
			return 0, 0, readErr
		}

		lineLen++
		if lineLen > capBytes {
			return 0, 0, &LineTooLongError{Index: lineIdx, Size: lineLen}
		}
		if b == '\n' {
			if lineLen > maxLen {
				maxLen = lineLen
			}
			lineIdx++
			lineLen = 0
		}
	}
}

// readLine fills buf from r up to (but excluding) the next '\n' or EOF,
// returning the slice of buf actually used. buf is reused across calls
// by the caller; readLine never grows it — pass 1 guarantees it is
// already large enough.
func readLine(r *bufio.Reader, buf []byte) (line []byte, err error) {
	n := 0
	for {
		b, readErr := r.ReadByte()
		if readErr != nil {
			if readErr == io.EOF {
				if n == 0 {
					return nil, io.EOF
				}
				return buf[:n], nil
			}
			return nil, readErr
		}
		if b == '\n' {
			return buf[:n], nil
		}
		if n >= len(buf) {
			// Cannot happen given a correctly sized pass-1 buffer; treated
			// as a bug rather than a data problem.
			return nil, fmt.Errorf("fileproc: line buffer exhausted (%d bytes) despite pass-1 sizing", len(buf))
		}
		buf[n] = b
		n++
	}
}

// AppendFunc matches (*store.Handle).Append's signature, letting
// callers pass the method value straight through without an
// adapter.
type AppendFunc func(traceFile string, pid int32, rec record.Syscall) error

// Process runs both passes over path and calls appendRow once per
// recognised (parsed) line. The caller must already have an active
// append session open on the connection appendRow writes through, and
// remains responsible for ending that session.
func Process(path string, capBytes int64, appendRow AppendFunc) (Stats, error) {
	if capBytes <= 0 {
		capBytes = DefaultCapBytes
	}

	totalLines, maxLen, err := countLinesAndMaxLength(path, capBytes)
	if err != nil {
		return Stats{}, err
	}
	if totalLines == 0 {
		return Stats{}, nil
	}

	bufSize := maxLen
	if bufSize < minLineBufferSize {
		bufSize = minLineBufferSize
	}
	if bufSize > capBytes {
		bufSize = capBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	basename := filepath.Base(path)
	pid, _ := pidextract.FromFilename(basename)

	r := bufio.NewReaderSize(f, scratchSize)
	lineBuf := make([]byte, bufSize)

	var stats Stats
	for {
		lineBytes, readErr := readLine(r, lineBuf)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return stats, readErr
		}

		stats.TotalLines++
		line := string(lineBytes)

		rec, ok := parser.ParseLine(line)
		if !ok {
			continue
		}

		if err := appendRow(basename, pid, rec); err != nil {
			slog.Warn("append failed", "file", basename, "line", stats.TotalLines, "error", err)
			stats.FailedLines++
			continue
		}
		stats.ParsedLines++
	}

	return stats, nil
}
