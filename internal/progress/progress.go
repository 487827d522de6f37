// Package progress renders the aggregate ingestion counters to a
// terminal (or log stream) roughly every sampling interval. It is a
// thin adapter the engine drives, not a TUI framework: a single
// overwritten line on a terminal, one line per sample otherwise.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/kon-rad/strace-to-duckdb/internal/ingest"
)

// Reporter writes one rendering of an ingest.Snapshot per call to
// Sample, and a final rendering on Finish.
type Reporter struct {
	w     io.Writer
	isTTY bool
}

// New builds a Reporter writing to w. If w is an *os.File pointing at
// a terminal, successive Sample calls overwrite the same line;
// otherwise each sample is written on its own line.
func New(w io.Writer) *Reporter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{w: w, isTTY: tty}
}

func (r *Reporter) render(snap ingest.Snapshot, final bool) {
	line := fmt.Sprintf("files %s/%s  lines %s  parsed %s  failed %s",
		humanize.Comma(snap.FilesComplete+snap.FilesWithErrors),
		humanize.Comma(snap.FilesTotal),
		humanize.Comma(snap.TotalLines),
		humanize.Comma(snap.ParsedLines),
		humanize.Comma(snap.FailedLines),
	)
	switch {
	case final:
		fmt.Fprintln(r.w, line)
	case r.isTTY:
		fmt.Fprintf(r.w, "\r%s", line)
	default:
		fmt.Fprintln(r.w, line)
	}
}

// Sample renders one periodic update.
func (r *Reporter) Sample(snap ingest.Snapshot) {
	r.render(snap, false)
}

// Finish renders the terminal state once, after every worker has
// joined, moving past any in-progress overwritten line.
func (r *Reporter) Finish(snap ingest.Snapshot) {
	if r.isTTY {
		fmt.Fprint(r.w, "\r")
	}
	r.render(snap, true)
}
