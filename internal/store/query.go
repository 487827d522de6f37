package store

import "context"

// Summary holds the four aggregate figures printed after a run
// completes. These are fixed operational aggregates, not a general
// query surface — ad-hoc analytical SQL over the syscalls table is
// left to the caller with a SQL client of their choice.
type Summary struct {
	TotalRows       int64
	DistinctSyscall int64
	DistinctPID     int64
	ErrorRows       int64
}

// Stats runs the four summary queries named by the database façade
// contract. It must only be called after every worker handle has been
// closed (and its append session ended), so that all rows are visible.
func (h *Handle) Stats(ctx context.Context) (Summary, error) {
	var s Summary
	row := h.conn.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COUNT(DISTINCT syscall),
  COUNT(DISTINCT pid),
  COUNT(*) FILTER (WHERE error_code IS NOT NULL)
FROM syscalls
`)
	if err := row.Scan(&s.TotalRows, &s.DistinctSyscall, &s.DistinctPID, &s.ErrorRows); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// DatabaseInfo reports the resolved database path and table name for
// the startup log line, the DuckDB equivalent of the teacher's
// Pragmas dump (DuckDB has no WAL/journal pragmas to report).
type DatabaseInfo struct {
	Path  string
	Table string
}

// Info returns the database's startup metadata. It takes a context for
// symmetry with Stats, though the current implementation needs none.
func (h *Handle) Info(ctx context.Context) (DatabaseInfo, error) {
	return DatabaseInfo{Path: h.Path(), Table: tableName}, nil
}
