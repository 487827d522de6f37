// Package store is the database façade over DuckDB: opening the
// instance, creating the schema, and handing out per-worker connections
// with their own bulk-append session.
//
// A Handle wraps an owned-or-shared instance, one connection, and an
// optional append session. The owner flag (set only on the handle
// returned by Open) governs whether Close also closes the instance —
// this is what stops a worker's teardown from pulling the database out
// from under its siblings.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	duckdb "github.com/marcboeker/go-duckdb"

	"github.com/kon-rad/strace-to-duckdb/internal/record"
)

var (
	// ErrAppenderNotInitialized is returned by Append when BeginAppend
	// has not been called (or EndAppend has already torn it down).
	ErrAppenderNotInitialized = errors.New("store: append session not initialized")
	// ErrAppendFailed wraps any rejection from the underlying appender.
	ErrAppendFailed = errors.New("store: append failed")
)

type ownership int

const (
	borrower ownership = iota
	owner
)

// Instance is one open DuckDB database, file-backed or ":memory:",
// shared by every connection a caller opens against it.
type Instance struct {
	db   *sql.DB
	path string
}

func newInstance(path string) (*Instance, error) {
	// The driver names an in-memory database with an empty DSN and
	// rejects ":memory:" as an unparseable URL.
	dsn := path
	if dsn == ":memory:" {
		dsn = ""
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb instance: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb instance: %w", err)
	}
	return &Instance{db: db, path: path}, nil
}

func (i *Instance) applySchema(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Handle is one client's view of an Instance: a single connection plus
// at most one active append session.
type Handle struct {
	instance *Instance
	conn     *sql.Conn
	appender *duckdb.Appender
	own      ownership
}

// Open opens path (or ":memory:"), creates the schema idempotently, and
// returns the coordinator's owning handle.
func Open(path string) (*Handle, error) {
	inst, err := newInstance(path)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := inst.applySchema(ctx); err != nil {
		_ = inst.db.Close()
		return nil, err
	}
	conn, err := inst.db.Conn(ctx)
	if err != nil {
		_ = inst.db.Close()
		return nil, fmt.Errorf("open coordinator connection: %w", err)
	}
	return &Handle{instance: inst, conn: conn, own: owner}, nil
}

// ConnectTo opens an additional connection on the instance backing an
// existing handle. The returned handle does not own the instance: its
// Close only closes its own connection.
func ConnectTo(existing *Handle) (*Handle, error) {
	conn, err := existing.instance.db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("open worker connection: %w", err)
	}
	return &Handle{instance: existing.instance, conn: conn, own: borrower}, nil
}

// BeginAppend creates a bulk-append session bound to the syscalls
// table. It is idempotent: a prior session is destroyed first, so a
// second call transitions Active -> None -> Active.
func (h *Handle) BeginAppend() error {
	if h.appender != nil {
		if err := h.EndAppend(); err != nil {
			return err
		}
	}

	var appender *duckdb.Appender
	err := h.conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return errors.New("underlying connection does not expose driver.Conn")
		}
		a, err := duckdb.NewAppenderFromConn(driverConn, "", tableName)
		if err != nil {
			return err
		}
		appender = a
		return nil
	})
	if err != nil {
		return fmt.Errorf("begin append session: %w", err)
	}
	h.appender = appender
	return nil
}

// EndAppend flushes and destroys the append session. Safe to call when
// no session exists.
func (h *Handle) EndAppend() error {
	if h.appender == nil {
		return nil
	}
	flushErr := h.appender.Flush()
	closeErr := h.appender.Close()
	h.appender = nil
	if flushErr != nil {
		return fmt.Errorf("flush append session: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close append session: %w", closeErr)
	}
	return nil
}

// Append emits one row. Columns are bound in schema order; a nil
// pointer field is bound as SQL NULL.
func (h *Handle) Append(traceFile string, pid int32, rec record.Syscall) error {
	if h.appender == nil {
		return ErrAppenderNotInitialized
	}

	args := []driver.Value{
		traceFile,
		pid,
		rec.Timestamp,
		rec.Name,
		rec.Args,
		nullableInt64(rec.ReturnValue),
		nullableString(rec.ErrorCode),
		nullableString(rec.ErrorMessage),
		nullableFloat64(rec.DurationSeconds),
		rec.Unfinished,
		rec.Resumed,
	}
	if err := h.appender.AppendRow(args...); err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return nil
}

// Close destroys any active session, closes this handle's connection,
// and — only if this handle owns the instance — closes the instance.
func (h *Handle) Close() error {
	var joined error
	if err := h.EndAppend(); err != nil {
		joined = errors.Join(joined, err)
	}
	if err := h.conn.Close(); err != nil {
		joined = errors.Join(joined, fmt.Errorf("close connection: %w", err))
	}
	if h.own == owner {
		if err := h.instance.db.Close(); err != nil {
			joined = errors.Join(joined, fmt.Errorf("close instance: %w", err))
		}
	}
	return joined
}

// Path returns the filesystem path (or ":memory:") the instance was
// opened with.
func (h *Handle) Path() string {
	return h.instance.path
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
