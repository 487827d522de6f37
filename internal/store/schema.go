package store

const tableName = "syscalls"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS syscalls (
  trace_file VARCHAR,
  pid INTEGER,
  timestamp VARCHAR,
  syscall VARCHAR,
  args TEXT,
  return_value BIGINT,
  error_code VARCHAR,
  error_message VARCHAR,
  duration DOUBLE,
  unfinished BOOLEAN DEFAULT FALSE,
  resumed BOOLEAN DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_syscalls_syscall ON syscalls (syscall);
CREATE INDEX IF NOT EXISTS idx_syscalls_pid ON syscalls (pid);
CREATE INDEX IF NOT EXISTS idx_syscalls_error_code ON syscalls (error_code);
CREATE INDEX IF NOT EXISTS idx_syscalls_trace_file ON syscalls (trace_file);
`
