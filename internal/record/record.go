// Package record defines the Syscall value produced by the line parser
// and consumed by the database façade and file processor.
package record

// Syscall is one decoded strace line. String fields are slices of the
// line string the parser was given. fileproc.Process converts each line
// from its reused read buffer into a new string before parsing, so a
// Syscall does not alias that buffer and stays valid after the next
// line is read.
type Syscall struct {
	Timestamp string
	Name      string
	Args      string

	// ReturnValue is absent when the source text was "?" or the call is
	// unfinished.
	ReturnValue *int64

	// ErrorCode is present only when ReturnValue is set and strictly
	// negative and an error token followed it on the line.
	ErrorCode    *string
	ErrorMessage *string

	// DurationSeconds comes from a trailing "<0.000042>" trailer.
	DurationSeconds *float64

	Unfinished bool
	Resumed    bool
}
