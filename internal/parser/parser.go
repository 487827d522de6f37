// Package parser recognises one line of strace(1) output (run with
// -tt/-ttt and optionally -T) and decodes it into a record.Syscall.
//
// The parser copies no string data: every string field of the returned
// record is a slice of the line passed in. It does allocate the values
// behind the record's pointer fields (return value, error code, error
// message, duration), one heap value for each field that is present.
package parser

import (
	"strconv"
	"strings"

	"github.com/kon-rad/strace-to-duckdb/internal/record"
)

const unfinishedMarker = "<unfinished ...>"
const resumedMarker = " resumed>"

// ParseLine recognises one strace line. The second return value is
// false for blank lines, comments, and any line that matches none of
// the three known shapes — callers must not treat that as an error.
func ParseLine(line string) (record.Syscall, bool) {
	if strings.TrimSpace(line) == "" {
		return record.Syscall{}, false
	}

	ts, rest, ok := extractTimestamp(line)
	if !ok {
		return record.Syscall{}, false
	}

	if rec, ok := parseComplete(ts, rest); ok {
		return rec, true
	}
	if rec, ok := parseUnfinished(ts, rest); ok {
		return rec, true
	}
	if rec, ok := parseResumed(ts, rest); ok {
		return rec, true
	}
	return record.Syscall{}, false
}

// extractTimestamp finds the first space that follows at least two ':'
// and one '.', per the strace "-tt" timestamp format HH:MM:SS.micros.
// It is called exactly once per line, ahead of all pattern dispatch.
func extractTimestamp(line string) (ts, rest string, ok bool) {
	var colons, dots int
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ':':
			colons++
		case '.':
			dots++
		case ' ':
			if colons >= 2 && dots >= 1 {
				return line[:i], strings.TrimLeft(line[i+1:], " \t"), true
			}
		}
	}
	return "", "", false
}

// findMatchingClose scans s (the text immediately following an already
// consumed '(') for the ')' that brings the paren depth back to zero,
// counting nested '(' / ')' pairs along the way. It is the only
// correct way to split args from the call tail on lines like
// wait4(-1, [{WIFEXITED(s) && WEXITSTATUS(s) == 0}], 0, NULL) = 12345.
func findMatchingClose(s string) (idx int, ok bool) {
	depth := 1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// tailResult holds the fields shared by the complete-call and resumed
// branches: everything that follows "NAME(ARGS) = ".
type tailResult struct {
	returnValue *int64
	errorCode   *string
	errorMsg    *string
	duration    *float64
}

// parseTail parses RETVAL[ ERRCODE (MSG)][ <DUR>], where (MSG) is an
// ignored annotation when RETVAL is not negative. The segments are read
// in that order; once a <DUR> trailer is parsed, anything after it is
// ignored. The leading "= " has already been consumed by the caller.
func parseTail(s string) (tailResult, bool) {
	var out tailResult

	end := indexOfSpaceOrLt(s)
	tok := s[:end]
	remainder := strings.TrimLeft(s[end:], " \t")

	if tok == "?" {
		out.returnValue = nil
	} else {
		v, err := parseReturnValue(tok)
		if err != nil {
			return tailResult{}, false
		}
		out.returnValue = &v
	}

	if remainder == "" {
		return out, true
	}

	if remainder[0] == '<' {
		d, ok := parseDuration(remainder)
		if !ok {
			return tailResult{}, false
		}
		out.duration = &d
		return out, true
	}

	negative := out.returnValue != nil && *out.returnValue < 0
	if negative {
		codeEnd := indexOfSpaceOrLt(remainder)
		code := remainder[:codeEnd]
		out.errorCode = &code
		remainder = strings.TrimLeft(remainder[codeEnd:], " \t")
	}

	if len(remainder) > 0 && remainder[0] == '(' {
		closeIdx, ok := findMatchingClose(remainder[1:])
		if !ok {
			return tailResult{}, false
		}
		msg := remainder[1 : 1+closeIdx]
		if negative {
			out.errorMsg = &msg
		}
		remainder = strings.TrimLeft(remainder[1+closeIdx+1:], " \t")
	}

	if len(remainder) > 0 && remainder[0] == '<' {
		d, ok := parseDuration(remainder)
		if !ok {
			return tailResult{}, false
		}
		out.duration = &d
	}

	return out, true
}

func indexOfSpaceOrLt(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '<' {
			return i
		}
	}
	return len(s)
}

func parseReturnValue(tok string) (int64, error) {
	if strings.HasPrefix(tok, "0x") {
		return strconv.ParseInt(tok[2:], 16, 64)
	}
	return strconv.ParseInt(tok, 10, 64)
}

// parseDuration parses the decimal float inside a leading "<...>"
// trailer. s must start with '<'.
func parseDuration(s string) (float64, bool) {
	closeIdx := strings.IndexByte(s, '>')
	if closeIdx < 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[1:closeIdx], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseComplete recognises NAME(ARGS) = RETVAL[ ERRCODE (MSG)][ <DUR>][ (annotation)].
func parseComplete(ts, rest string) (record.Syscall, bool) {
	if strings.Contains(rest, unfinishedMarker) {
		return record.Syscall{}, false
	}

	openIdx := strings.IndexByte(rest, '(')
	if openIdx <= 0 {
		return record.Syscall{}, false
	}
	name := rest[:openIdx]

	afterOpen := rest[openIdx+1:]
	closeIdx, ok := findMatchingClose(afterOpen)
	if !ok {
		return record.Syscall{}, false
	}
	args := afterOpen[:closeIdx]

	afterClose := strings.TrimLeft(afterOpen[closeIdx+1:], " \t")
	if len(afterClose) == 0 || afterClose[0] != '=' {
		return record.Syscall{}, false
	}
	afterEq := strings.TrimLeft(afterClose[1:], " \t")

	tail, ok := parseTail(afterEq)
	if !ok {
		return record.Syscall{}, false
	}

	return record.Syscall{
		Timestamp:       ts,
		Name:            name,
		Args:            args,
		ReturnValue:     tail.returnValue,
		ErrorCode:       tail.errorCode,
		ErrorMessage:    tail.errorMsg,
		DurationSeconds: tail.duration,
	}, true
}

// parseUnfinished recognises NAME(PARTIAL_ARGS <unfinished ...>[) = ?].
func parseUnfinished(ts, rest string) (record.Syscall, bool) {
	if !strings.Contains(rest, unfinishedMarker) {
		return record.Syscall{}, false
	}

	openIdx := strings.IndexByte(rest, '(')
	if openIdx <= 0 {
		return record.Syscall{}, false
	}
	name := rest[:openIdx]

	afterOpen := rest[openIdx+1:]
	markerIdx := strings.Index(afterOpen, unfinishedMarker)
	if markerIdx < 0 {
		return record.Syscall{}, false
	}
	args := afterOpen[:markerIdx]

	return record.Syscall{
		Timestamp:  ts,
		Name:       name,
		Args:       args,
		Unfinished: true,
	}, true
}

// parseResumed recognises <... NAME resumed>ARGS_TAIL) = RETVAL[ ERRCODE (MSG)][ <D>].
func parseResumed(ts, rest string) (record.Syscall, bool) {
	if !strings.HasPrefix(rest, "<... ") {
		return record.Syscall{}, false
	}
	markerIdx := strings.Index(rest, resumedMarker)
	if markerIdx < 0 {
		return record.Syscall{}, false
	}
	name := rest[len("<... "):markerIdx]
	if name == "" {
		return record.Syscall{}, false
	}

	afterResumed := rest[markerIdx+len(resumedMarker):]
	closeIdx, ok := findMatchingClose(afterResumed)
	if !ok {
		return record.Syscall{}, false
	}
	args := afterResumed[:closeIdx]

	afterClose := strings.TrimLeft(afterResumed[closeIdx+1:], " \t")
	if len(afterClose) == 0 || afterClose[0] != '=' {
		return record.Syscall{}, false
	}
	afterEq := strings.TrimLeft(afterClose[1:], " \t")

	tail, ok := parseTail(afterEq)
	if !ok {
		return record.Syscall{}, false
	}

	return record.Syscall{
		Timestamp:       ts,
		Name:            name,
		Args:            args,
		ReturnValue:     tail.returnValue,
		ErrorCode:       tail.errorCode,
		ErrorMessage:    tail.errorMsg,
		DurationSeconds: tail.duration,
		Resumed:         true,
	}, true
}
