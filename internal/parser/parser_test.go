package parser

import (
	"testing"

	"github.com/kon-rad/strace-to-duckdb/internal/record"
)

func f64ptr(v float64) *float64 { return &v }
func i64ptr(v int64) *int64     { return &v }
func strptr(v string) *string   { return &v }

func TestParseLineScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		line string
		want record.Syscall
	}{
		{
			name: "complete call with duration",
			line: `22:21:11.675122 set_robust_list(0x7fa8e531c4a0, 24) = 0 <0.000009>`,
			want: record.Syscall{
				Timestamp:       "22:21:11.675122",
				Name:            "set_robust_list",
				Args:            "0x7fa8e531c4a0, 24",
				ReturnValue:     i64ptr(0),
				DurationSeconds: f64ptr(0.000009),
			},
		},
		{
			name: "error code and message",
			line: `22:21:11.675759 access("/etc/ld-nix.so.preload", R_OK) = -1 ENOENT (No such file or directory) <0.000006>`,
			want: record.Syscall{
				Timestamp:       "22:21:11.675759",
				Name:            "access",
				Args:            `"/etc/ld-nix.so.preload", R_OK`,
				ReturnValue:     i64ptr(-1),
				ErrorCode:       strptr("ENOENT"),
				ErrorMessage:    strptr("No such file or directory"),
				DurationSeconds: f64ptr(0.000006),
			},
		},
		{
			name: "nested parens in args",
			line: `10:23:45.123456 fstat(3, {st_mode=S_IFCHR|0600, st_rdev=makedev(0x88, 0), ...}) = 0 <0.000015>`,
			want: record.Syscall{
				Timestamp:       "10:23:45.123456",
				Name:            "fstat",
				Args:            "3, {st_mode=S_IFCHR|0600, st_rdev=makedev(0x88, 0), ...}",
				ReturnValue:     i64ptr(0),
				DurationSeconds: f64ptr(0.000015),
			},
		},
		{
			name: "unfinished call",
			line: `22:21:24.927885 poll([{fd=8, events=POLLIN}], 2, -1 <unfinished ...>) = ?`,
			want: record.Syscall{
				Timestamp:  "22:21:24.927885",
				Name:       "poll",
				Args:       "[{fd=8, events=POLLIN}], 2, -1 ",
				Unfinished: true,
			},
		},
		{
			name: "resumed call",
			line: `10:23:45.123458 <... read resumed>"data", 100) = 4 <0.000042>`,
			want: record.Syscall{
				Timestamp:       "10:23:45.123458",
				Name:            "read",
				Args:            `"data", 100`,
				ReturnValue:     i64ptr(4),
				DurationSeconds: f64ptr(0.000042),
				Resumed:         true,
			},
		},
		{
			name: "non-negative annotation is not an error",
			line: `10:23:45.123456 poll([{fd=3, events=POLLIN}], 1, -1) = 1 ([{fd=3, revents=POLLIN}]) <0.000100>`,
			want: record.Syscall{
				Timestamp:       "10:23:45.123456",
				Name:            "poll",
				Args:            "[{fd=3, events=POLLIN}], 1, -1",
				ReturnValue:     i64ptr(1),
				DurationSeconds: f64ptr(0.000100),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseLine(tc.line)
			if !ok {
				t.Fatalf("ParseLine(%q) ok = false, want true", tc.line)
			}
			assertSyscallEqual(t, got, tc.want)
		})
	}
}

func TestParseLineRejectsUnrecognisedInput(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"   \t  ",
		"this is not a strace line at all",
		"22:21:11.675122 no parens here = 0",
	}
	for _, line := range cases {
		if _, ok := ParseLine(line); ok {
			t.Errorf("ParseLine(%q) ok = true, want false", line)
		}
	}
}

func TestParseLineHexReturnValue(t *testing.T) {
	t.Parallel()

	got, ok := ParseLine(`22:21:11.000000 brk(NULL) = 0x55c3a1b0d000`)
	if !ok {
		t.Fatalf("ParseLine() ok = false")
	}
	if got.ReturnValue == nil || *got.ReturnValue != 0x55c3a1b0d000 {
		t.Fatalf("ReturnValue = %v, want 0x55c3a1b0d000", got.ReturnValue)
	}
}

func TestParseLineQuestionMarkReturnValue(t *testing.T) {
	t.Parallel()

	got, ok := ParseLine(`22:21:11.000000 exit_group(0) = ?`)
	if !ok {
		t.Fatalf("ParseLine() ok = false")
	}
	if got.ReturnValue != nil {
		t.Fatalf("ReturnValue = %v, want nil", *got.ReturnValue)
	}
}

func assertSyscallEqual(t *testing.T, got, want record.Syscall) {
	t.Helper()
	if got.Timestamp != want.Timestamp {
		t.Errorf("Timestamp = %q, want %q", got.Timestamp, want.Timestamp)
	}
	if got.Name != want.Name {
		t.Errorf("Name = %q, want %q", got.Name, want.Name)
	}
	if got.Args != want.Args {
		t.Errorf("Args = %q, want %q", got.Args, want.Args)
	}
	if got.Unfinished != want.Unfinished {
		t.Errorf("Unfinished = %v, want %v", got.Unfinished, want.Unfinished)
	}
	if got.Resumed != want.Resumed {
		t.Errorf("Resumed = %v, want %v", got.Resumed, want.Resumed)
	}
	if !int64PtrEqual(got.ReturnValue, want.ReturnValue) {
		t.Errorf("ReturnValue = %v, want %v", derefI64(got.ReturnValue), derefI64(want.ReturnValue))
	}
	if !stringPtrEqual(got.ErrorCode, want.ErrorCode) {
		t.Errorf("ErrorCode = %v, want %v", derefStr(got.ErrorCode), derefStr(want.ErrorCode))
	}
	if !stringPtrEqual(got.ErrorMessage, want.ErrorMessage) {
		t.Errorf("ErrorMessage = %v, want %v", derefStr(got.ErrorMessage), derefStr(want.ErrorMessage))
	}
	if !float64PtrEqual(got.DurationSeconds, want.DurationSeconds) {
		t.Errorf("DurationSeconds = %v, want %v", derefF64(got.DurationSeconds), derefF64(want.DurationSeconds))
	}
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func float64PtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefI64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefF64(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
