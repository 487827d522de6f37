// Package pidextract derives the originating PID from a trace filename.
package pidextract

import "strconv"

// FromFilename finds the last '.' in basename and, if what follows is a
// decimal integer (digits with an optional leading '+' or '-') that
// fits in 32 bits, returns it as the PID; negative values are accepted.
// Any other shape returns (0, false); callers should substitute 0.
func FromFilename(basename string) (int32, bool) {
	idx := lastDot(basename)
	if idx < 0 || idx == len(basename)-1 {
		return 0, false
	}
	suffix := basename[idx+1:]
	v, err := strconv.ParseInt(suffix, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
