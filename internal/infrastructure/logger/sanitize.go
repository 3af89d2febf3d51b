package logger

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeForLog escapes control characters so titles, URLs and tool
// output cannot forge log lines or drive the terminal. Printable Unicode
// is kept as is.
func SanitizeForLog(s string) string {
	if !strings.ContainsFunc(s, unicode.IsControl) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case unicode.IsControl(r):
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeTail sanitizes s and keeps at most the last max runes, which is
// what matters in the stderr of a failed external tool.
func SanitizeTail(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max > 0 && len(runes) > max {
		s = "..." + string(runes[len(runes)-max:])
	}
	return SanitizeForLog(s)
}
