package logger

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxFieldLength caps a single sanitized value so a hostile file name cannot
// flood the log.
const maxFieldLength = 256

// SanitizeForLog escapes control characters (newlines, tabs, NUL, ANSI escapes,
// DEL) so user supplied names cannot forge log lines, and truncates values
// longer than maxFieldLength runes. Printable Unicode is kept as is.
func SanitizeForLog(s string) string {
	var result strings.Builder
	result.Grow(min(len(s), maxFieldLength*utf8.UTFMax))

	count := 0
	for _, r := range s {
		if count == maxFieldLength {
			result.WriteString("...")
			break
		}
		count++

		switch r {
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		case '\t':
			result.WriteString("\\t")
		default:
			if r < 32 || r == 127 {
				result.WriteString(fmt.Sprintf("\\x%02x", r))
			} else {
				result.WriteRune(r)
			}
		}
	}
	return result.String()
}
