package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxPathLength is the maximum length for URL paths in logs.
const MaxPathLength = 500

// SanitizePath sanitizes a URL path for safe logging: attacker-controlled
// paths end up in log lines, so control characters and invalid UTF-8 are
// stripped and the result is truncated.
func SanitizePath(path string) string {
	if path == "" {
		return ""
	}

	if !utf8.ValidString(path) {
		path = strings.ToValidUTF8(path, "")
	}

	var builder strings.Builder
	builder.Grow(len(path))
	for _, r := range path {
		if unicode.IsPrint(r) || r == ' ' {
			builder.WriteRune(r)
		}
	}
	path = builder.String()

	if len(path) > MaxPathLength {
		path = path[:MaxPathLength] + "..."
	}

	return path
}
