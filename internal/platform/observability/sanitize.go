package observability

import (
	"strings"
	"unicode"
)

const maxFieldRunes = 256

// clampPrintable strips control characters (keeping ordinary whitespace) and
// caps the rune count so request-derived values cannot inject into or bloat
// log entries.
func clampPrintable(value string, max int) string {
	if max <= 0 {
		max = maxFieldRunes
	}

	var b strings.Builder
	b.Grow(len(value))
	kept := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		if kept == max {
			break
		}
		b.WriteRune(r)
		kept++
	}
	return b.String()
}

// SanitizeRoute normalises a route pattern for log fields.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clampPrintable(route, 180)
}

// SanitizeMethod bounds an HTTP method string.
func SanitizeMethod(method string) string {
	return clampPrintable(method, 10)
}

// SanitizeUserID caps user identifiers before they reach log output.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return clampPrintable(uid, 64)
}
