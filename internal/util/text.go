package util

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// SanitizePostgresText drops invalid UTF-8 and NUL characters, which Postgres
// text columns reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}
	return strings.Map(func(r rune) rune {
		if r == 0 || r == utf8.RuneError {
			return -1
		}
		return r
	}, value)
}

// SanitizePostgresJSON removes escaped NUL characters from an encoded JSON
// document so it can be stored in a jsonb column.
func SanitizePostgresJSON(payload []byte) []byte {
	return bytes.ReplaceAll(payload, []byte(`\u0000`), nil)
}
