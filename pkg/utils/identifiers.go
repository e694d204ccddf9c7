package utils

import "regexp"

var nonWordRun = regexp.MustCompile(`\W+`)

// SanitizeFileStem replaces every run of non-word characters with "_" and
// truncates the result to at most maxLen bytes (maxLen <= 0 means no limit).
func SanitizeFileStem(s string, maxLen int) string {
	sanitized := nonWordRun.ReplaceAllString(s, "_")
	if maxLen > 0 && len(sanitized) > maxLen {
		sanitized = sanitized[:maxLen]
	}
	return sanitized
}

// Truncate shortens s to at most n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
