// Package textutil provides small string helpers shared across the harness.
package textutil

// Truncate shortens s to at most limit runes, replacing the tail with "..."
// when truncation occurs. The returned string is never longer than limit.
// Limits smaller than the ellipsis itself return a plain prefix.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	const ellipsis = "..."
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}

	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// Tail returns the last n runes of s. Useful for surfacing the end of a
// long subprocess transcript without flooding progress logs.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[len(runes)-n:])
}
