package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"limit smaller than ellipsis", "hello", 2, "he"},
		{"empty string", "", 5, ""},
		{"multibyte runes", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Truncate(tt.input, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), max(tt.limit, 0))
		})
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"shorter than n", "abc", 10, "abc"},
		{"exactly n", "abc", 3, "abc"},
		{"longer than n", "abcdef", 3, "def"},
		{"zero", "abc", 0, ""},
		{"multibyte runes", "héllo", 2, "lo"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Tail(tt.input, tt.n))
		})
	}
}
