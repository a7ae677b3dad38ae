package util

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
		cut  bool
	}{
		{"no limit", "hello", 0, "hello", false},
		{"under limit", "hello", 10, "hello", false},
		{"ascii cut", "hello world", 5, "hello", true},
		{"rune boundary", "abécd", 3, "ab", true},
		{"exact boundary", "abé", 4, "abé", false},
		{"multibyte only", "☑☑", 2, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := TruncateString(tt.in, tt.max)
			if got != tt.want || cut != tt.cut {
				t.Fatalf("TruncateString(%q, %d) = %q, %v; want %q, %v",
					tt.in, tt.max, got, cut, tt.want, tt.cut)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("result %q is not valid UTF-8", got)
			}
		})
	}
}
