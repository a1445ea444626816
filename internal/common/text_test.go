package common

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBytes int
		want     string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"empty input", "", 5, ""},
		// "世" is 3 bytes; cutting at byte 4 must back up to the rune boundary
		{"multibyte straddles cut", "a世界", 4, "a世"},
		{"cut inside first rune", "世界", 2, ""},
		{"cut on rune boundary", "世界", 3, "世"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateUTF8(tt.input, tt.maxBytes)
			if got != tt.want {
				t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", tt.input, tt.maxBytes, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateUTF8(%q, %d) produced invalid UTF-8", tt.input, tt.maxBytes)
			}
		})
	}

	t.Run("long CJK text stays valid at every cut", func(t *testing.T) {
		s := strings.Repeat("星标仓库", 100)
		for max := 0; max <= len(s); max++ {
			got := TruncateUTF8(s, max)
			if !utf8.ValidString(got) {
				t.Fatalf("invalid UTF-8 at maxBytes=%d", max)
			}
			if len(got) > max {
				t.Fatalf("result longer than limit at maxBytes=%d", max)
			}
		}
	})
}
