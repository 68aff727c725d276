package logger

import (
	"strings"
	"testing"
)

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello..."},
		{"trimmed", "  padded  ", 10, "padded"},
		{"zero limit", "anything", 0, ""},
		{"multibyte", strings.Repeat("ж", 6), 4, "жжжж..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateForLog(tc.input, tc.limit)
			if got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}
