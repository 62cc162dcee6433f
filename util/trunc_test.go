package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRightWithSuffix(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		n        int
		suffix   string
		expected string
	}{
		{name: "no truncation", text: "short.zip", n: 30, suffix: "...", expected: "short.zip"},
		{name: "exact length", text: "12345", n: 5, suffix: "...", expected: "12345"},
		{name: "truncated", text: "a-very-long-archive-name.zip", n: 6, suffix: "...", expected: "a-very..."},
		{name: "zero keeps only suffix", text: "abc", n: 0, suffix: "...", expected: "..."},
		{name: "multibyte runes", text: "héllo-wörld.zip", n: 5, suffix: "…", expected: "héllo…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TruncateRightWithSuffix(tt.text, tt.n, tt.suffix))
		})
	}
}
