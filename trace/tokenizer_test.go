package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		max  int
		want []string
	}{
		{"", MaxTokens, []string{}},
		{"   \n", MaxTokens, []string{}},
		{"8,16 1 42\n", MaxTokens, []string{"8,16", "1", "42"}},
		{"  a\tb  \t c\r\n", MaxTokens, []string{"a", "b", "c"}},
		{"a b c d e", 3, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.line, tt.max), "line %q", tt.line)
	}
}

func TestTokenizeCapsAtMaxTokens(t *testing.T) {
	line := "0 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17 18 19\n"
	tokens := Tokenize(line, MaxTokens)

	assert.Len(t, tokens, MaxTokens)
	assert.Equal(t, "15", tokens[MaxTokens-1])
}
