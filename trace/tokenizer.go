package trace

import "strings"

// MaxTokens is enough for every field the classifier looks at.
const MaxTokens = 16

// Tokenize splits a trace line on whitespace, keeping at most max tokens.
func Tokenize(line string, max int) []string {
	tokens := strings.Fields(line)
	if len(tokens) > max {
		tokens = tokens[:max]
	}

	return tokens
}
