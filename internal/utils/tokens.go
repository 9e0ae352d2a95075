package utils

import "unicode/utf8"

// charsPerToken is the rough characters-per-token ratio used when a provider
// does not report usage.
const charsPerToken = 4

// EstimateTokens approximates the token count of text: zero for empty text,
// otherwise max(1, characters/4).
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(1, utf8.RuneCountInString(text)/charsPerToken)
}
