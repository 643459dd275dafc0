// Package text holds small helpers for prompt text handling. Prompt
// budgets are expressed in characters, not bytes, so everything here
// works on runes.
package text

// CountRunes returns the number of Unicode characters in text. Emoji
// and CJK characters count as one each regardless of byte width.
func CountRunes(text string) int {
	return len([]rune(text))
}
