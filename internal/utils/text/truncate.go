package text

// TruncateRunes returns the text cut to at most limit Unicode characters.
// Like CountRunes it operates on runes, so multi-byte characters are never
// split in the middle.
//
// Examples:
//
//	TruncateRunes("hello", 3)     // returns "hel"
//	TruncateRunes("hello", 10)    // returns "hello"
//	TruncateRunes("こんにちは", 2) // returns "こん"
func TruncateRunes(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
