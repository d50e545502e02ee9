package indexer

import "strings"

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "")

// Preprocess normalizes line endings and strips NUL bytes. Whitespace runs are kept because
// paragraph and line breaks drive chunk boundaries.
func Preprocess(text string) string {
	return lineEndings.Replace(text)
}
