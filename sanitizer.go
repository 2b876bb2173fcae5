package code_dataset

import (
	"strings"
	"unicode"
)

const byteOrderMark = "\uFEFF"

// SanitizeText normalizes line endings in source text. It drops `\r`,
// strips a leading byte order mark, and trims trailing blanks from every
// line. Leading indentation and blank lines are kept, since both carry
// meaning in code.
func SanitizeText(text string) string {
	text = strings.TrimPrefix(text, byteOrderMark)
	// Silently drop Windows `\r`
	text = strings.ReplaceAll(text, "\r", "")
	lines := strings.Split(text, "\n")
	for lineIdx := range lines {
		lines[lineIdx] = strings.TrimRightFunc(lines[lineIdx],
			unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}
