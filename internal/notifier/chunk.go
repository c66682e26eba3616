package notifier

import (
	"strings"
	"unicode/utf8"
)

// Google Chat rejects long texts, so anything at or above chunkLimit
// characters is split at the last paragraph break inside splitWindow. The
// window leaves room for the continuation glyph.
const (
	chunkLimit        = 4000
	splitWindow       = 3997
	paragraphBreak    = "\n\n"
	continuationGlyph = "\n↕️️"
)

// cut returns the next chunk to post and the text still to be sent. rest is
// empty when head is the final chunk. ok is false when text is too long and
// has no usable paragraph break.
func cut(text string) (head, rest string, ok bool) {
	if utf8.RuneCountInString(text) < chunkLimit {
		return text, "", true
	}

	window := text[:runeOffset(text, splitWindow)]
	at := strings.LastIndex(window, paragraphBreak)
	// A break at offset 0 would post an empty chunk and never advance.
	if at <= 0 {
		return "", "", false
	}

	return text[:at] + continuationGlyph, text[at:], true
}

// runeOffset returns the byte offset of the n-th rune of s, or len(s).
func runeOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
