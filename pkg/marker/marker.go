// Package marker implements the inline attachment reference syntax.
//
// A marker is "[" ICON TAGNAME "]" where ICON is 📷 for images and 📎 for
// files, and TAGNAME is one or more characters other than "]". The content
// string is the canonical form; everything in this package is derived from
// it and can be thrown away.
package marker

import (
	"strings"
	"unicode/utf8"

	"github.com/aretw0/memovault/pkg/core"
)

// Icons of the two marker kinds.
const (
	ImageIcon = "\U0001F4F7" // 📷
	FileIcon  = "\U0001F4CE" // 📎
)

const (
	openBracket  = '['
	closeBracket = ']'
)

// Token is one marker found in a content string.
// Offset and End are byte offsets: content[Offset:End] is the literal marker.
type Token struct {
	Kind   core.MediaKind
	Tag    string
	Offset int
	End    int
}

// Literal returns the marker text of the token.
func (t Token) Literal() string { return Format(t.Kind, t.Tag) }

// Icon returns the glyph used for kind.
func Icon(kind core.MediaKind) string {
	if kind == core.MediaFile {
		return FileIcon
	}
	return ImageIcon
}

// Format builds the marker literal for a tag.
func Format(kind core.MediaKind, tag string) string {
	return string(openBracket) + Icon(kind) + tag + string(closeBracket)
}

// ValidTag reports whether tag can appear inside a marker. A tag may not
// close the marker or open another one.
func ValidTag(tag string) bool {
	return tag != "" &&
		!strings.ContainsRune(tag, closeBracket) &&
		!strings.Contains(tag, string(openBracket)+ImageIcon) &&
		!strings.Contains(tag, string(openBracket)+FileIcon)
}

// Parse scans content once, left to right, and returns its markers in order.
// A "]" closes the nearest preceding unclosed marker start; a new start
// abandons any earlier one still open.
func Parse(content string) []Token {
	var tokens []Token

	start := -1 // byte offset of the open bracket
	tagStart := 0
	var kind core.MediaKind

	for i := 0; i < len(content); {
		switch content[i] {
		case openBracket:
			if k, width, ok := iconAt(content, i+1); ok {
				start = i
				kind = k
				tagStart = i + 1 + width
				i = tagStart
				continue
			}
		case closeBracket:
			if start >= 0 && i > tagStart {
				tokens = append(tokens, Token{
					Kind:   kind,
					Tag:    content[tagStart:i],
					Offset: start,
					End:    i + 1,
				})
			}
			start = -1
		}
		i++
	}

	return tokens
}

// Count returns how many markers of each kind content holds.
func Count(content string) (images, files int) {
	for _, t := range Parse(content) {
		if t.Kind == core.MediaFile {
			files++
		} else {
			images++
		}
	}
	return images, files
}

func iconAt(s string, i int) (core.MediaKind, int, bool) {
	if i >= len(s) {
		return "", 0, false
	}
	r, width := utf8.DecodeRuneInString(s[i:])
	switch string(r) {
	case ImageIcon:
		return core.MediaImage, width, true
	case FileIcon:
		return core.MediaFile, width, true
	}
	return "", 0, false
}
