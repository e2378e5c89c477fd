package marker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var blankLineRun = regexp.MustCompile(`\n{3,}`)

// CollapseBlankLines turns every run of three or more newlines into two.
func CollapseBlankLines(content string) string {
	return blankLineRun.ReplaceAllString(content, "\n\n")
}

// StripMatching removes every marker for which remove returns true, together
// with a single whitespace character directly following it.
// It returns the new content and the number of markers removed.
func StripMatching(content string, remove func(Token) bool) (string, int) {
	tokens := Parse(content)
	if len(tokens) == 0 {
		return content, 0
	}

	var b strings.Builder
	b.Grow(len(content))

	removed := 0
	last := 0
	for _, t := range tokens {
		if t.Offset < last || !remove(t) {
			continue
		}
		b.WriteString(content[last:t.Offset])
		last = t.End
		if r, width := utf8.DecodeRuneInString(content[last:]); width > 0 && unicode.IsSpace(r) {
			last += width
		}
		removed++
	}
	b.WriteString(content[last:])

	return b.String(), removed
}

// StripAll removes every marker and one following whitespace character each.
func StripAll(content string) (string, int) {
	return StripMatching(content, func(Token) bool { return true })
}

// Tidy collapses blank-line runs and trims surrounding whitespace.
func Tidy(content string) string {
	return strings.TrimSpace(CollapseBlankLines(content))
}
