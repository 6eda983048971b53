package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// Placeholder replaces characters the core PDF fonts cannot show.
const Placeholder = '?'

var punctuation = map[rune]string{
	'\u2018': "'", '\u2019': "'", '\u201A': "'", '\u201B': "'",
	'\u2032': "'", '\u2039': "'", '\u203A': "'",
	'\u201C': `"`, '\u201D': `"`, '\u201E': `"`, '\u201F': `"`,
	'\u2033': `"`, '\u00AB': `"`, '\u00BB': `"`,
	'\u2010': "-", '\u2011': "-", '\u2012': "-", '\u2013': "-",
	'\u2014': "-", '\u2015': "-", '\u2212': "-",
	'\u2026': "...",
	'\u2022': "*", '\u00B7': "*",
	'\u00A0': " ", '\u2009': " ", '\u202F': " ",
}

// Sanitize reduces s to text a Windows-1252 core font can draw. It is
// idempotent.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) {
			continue
		}
		if repl, ok := punctuation[r]; ok {
			b.WriteString(repl)
			continue
		}
		if r == '\n' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteByte(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if !encodable(r) {
			b.WriteRune(Placeholder)
			continue
		}
		b.WriteRune(r)
	}

	return normalizeWhitespace(b.String())
}

func encodable(r rune) bool {
	if r < 0x80 {
		return true
	}
	_, ok := charmap.Windows1252.EncodeRune(r)
	return ok
}

// normalizeWhitespace collapses space runs, drops trailing spaces and
// keeps at most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(collapseSpaces(line), " ")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Trim(strings.Join(out, "\n"), "\n ")
}

func collapseSpaces(line string) string {
	if !strings.Contains(line, "  ") {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	prev := false
	for _, r := range line {
		if r == ' ' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
