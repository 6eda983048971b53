package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello world", want: "hello world"},
		{name: "smart quotes", in: "“quoted” and ‘single’", want: `"quoted" and 'single'`},
		{name: "dashes and ellipsis", in: "a – b — c…", want: "a - b - c..."},
		{name: "zero width and bidi", in: "in\u200bvis\u200eible\ufeff", want: "invisible"},
		{name: "control chars", in: "bell\x07 tab\there", want: "bell tab here"},
		{name: "nbsp", in: "non\u00a0breaking", want: "non breaking"},
		{name: "crlf and blank lines", in: "a\r\n\r\n\r\n\r\nb  \r\nc", want: "a\n\nb\nc"},
		{name: "space runs", in: "a    b\t\tc", want: "a b c"},
		{name: "latin1 kept", in: "café über", want: "café über"},
		{name: "euro kept", in: "5 €", want: "5 €"},
		{name: "outside cp1252", in: "你好 \U0001F600", want: "?? ?"},
		{name: "invalid utf8", in: "a\xffb", want: "a?b"},
		{name: "trimmed", in: "\n\n  text  \n\n", want: "text"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"“Hello” — 你好\r\n\r\n\r\n  next line\t\tend  ",
		" \n a \n\n\n\n b",
		"\u200b\u200b",
		"x……",
		"Grüße • item",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
