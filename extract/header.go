package extract

import (
	"bytes"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
)

// Replacement is substituted for bytes that are not valid in the declared
// (or assumed) charset.
const Replacement = "\uFFFD"

func init() {
	// Labels seen in the wild that the IANA index does not resolve.
	charset.RegisterEncoding("latin1", charmap.ISO8859_1)
	charset.RegisterEncoding("latin-1", charmap.ISO8859_1)
	charset.RegisterEncoding("cp1252", charmap.Windows1252)
	charset.RegisterEncoding("cp-1252", charmap.Windows1252)
	charset.RegisterEncoding("ascii", charmap.Windows1252)
}

var (
	wordDecoder = &mime.WordDecoder{CharsetReader: lenientCharsetReader}
	encodedWord = regexp.MustCompile(`=\?[^?\s]+\?[bBqQ]\?[^?\s]*\?=`)
)

// DecodeHeader decodes the RFC 2047 encoded words in a header value and
// returns UTF-8 text. Literal runs are kept in place. Words in an unknown
// charset are read as UTF-8 with invalid bytes replaced, so the result is
// always a string and never an error.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "=?") {
		return raw
	}

	decoded, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		decoded = decodeWords(raw)
	}
	return strings.ToValidUTF8(decoded, Replacement)
}

// decodeWords decodes each encoded word on its own and leaves malformed
// ones as written. Whitespace between two decoded words is dropped.
func decodeWords(raw string) string {
	var (
		b           strings.Builder
		last        int
		prevDecoded bool
	)
	for _, loc := range encodedWord.FindAllStringIndex(raw, -1) {
		gap := raw[last:loc[0]]
		word, err := wordDecoder.Decode(raw[loc[0]:loc[1]])
		if !(prevDecoded && err == nil && strings.TrimSpace(gap) == "") {
			b.WriteString(gap)
		}
		if err != nil {
			b.WriteString(raw[loc[0]:loc[1]])
		} else {
			b.WriteString(word)
		}
		prevDecoded = err == nil
		last = loc[1]
	}
	b.WriteString(raw[last:])
	return b.String()
}

func lenientCharsetReader(label string, input io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}

	if r, err := charset.Reader(label, bytes.NewReader(raw)); err == nil {
		if decoded, err := io.ReadAll(r); err == nil {
			return strings.NewReader(toValidUTF8(decoded)), nil
		}
	}

	return strings.NewReader(toValidUTF8(raw)), nil
}

func toValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), Replacement)
}
