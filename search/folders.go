package search

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Inbox is the folder every discovery result contains.
const Inbox = "INBOX"

var errMalformedListLine = errors.New("malformed folder listing line")

// ParseListLine extracts the folder name from one folder listing line of
// the form
//
//	(\HasNoChildren) "/" "Sent Items"
//
// The name is the quoted string (or bare atom) following the delimiter
// token, which itself may be a quoted string or NIL.
func ParseListLine(line string) (string, error) {
	rest := strings.TrimSpace(line)
	rest = strings.TrimPrefix(rest, "* LIST ")

	if !strings.HasPrefix(rest, "(") {
		return "", fmt.Errorf("%w: missing attribute list: %q", errMalformedListLine, line)
	}
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated attribute list: %q", errMalformedListLine, line)
	}
	rest = strings.TrimSpace(rest[end+1:])

	switch {
	case strings.HasPrefix(rest, `"`):
		_, after, err := readQuoted(rest)
		if err != nil {
			return "", fmt.Errorf("%w: delimiter: %v: %q", errMalformedListLine, err, line)
		}
		rest = after
	case len(rest) >= 3 && strings.EqualFold(rest[:3], "NIL"):
		rest = rest[3:]
	default:
		return "", fmt.Errorf("%w: missing delimiter: %q", errMalformedListLine, line)
	}
	rest = strings.TrimSpace(rest)

	if rest == "" {
		return "", fmt.Errorf("%w: missing name: %q", errMalformedListLine, line)
	}
	if strings.HasPrefix(rest, `"`) {
		name, _, err := readQuoted(rest)
		if err != nil {
			return "", fmt.Errorf("%w: name: %v: %q", errMalformedListLine, err, line)
		}
		if name == "" {
			return "", fmt.Errorf("%w: empty name: %q", errMalformedListLine, line)
		}
		return name, nil
	}
	if strings.ContainsAny(rest, ` "()`) {
		return "", fmt.Errorf("%w: unquoted name with specials: %q", errMalformedListLine, line)
	}
	return rest, nil
}

// readQuoted reads a quoted string with backslash escapes from the start
// of s and returns its value and the remainder after the closing quote.
func readQuoted(s string) (string, string, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 >= len(s) {
				return "", "", errors.New("dangling escape")
			}
			i++
			b.WriteByte(s[i])
		case '"':
			return b.String(), s[i+1:], nil
		default:
			b.WriteByte(c)
		}
	}
	return "", "", errors.New("unterminated quoted string")
}

// DiscoverFolders turns folder listing lines into an ordered, de-duplicated
// list of folder names. Lines that cannot be parsed are dropped with a
// warning. INBOX is always present and always first.
func DiscoverFolders(lines []string, logger *slog.Logger) []string {
	folders := []string{Inbox}
	seen := map[string]bool{Inbox: true}

	for _, line := range lines {
		name, err := ParseListLine(line)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping folder listing line", "line", line, "err", err)
			}
			continue
		}
		if strings.EqualFold(name, Inbox) {
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		folders = append(folders, name)
	}

	return folders
}

// QuoteListLine renders a folder as a listing line that ParseListLine
// accepts. Transports whose client library already parsed the listing use
// it to hand names to DiscoverFolders.
func QuoteListLine(attrs []string, delim rune, name string) string {
	delimiter := "NIL"
	if delim != 0 {
		delimiter = quote(string(delim))
	}
	return fmt.Sprintf("(%s) %s %s", strings.Join(attrs, " "), delimiter, quote(name))
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
