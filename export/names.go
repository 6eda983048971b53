package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhcgn/mail-export/filter"
	"github.com/dhcgn/mail-export/model"
)

const (
	fromRunes    = 30
	toRunes      = 30
	subjectRunes = 16
	// MaxBaseName bounds the file name stem so full paths stay within
	// common filesystem limits.
	MaxBaseName = 200

	dateLayout = "2006-01-02"
)

// Sanitize replaces every character outside [A-Za-z0-9] with a hyphen,
// collapses hyphen runs and trims hyphens at both ends.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	hyphen := false
	for _, r := range s {
		if r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// DirName names the export directory for one run: the date followed by
// whichever criteria are set.
func DirName(date, sender, recipient, keywords string) string {
	return joinParts(date, sender, recipient, keywords)
}

// BaseFileName names the files of one message, without extension.
// Equal messages always get equal names; different messages may collide.
func BaseFileName(m model.Message) string {
	name := joinParts(
		m.Date.Format(dateLayout),
		truncateRunes(m.From, fromRunes),
		truncateRunes(m.To, toRunes),
		truncateRunes(m.Subject, subjectRunes),
	)
	if len(name) > MaxBaseName {
		name = name[:MaxBaseName]
	}
	return name
}

// PrepareDir creates the run's export directory below root.
func PrepareDir(root string, now time.Time, c filter.Criteria) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("export root is empty")
	}
	dir := filepath.Join(root, DirName(now.Format(dateLayout), c.Sender, c.Recipient, c.Keywords))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	return dir, nil
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := Sanitize(p); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "_")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
