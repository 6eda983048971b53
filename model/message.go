package model

import (
	"strings"
	"time"
)

// Message is the normalized form of a single mailbox message. It is built
// once per fetched message and is read-only afterwards.
type Message struct {
	Folder string
	ID     string

	From    string
	To      string
	Cc      string
	Bcc     string
	Subject string

	// DateHeader is the raw Date header text.
	DateHeader string
	// Date is the parsed DateHeader. When the header is missing or
	// unparsable it holds the processing time and DateFallback is set.
	Date         time.Time
	DateFallback bool

	// Text is never empty.
	Text string
	// HTML is the message's own HTML when HTMLNative is set, otherwise a
	// wrapper around Text. Empty only when the message had no readable part.
	HTML       string
	HTMLNative bool

	Raw []byte

	// Skipped lists body parts that could not be decoded.
	Skipped []Skip
}

// Recipients joins To, Cc and Bcc the way the recipient filter sees them.
func (m Message) Recipients() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.To, m.Cc, m.Bcc} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
