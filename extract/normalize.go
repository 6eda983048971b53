package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"

	"github.com/dhcgn/mail-export/model"
)

// ErrNoBody is returned for raw input that does not contain a message.
var ErrNoBody = errors.New("empty message")

// Normalize parses raw message bytes into a model.Message. An unparsable
// Date header falls back to now() and sets DateFallback. A nil now uses
// time.Now.
func Normalize(folder, id string, raw []byte, now func() time.Time) (model.Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Message{}, ErrNoBody
	}
	if now == nil {
		now = time.Now
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if entity == nil {
		return model.Message{}, fmt.Errorf("parse message: %w", err)
	}
	// message.IsUnknownCharset / IsUnknownEncoding: the entity is still
	// usable, its body is read undecoded.

	h := entity.Header
	msg := model.Message{
		Folder:     folder,
		ID:         id,
		From:       DecodeHeader(h.Get("From")),
		To:         DecodeHeader(h.Get("To")),
		Cc:         DecodeHeader(h.Get("Cc")),
		Bcc:        DecodeHeader(h.Get("Bcc")),
		Subject:    DecodeHeader(h.Get("Subject")),
		DateHeader: h.Get("Date"),
		Raw:        raw,
	}

	msg.Date, msg.DateFallback = parseDate(msg.DateHeader, now)

	content := ExtractContent(entity)
	msg.Text = content.Text
	msg.HTML = content.HTML
	msg.HTMLNative = content.HTMLNative
	for _, s := range content.Skipped {
		s.Folder, s.ID = folder, id
		msg.Skipped = append(msg.Skipped, s)
	}

	return msg, nil
}

func parseDate(header string, now func() time.Time) (time.Time, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return now(), true
	}
	t, err := mail.ParseDate(header)
	if err != nil {
		return now(), true
	}
	return t, false
}
