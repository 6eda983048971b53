package extract

import (
	"errors"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	"github.com/k3a/html2text"

	"github.com/dhcgn/mail-export/model"
)

// NoReadableContent is the text of a message without any decodable text or
// HTML part.
const NoReadableContent = "No readable content found"

// Content is the canonical text/HTML pair of a message body.
type Content struct {
	Text string
	HTML string
	// HTMLNative is set when HTML was authored by the message rather than
	// synthesized from Text.
	HTMLNative bool
	Skipped    []model.Skip
}

// ExtractContent walks the body structure of e and builds its canonical
// content pair. Attachments are ignored. Parts that fail to decode are
// recorded in Skipped and the walk continues with the next part.
func ExtractContent(e *message.Entity) Content {
	var acc accumulator
	acc.walk(e, nil)
	return acc.content()
}

type accumulator struct {
	text    []string
	html    []string
	skipped []model.Skip
}

func (a *accumulator) walk(e *message.Entity, path []int) {
	mr := e.MultipartReader()
	if mr == nil {
		a.leaf(e, path)
		return
	}

	for i := 1; ; i++ {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return
		}
		child := append(append([]int(nil), path...), i)
		if part == nil {
			// The multipart stream itself is broken; nothing after this
			// point can be located.
			a.skip(child, fmt.Errorf("next part: %w", err))
			return
		}
		// Unknown charset or transfer encoding still yields a part whose
		// body is passed through undecoded.
		a.walk(part, child)
	}
}

func (a *accumulator) leaf(e *message.Entity, path []int) {
	if len(path) > 0 && isAttachment(e.Header) {
		return
	}

	mediaType := contentType(e.Header)
	if mediaType != "text/plain" && mediaType != "text/html" {
		return
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		a.skip(path, fmt.Errorf("read %s body: %w", mediaType, err))
		return
	}

	decoded := strings.ReplaceAll(toValidUTF8(body), "\r\n", "\n")
	if mediaType == "text/html" {
		a.html = append(a.html, decoded)
	} else {
		a.text = append(a.text, decoded)
	}
}

func (a *accumulator) skip(path []int, err error) {
	a.skipped = append(a.skipped, model.Skip{
		Stage: model.StagePart,
		Part:  partPath(path),
		Err:   err,
	})
}

func (a *accumulator) content() Content {
	text := strings.TrimSpace(strings.Join(a.text, "\n"))
	htmlBody := strings.TrimSpace(strings.Join(a.html, "\n"))

	c := Content{Skipped: a.skipped}
	switch {
	case htmlBody != "":
		c.HTML = htmlBody
		c.HTMLNative = true
		c.Text = text
		if c.Text == "" {
			c.Text = HTMLToText(htmlBody)
		}
	case text != "":
		c.Text = text
		c.HTML = WrapText(text)
	}

	if c.Text == "" {
		c.Text = NoReadableContent
	}
	return c
}

// HTMLToText renders HTML as plain text. Link texts are kept, images are
// dropped and lines are not wrapped.
func HTMLToText(htmlBody string) string {
	text := html2text.HTML2TextWithOptions(htmlBody,
		html2text.WithUnixLineBreaks(),
		html2text.WithLinksInnerText(),
	)
	return collapseBlankLines(text)
}

// WrapText turns plain text into an HTML fragment that keeps its line
// breaks and spacing.
func WrapText(text string) string {
	return `<pre style="white-space: pre-wrap; font-family: monospace;">` + html.EscapeString(text) + `</pre>`
}

// collapseBlankLines keeps at most two consecutive blank lines.
func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank <= 2 {
				result = append(result, "")
			}
			continue
		}
		blank = 0
		result = append(result, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

// contentType returns the lowercased media type, tolerating broken
// parameters. A missing Content-Type means text/plain.
func contentType(h message.Header) string {
	mediaType, _, err := h.ContentType()
	if err != nil {
		raw, _, _ := strings.Cut(h.Get("Content-Type"), ";")
		mediaType = strings.ToLower(strings.TrimSpace(raw))
	}
	if mediaType == "" {
		return "text/plain"
	}
	return mediaType
}

func isAttachment(h message.Header) bool {
	disp, _, err := h.ContentDisposition()
	if err != nil {
		return strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment")
	}
	return strings.EqualFold(disp, "attachment")
}

func partPath(path []int) string {
	if len(path) == 0 {
		return "0"
	}
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}
