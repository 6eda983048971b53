package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/dhcgn/mail-export/model"
)

var documentTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Subject}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; margin: 20px; }
.email-header { background-color: #f5f5f5; border: 1px solid #ddd; padding: 10px; margin-bottom: 20px; }
.email-header table { border-collapse: collapse; }
.email-header td { padding: 2px 8px 2px 0; vertical-align: top; }
.email-header td.label { font-weight: bold; white-space: nowrap; }
.email-body { line-height: 1.4; }
</style>
</head>
<body>
<div class="email-header">
<table>
<tr><td class="label">Date:</td><td>{{.Date}}</td></tr>
<tr><td class="label">From:</td><td>{{.From}}</td></tr>
<tr><td class="label">To:</td><td>{{.To}}</td></tr>
{{- if .Cc}}
<tr><td class="label">Cc:</td><td>{{.Cc}}</td></tr>
{{- end}}
<tr><td class="label">Subject:</td><td>{{.Subject}}</td></tr>
</table>
</div>
<div class="email-body">
{{if .HTML}}{{.HTML}}{{else}}<pre style="white-space: pre-wrap; font-family: monospace;">{{.Text}}</pre>{{end}}
</div>
</body>
</html>
`))

type documentData struct {
	Date    string
	From    string
	To      string
	Cc      string
	Subject string
	HTML    template.HTML
	Text    string
}

// HTML renders m as a standalone document. Header values are escaped; the
// message HTML is embedded as is.
func HTML(m model.Message) ([]byte, error) {
	date := m.DateHeader
	if date == "" {
		date = m.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	}

	data := documentData{
		Date:    date,
		From:    m.From,
		To:      m.To,
		Cc:      m.Cc,
		Subject: m.Subject,
		HTML:    template.HTML(m.HTML),
		Text:    m.Text,
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
