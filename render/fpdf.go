package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const headerSubjectRunes = 50

// FPDF draws the message with fpdf's core fonts. It needs no external
// program, so it is always available, but it supports no CSS and only
// Windows-1252 text; everything passes through Sanitize first.
type FPDF struct{}

func NewFPDF() *FPDF {
	return &FPDF{}
}

func (f *FPDF) Name() string { return BackendFPDF }

func (f *FPDF) Available(ctx context.Context) error { return nil }

func (f *FPDF) Render(ctx context.Context, doc Document) ([]byte, error) {
	m := doc.Message

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(Sanitize(s)) }

	subject := []rune(Sanitize(m.Subject))
	header := string(subject)
	if len(subject) > headerSubjectRunes {
		header = string(subject[:headerSubjectRunes]) + "..."
	}

	pdf.SetAutoPageBreak(true, 15)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 10, tr("Email: "+header), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Email Message", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	date := m.DateHeader
	if date == "" {
		date = m.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	}
	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(30, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, text(value), "", "L", false)
	}
	row("Date:", date)
	row("From:", m.From)
	row("To:", m.To)
	if m.Cc != "" {
		row("Cc:", m.Cc)
	}
	row("Subject:", m.Subject)

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Message Body:", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, text(m.Text), "", "L", false)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("fpdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf output: %w", err)
	}
	return buf.Bytes(), nil
}
