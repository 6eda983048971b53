package render

import (
	"bytes"
	"context"
	"fmt"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

// Wkhtmltopdf renders through the external wkhtmltopdf binary.
type Wkhtmltopdf struct{}

func NewWkhtmltopdf() *Wkhtmltopdf {
	return &Wkhtmltopdf{}
}

func (w *Wkhtmltopdf) Name() string { return BackendWkhtmltopdf }

func (w *Wkhtmltopdf) Available(ctx context.Context) error {
	if _, err := wkhtmltopdf.NewPDFGenerator(); err != nil {
		return fmt.Errorf("wkhtmltopdf: %w", err)
	}
	return nil
}

func (w *Wkhtmltopdf) Render(ctx context.Context, doc Document) ([]byte, error) {
	gen, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}
	gen.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(doc.HTML))
	page.Encoding.Set("utf-8")
	gen.AddPage(page)

	if err := gen.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf create: %w", err)
	}
	return gen.Bytes(), nil
}
