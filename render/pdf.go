package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dhcgn/mail-export/model"
)

// ErrNoBackend means no PDF backend is usable on this machine.
var ErrNoBackend = errors.New("no pdf backend available")

// Backend names accepted by Backends.
const (
	BackendAuto        = "auto"
	BackendChrome      = "chrome"
	BackendWkhtmltopdf = "wkhtmltopdf"
	BackendFPDF        = "fpdf"
	BackendNone        = "none"
)

// Document is what a PDF backend renders: the message and its HTML form.
type Document struct {
	Message model.Message
	HTML    []byte
}

// PDFBackend turns a Document into PDF bytes.
type PDFBackend interface {
	Name() string
	// Available reports why the backend cannot be used, or nil.
	Available(ctx context.Context) error
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// Backends returns the candidate chain for name in priority order.
func Backends(name string) ([]PDFBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendAuto:
		return []PDFBackend{NewChrome(ChromeOptions{}), NewWkhtmltopdf(), NewFPDF()}, nil
	case BackendChrome:
		return []PDFBackend{NewChrome(ChromeOptions{})}, nil
	case BackendWkhtmltopdf:
		return []PDFBackend{NewWkhtmltopdf()}, nil
	case BackendFPDF:
		return []PDFBackend{NewFPDF()}, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown pdf backend %q", name)
	}
}

// Select probes backends in order and returns the first available one.
// It returns nil when none is, after logging that once.
func Select(ctx context.Context, backends []PDFBackend, logger *slog.Logger) PDFBackend {
	for _, b := range backends {
		if b == nil {
			continue
		}
		if err := b.Available(ctx); err != nil {
			if logger != nil {
				logger.Debug("pdf backend unavailable", "backend", b.Name(), "err", err)
			}
			continue
		}
		if logger != nil {
			logger.Info("pdf backend selected", "backend", b.Name())
		}
		return b
	}

	if logger != nil {
		logger.Warn("no pdf backend available, pdf output disabled", "err", ErrNoBackend)
	}
	return nil
}
