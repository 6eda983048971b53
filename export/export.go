package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dhcgn/mail-export/model"
	"github.com/dhcgn/mail-export/render"
	"github.com/dhcgn/mail-export/state"
	"github.com/dhcgn/mail-export/stats"
)

const (
	ExtEML  = ".eml"
	ExtHTML = ".html"
	ExtPDF  = ".pdf"

	fileMode = 0o644
)

type Options struct {
	// Dir is the prepared export directory, see PrepareDir.
	Dir string
	// PDF renders the .pdf file. Nil skips PDF output.
	PDF render.PDFBackend
	// Tracker detects different messages sharing a base name. Defaults to
	// an in-memory tracker.
	Tracker state.Tracker
	Events  stats.Emitter
}

// Written lists the files produced for one message.
type Written struct {
	Base string
	EML  string
	HTML string
	PDF  string
}

type Exporter struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Exporter, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("export directory is empty")
	}
	if opts.Tracker == nil {
		opts.Tracker = state.NewMemoryTracker()
	}
	return &Exporter{opts: opts, logger: logger}, nil
}

// Export writes the .eml, .html and, with a PDF backend, .pdf files for m.
// Existing files with the same name are overwritten. Any error means the
// message does not count as exported; files written before the failure
// stay on disk.
func (e *Exporter) Export(ctx context.Context, m model.Message) (Written, error) {
	if err := ctx.Err(); err != nil {
		return Written{}, err
	}

	base := BaseFileName(m)
	w := Written{Base: base}
	e.claim(base, m)

	w.EML = filepath.Join(e.opts.Dir, base+ExtEML)
	if err := os.WriteFile(w.EML, m.Raw, fileMode); err != nil {
		return w, e.fail(m, fmt.Errorf("write eml: %w", err))
	}

	doc, err := render.HTML(m)
	if err != nil {
		return w, e.fail(m, err)
	}
	w.HTML = filepath.Join(e.opts.Dir, base+ExtHTML)
	if err := os.WriteFile(w.HTML, doc, fileMode); err != nil {
		return w, e.fail(m, fmt.Errorf("write html: %w", err))
	}

	if e.opts.PDF != nil {
		pdf, err := e.opts.PDF.Render(ctx, render.Document{Message: m, HTML: doc})
		if err != nil {
			return w, e.fail(m, fmt.Errorf("render pdf with %s: %w", e.opts.PDF.Name(), err))
		}
		path := filepath.Join(e.opts.Dir, base+ExtPDF)
		if err := os.WriteFile(path, pdf, fileMode); err != nil {
			return w, e.fail(m, fmt.Errorf("write pdf: %w", err))
		}
		w.PDF = path
	}

	if e.logger != nil {
		e.logger.Debug("saved", "base", base, "folder", m.Folder, "uid", m.ID, "pdf", w.PDF != "")
	}
	e.emit(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, Folder: m.Folder, MessageID: m.ID, Detail: base})
	return w, nil
}

func (e *Exporter) claim(base string, m model.Message) {
	prev, collided := e.opts.Tracker.Claim(base, state.Claim{Folder: m.Folder, ID: m.ID, Hash: state.Hash(m.Raw)})
	if !collided {
		return
	}
	if e.logger != nil {
		e.logger.Warn("export name collision, overwriting earlier message",
			"base", base,
			"folder", m.Folder, "uid", m.ID,
			"previousFolder", prev.Folder, "previousUid", prev.ID)
	}
	e.emit(stats.Event{
		Stage:     stats.StageExport,
		Type:      stats.EventTypeCollision,
		Folder:    m.Folder,
		MessageID: m.ID,
		Detail:    base,
	})
}

func (e *Exporter) fail(m model.Message, err error) error {
	sk := model.Skip{Stage: model.StageRender, Folder: m.Folder, ID: m.ID, Err: err}
	if e.logger != nil {
		e.logger.Error("export failed", "folder", m.Folder, "uid", m.ID, "err", err)
	}
	e.emit(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, Folder: m.Folder, MessageID: m.ID, Err: sk})
	return sk
}

func (e *Exporter) emit(evt stats.Event) {
	if e.opts.Events != nil {
		e.opts.Events.EmitEvent(evt)
	}
}
