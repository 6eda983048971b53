package export

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-export/model"
	"github.com/dhcgn/mail-export/render"
	"github.com/dhcgn/mail-export/stats"
)

type stubPDF struct {
	err  error
	docs int
}

func (s *stubPDF) Name() string { return "stub" }
func (s *stubPDF) Available(context.Context) error { return nil }
func (s *stubPDF) Render(_ context.Context, doc render.Document) ([]byte, error) {
	s.docs++
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte("%PDF-stub "), doc.HTML[:10]...), nil
}

func testMessage(id, raw string) model.Message {
	return model.Message{
		Folder:     "INBOX",
		ID:         id,
		From:       "alice@example.com",
		To:         "me@example.com",
		Subject:    "Hello",
		DateHeader: "Fri, 05 Jan 2024 10:00:00 +0000",
		Date:       time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
		Text:       "Hi",
		HTML:       "<p>Hi</p>",
		HTMLNative: true,
		Raw:        []byte(raw),
	}
}

func TestExporter_WritesAllFormats(t *testing.T) {
	dir := t.TempDir()
	pdf := &stubPDF{}
	collector := stats.NewCollector()
	exp, err := New(Options{Dir: dir, PDF: pdf, Events: collector}, nil)
	require.NoError(t, err)

	w, err := exp.Export(context.Background(), testMessage("1", "raw message"))
	require.NoError(t, err)

	eml, err := os.ReadFile(w.EML)
	require.NoError(t, err)
	assert.Equal(t, "raw message", string(eml))

	html, err := os.ReadFile(w.HTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<p>Hi</p>")

	assert.FileExists(t, w.PDF)
	assert.Equal(t, filepath.Join(dir, w.Base+ExtPDF), w.PDF)
	assert.Equal(t, 1, collector.Snapshot().Exported)
}

func TestExporter_NoPDFBackend(t *testing.T) {
	dir := t.TempDir()
	exp, err := New(Options{Dir: dir}, nil)
	require.NoError(t, err)

	w, err := exp.Export(context.Background(), testMessage("1", "raw"))
	require.NoError(t, err)

	assert.FileExists(t, w.EML)
	assert.FileExists(t, w.HTML)
	assert.Empty(t, w.PDF)
	assert.NoFileExists(t, filepath.Join(dir, w.Base+ExtPDF))
}

func TestExporter_PDFFailureKeepsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	collector := stats.NewCollector()
	exp, err := New(Options{Dir: dir, PDF: &stubPDF{err: errors.New("printer on fire")}, Events: collector}, nil)
	require.NoError(t, err)

	w, err := exp.Export(context.Background(), testMessage("1", "raw"))
	require.Error(t, err)

	var sk model.Skip
	require.ErrorAs(t, err, &sk)
	assert.Equal(t, model.StageRender, sk.Stage)

	assert.FileExists(t, w.EML)
	assert.FileExists(t, w.HTML)
	assert.NoFileExists(t, filepath.Join(dir, w.Base+ExtPDF))

	summary := collector.Snapshot()
	assert.Equal(t, 0, summary.Exported)
	assert.Equal(t, 1, summary.Errors)
}

func TestExporter_OverwritesAndReportsCollisions(t *testing.T) {
	dir := t.TempDir()
	collector := stats.NewCollector()
	exp, err := New(Options{Dir: dir, Events: collector}, nil)
	require.NoError(t, err)

	first, err := exp.Export(context.Background(), testMessage("1", "first"))
	require.NoError(t, err)
	_, err = exp.Export(context.Background(), testMessage("1", "first"))
	require.NoError(t, err)
	assert.Equal(t, 0, collector.Snapshot().Collisions)

	second, err := exp.Export(context.Background(), testMessage("2", "second"))
	require.NoError(t, err)
	assert.Equal(t, first.EML, second.EML)

	eml, err := os.ReadFile(second.EML)
	require.NoError(t, err)
	assert.Equal(t, "second", string(eml))

	summary := collector.Snapshot()
	assert.Equal(t, 1, summary.Collisions)
	assert.Equal(t, 3, summary.Exported)
}

func TestExporter_RequiresDir(t *testing.T) {
	_, err := New(Options{}, nil)
	assert.Error(t, err)
}

func TestExporter_LogsSavesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	exp, err := New(Options{Dir: t.TempDir()}, logger)
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), testMessage("1", "raw"))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "saved")

	buf.Reset()
	logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	exp, err = New(Options{Dir: t.TempDir()}, logger)
	require.NoError(t, err)

	_, err = exp.Export(context.Background(), testMessage("1", "raw"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "msg=saved")
}
