package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcgn/mail-export/config"
	"github.com/dhcgn/mail-export/export"
	"github.com/dhcgn/mail-export/progress"
	"github.com/dhcgn/mail-export/render"
	"github.com/dhcgn/mail-export/search"
	"github.com/dhcgn/mail-export/state"
	"github.com/dhcgn/mail-export/stats"
)

// Runner performs one export run over an open mailbox.
type Runner struct {
	cfg     config.Config
	mailbox search.Mailbox
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg config.Config, mailbox search.Mailbox, logger *slog.Logger) (*Runner, error) {
	if mailbox == nil {
		return nil, fmt.Errorf("mailbox must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, mailbox: mailbox, logger: logger, now: time.Now}, nil
}

// Run picks the PDF backend, searches, then exports every match in discovery order. Only
// cancellation and an unusable export directory end it early; everything
// else is counted in the returned summary.
func (r *Runner) Run(ctx context.Context) (stats.Summary, error) {
	started := r.now()
	collector := stats.NewCollector()
	criteria := r.cfg.Criteria()

	backends, err := render.Backends(r.cfg.PDFBackend)
	if err != nil {
		return stats.Summary{}, err
	}
	pdf := render.Select(ctx, backends, r.logger)

	searcher, err := search.New(r.mailbox, search.Options{Criteria: criteria, Now: r.now}, collector, r.logger)
	if err != nil {
		return stats.Summary{}, err
	}

	folders, err := searcher.Folders(ctx, r.cfg.AllFolders)
	if err != nil {
		r.logger.Warn("folder discovery failed, searching INBOX only", "err", err)
		folders = []string{search.Inbox}
	}
	r.logger.Debug("searching folders", "count", len(folders), "folders", folders)

	res, err := searcher.Run(ctx, folders)
	if err != nil {
		return collector.Snapshot(), err
	}
	if len(res.Messages) == 0 {
		r.logger.Info("No matching messages found", "scanned", res.Scanned, "folders", res.Folders)
		return collector.Snapshot(), nil
	}

	dir, err := export.PrepareDir(r.cfg.ExportDir, started, criteria)
	if err != nil {
		return collector.Snapshot(), err
	}
	r.logger.Info("exporting messages", "count", len(res.Messages), "path", dir)

	bar := progress.New(len(res.Messages), !r.cfg.NoProgress && !r.cfg.Verbose && r.cfg.LogLevel == "info")
	exporter, err := export.New(export.Options{
		Dir:     dir,
		PDF:     pdf,
		Tracker: state.NewMemoryTracker(),
		Events:  stats.Fanout{collector, bar},
	}, r.logger)
	if err != nil {
		return collector.Snapshot(), err
	}

	for _, msg := range res.Messages {
		if ctx.Err() != nil {
			break
		}
		// failures are logged and counted by the exporter
		_, _ = exporter.Export(ctx, msg)
	}

	summary := collector.Snapshot()
	bar.Stop(summary)

	r.logger.Info(fmt.Sprintf("Successfully exported %d/%d messages", summary.Exported, len(res.Messages)), "path", dir)
	r.logger.Info("run finished", append(summary.LogAttrs(), "duration", time.Since(started))...)
	return summary, ctx.Err()
}

// FolderInfo is one row of a folder listing.
type FolderInfo struct {
	Name     string
	Messages uint32
	Err      error
}

// Folders lists every folder with its message count. A folder that cannot
// be selected is reported with its error.
func Folders(ctx context.Context, mailbox search.Mailbox, logger *slog.Logger) ([]FolderInfo, error) {
	lines, err := mailbox.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	names := search.DiscoverFolders(lines, logger)
	infos := make([]FolderInfo, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return infos, err
		}
		count, err := mailbox.Select(ctx, name)
		if err != nil && logger != nil {
			logger.Warn("cannot select folder", "folder", name, "err", err)
		}
		infos = append(infos, FolderInfo{Name: name, Messages: count, Err: err})
	}
	return infos, nil
}
