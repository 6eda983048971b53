package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcgn/mail-export/extract"
	"github.com/dhcgn/mail-export/filter"
	"github.com/dhcgn/mail-export/model"
	"github.com/dhcgn/mail-export/stats"
)

// ErrNoSuchFolder is returned by a Mailbox for a folder it does not have.
var ErrNoSuchFolder = errors.New("no such folder")

// Mailbox is the transport session the searcher reads from. Search and
// Fetch operate on the most recently selected folder.
type Mailbox interface {
	// ListFolders returns one listing line per folder, see ParseListLine.
	ListFolders(ctx context.Context) ([]string, error)
	// Select opens a folder read-only and returns its message count.
	Select(ctx context.Context, folder string) (uint32, error)
	// Search returns the ids of the selected folder's messages within the
	// range, in ascending order.
	Search(ctx context.Context, r DateRange) ([]string, error)
	// Fetch returns the raw bytes of one message.
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// DateRange is a server-side date filter on whole days. Since is
// inclusive and Before exclusive; zero values leave a side open.
type DateRange struct {
	Since  time.Time
	Before time.Time
}

// RangeFor translates the inclusive criteria bounds into a DateRange.
func RangeFor(c filter.Criteria) DateRange {
	var r DateRange
	if !c.Start.IsZero() {
		r.Since = day(c.Start)
	}
	if !c.End.IsZero() {
		r.Before = day(c.End).AddDate(0, 0, 1)
	}
	return r
}

// Contains reports whether the calendar day of t, taken in t's own
// location, falls within the range. Servers compare SINCE and BEFORE the
// same way, ignoring the time of day and zone.
func (r DateRange) Contains(t time.Time) bool {
	t = day(t)
	if !r.Since.IsZero() && t.Before(r.Since) {
		return false
	}
	if !r.Before.IsZero() && !t.Before(r.Before) {
		return false
	}
	return true
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Options configures a Searcher.
type Options struct {
	Criteria filter.Criteria
	// Now is the fallback timestamp for messages without a usable Date
	// header. Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a search across folders. Messages keep
// discovery order: folder order first, message id order within a folder.
type Result struct {
	Messages []model.Message
	Skipped  []model.Skip
	Folders  int
	Scanned  int
}

// Searcher runs the fetch, decode and match loop over a Mailbox.
type Searcher struct {
	mailbox Mailbox
	matcher *filter.Matcher
	rng     DateRange
	now     func() time.Time
	events  stats.Emitter
	logger  *slog.Logger
}

// New creates a Searcher. events and logger may be nil.
func New(mailbox Mailbox, opts Options, events stats.Emitter, logger *slog.Logger) (*Searcher, error) {
	if mailbox == nil {
		return nil, fmt.Errorf("mailbox must not be nil")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Searcher{
		mailbox: mailbox,
		matcher: filter.New(opts.Criteria),
		rng:     RangeFor(opts.Criteria),
		now:     now,
		events:  events,
		logger:  logger,
	}, nil
}

// Folders returns the folders to search: only INBOX, or every folder the
// mailbox lists when all is set.
func (s *Searcher) Folders(ctx context.Context, all bool) ([]string, error) {
	if !all {
		return []string{Inbox}, nil
	}
	lines, err := s.mailbox.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return DiscoverFolders(lines, s.logger), nil
}

// Run searches the folders in order. Folder and message failures are
// recorded in Result.Skipped and never stop the run; only context
// cancellation does.
func (s *Searcher) Run(ctx context.Context, folders []string) (Result, error) {
	var res Result
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.searchFolder(ctx, folder, &res)
	}

	if s.logger != nil {
		s.logger.Info("search finished", "folders", res.Folders, "scanned", res.Scanned, "matched", len(res.Messages), "skipped", len(res.Skipped))
	}
	return res, ctx.Err()
}

func (s *Searcher) searchFolder(ctx context.Context, folder string, res *Result) {
	count, err := s.mailbox.Select(ctx, folder)
	if err != nil {
		s.skip(res, model.Skip{Stage: model.StageSelect, Folder: folder, Err: err})
		return
	}
	res.Folders++
	if count == 0 {
		if s.logger != nil {
			s.logger.Debug("folder is empty", "folder", folder)
		}
		return
	}

	ids, err := s.mailbox.Search(ctx, s.rng)
	if err != nil {
		s.skip(res, model.Skip{Stage: model.StageSearch, Folder: folder, Err: err})
		return
	}
	if s.logger != nil {
		s.logger.Info("found messages in date range", "folder", folder, "count", len(ids), "total", count)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		msg, ok := s.load(ctx, folder, id, res)
		if !ok {
			continue
		}
		res.Scanned++
		s.emit(stats.Event{Stage: stats.StageSearch, Type: stats.EventTypeScanned, Folder: folder, MessageID: id})

		if !s.matcher.Matches(msg) {
			continue
		}
		res.Messages = append(res.Messages, msg)
		s.emit(stats.Event{Stage: stats.StageSearch, Type: stats.EventTypeMatched, Folder: folder, MessageID: id})
		if s.logger != nil {
			s.logger.Debug("message matched", "folder", folder, "uid", id, "subject", msg.Subject)
		}
	}
}

func (s *Searcher) load(ctx context.Context, folder, id string, res *Result) (model.Message, bool) {
	raw, err := s.mailbox.Fetch(ctx, id)
	if err != nil {
		s.skip(res, model.Skip{Stage: model.StageFetch, Folder: folder, ID: id, Err: err})
		return model.Message{}, false
	}

	msg, err := extract.Normalize(folder, id, raw, s.now)
	if err != nil {
		s.skip(res, model.Skip{Stage: model.StageParse, Folder: folder, ID: id, Err: err})
		return model.Message{}, false
	}

	for _, part := range msg.Skipped {
		if s.logger != nil {
			s.logger.Warn("skipped undecodable part", "folder", folder, "uid", id, "part", part.Part, "err", part.Err)
		}
	}
	if msg.DateFallback && s.logger != nil {
		s.logger.Debug("unparsable date, using processing time", "folder", folder, "uid", id, "date", msg.DateHeader)
	}
	return msg, true
}

func (s *Searcher) skip(res *Result, sk model.Skip) {
	res.Skipped = append(res.Skipped, sk)
	if s.logger != nil {
		s.logger.Warn("skipping", "stage", sk.Stage, "folder", sk.Folder, "uid", sk.ID, "err", sk.Err)
	}
	s.emit(stats.Event{Stage: stats.StageSearch, Type: stats.EventTypeError, Folder: sk.Folder, MessageID: sk.ID, Err: sk})
}

func (s *Searcher) emit(evt stats.Event) {
	if s.events != nil {
		s.events.EmitEvent(evt)
	}
}
