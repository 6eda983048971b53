package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/dhcgn/mail-export/search"
)

// Security selects how the connection is protected.
type Security string

const (
	SecurityNone     Security = "none"
	SecurityStartTLS Security = "starttls"
	SecuritySSL      Security = "ssl"
)

var (
	ErrNotSelected   = errors.New("no folder selected")
	ErrMessageAbsent = errors.New("message not returned by server")
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Security           Security
	InsecureSkipVerify bool
}

// Session is an authenticated IMAP connection. It implements
// search.Mailbox and must be used from a single goroutine.
type Session struct {
	opts     Options
	client   *imapclient.Client
	selected string
	logger   *slog.Logger
	stop     func() bool
}

var _ search.Mailbox = (*Session)(nil)

// Dial connects and authenticates. Any error here is fatal for a run.
func Dial(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName:         opts.Host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}

	var (
		client *imapclient.Client
		err    error
	)
	switch opts.Security {
	case SecuritySSL:
		client, err = imapclient.DialTLS(address, options)
	case SecurityStartTLS:
		client, err = imapclient.DialStartTLS(address, options)
	case SecurityNone:
		client, err = imapclient.DialInsecure(address, options)
	default:
		return nil, fmt.Errorf("unknown security mode %q", opts.Security)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if logger != nil {
		logger.Info("imap connection established", "address", address, "user", opts.Username, "security", opts.Security)
	}

	s := &Session{opts: opts, client: client, logger: logger}
	s.stop = context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	return s, nil
}

// ListFolders returns one listing line per selectable folder.
func (s *Session) ListFolders(ctx context.Context) ([]string, error) {
	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	lines := make([]string, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		if hasAttr(mbox.Attrs, imapv2.MailboxAttrNoSelect) || hasAttr(mbox.Attrs, imapv2.MailboxAttrNonExistent) {
			if s.logger != nil {
				s.logger.Debug("ignoring unselectable folder", "folder", mbox.Mailbox)
			}
			continue
		}
		attrs := make([]string, len(mbox.Attrs))
		for i, a := range mbox.Attrs {
			attrs[i] = string(a)
		}
		lines = append(lines, search.QuoteListLine(attrs, mbox.Delim, mbox.Mailbox))
	}
	return lines, nil
}

// Select opens folder read-only and returns its message count.
func (s *Session) Select(ctx context.Context, folder string) (uint32, error) {
	s.selected = ""
	data, err := s.client.Select(folder, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) && respErr.Code == imapv2.ResponseCodeNonExistent {
			return 0, fmt.Errorf("select %s: %w", folder, search.ErrNoSuchFolder)
		}
		return 0, fmt.Errorf("select %s: %w", folder, err)
	}
	s.selected = folder
	return data.NumMessages, nil
}

// Search returns the UIDs in the selected folder within r.
func (s *Session) Search(ctx context.Context, r search.DateRange) ([]string, error) {
	if s.selected == "" {
		return nil, ErrNotSelected
	}
	data, err := s.client.UIDSearch(buildSearchCriteria(r), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.selected, err)
	}

	uids := data.AllUIDs()
	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

// Fetch returns the full raw message for a UID without setting \Seen.
func (s *Session) Fetch(ctx context.Context, id string) ([]byte, error) {
	if s.selected == "" {
		return nil, ErrNotSelected
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q: %w", id, err)
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	msgs, err := s.client.Fetch(imapv2.UIDSetNum(imapv2.UID(n)), &imapv2.FetchOptions{
		UID:         true,
		BodySection: []*imapv2.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch uid %s: %w", id, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("fetch uid %s: %w", id, ErrMessageAbsent)
	}

	raw := msgs[0].FindBodySection(section)
	if raw == nil {
		return nil, fmt.Errorf("fetch uid %s: %w", id, ErrMessageAbsent)
	}
	return raw, nil
}

// Close logs out and closes the connection.
func (s *Session) Close() error {
	if s.stop != nil {
		s.stop()
	}
	if err := s.client.Logout().Wait(); err != nil && s.logger != nil {
		s.logger.Warn("imap logout failed", "err", err)
	}
	return s.client.Close()
}

func buildSearchCriteria(r search.DateRange) *imapv2.SearchCriteria {
	criteria := &imapv2.SearchCriteria{}
	if !r.Since.IsZero() {
		criteria.Since = r.Since
	}
	if !r.Before.IsZero() {
		criteria.Before = r.Before
	}
	return criteria
}

func hasAttr(attrs []imapv2.MailboxAttr, want imapv2.MailboxAttr) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}
