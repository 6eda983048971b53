package mbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mail-export/search"
)

// Ext is the file extension a directory source looks for.
const Ext = ".mbox"

var (
	ErrNotSelected = errors.New("no folder selected")
	errUnreadable  = errors.New("message could not be read")
)

type Options struct {
	// Path is a single mbox file, served as INBOX, or a directory whose
	// *.mbox files each become a folder named after the file.
	Path string
}

// Mailbox serves mbox files through the same interface as an IMAP
// session. Message ids are 1-based positions within a file.
type Mailbox struct {
	folders  map[string]string
	selected string
	messages [][]byte
	logger   *slog.Logger
}

var _ search.Mailbox = (*Mailbox)(nil)

func Open(opts Options, logger *slog.Logger) (*Mailbox, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}

	folders := make(map[string]string)
	if !info.IsDir() {
		folders[search.Inbox] = path
	} else {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read mbox directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), Ext) {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if strings.EqualFold(name, search.Inbox) {
				name = search.Inbox
			}
			folders[name] = filepath.Join(path, entry.Name())
		}
	}

	if logger != nil {
		logger.Info("mbox source opened", "path", path, "folders", len(folders))
	}
	return &Mailbox{folders: folders, logger: logger}, nil
}

// ListFolders lists every folder file in name order.
func (m *Mailbox) ListFolders(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.folders))
	for name := range m.folders {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = search.QuoteListLine(nil, '/', name)
	}
	return lines, nil
}

// Select reads the folder file into memory and returns its message count.
func (m *Mailbox) Select(ctx context.Context, folder string) (uint32, error) {
	m.selected = ""
	m.messages = nil

	path, ok := m.folders[folder]
	if !ok {
		return 0, fmt.Errorf("select %s: %w", folder, search.ErrNoSuchFolder)
	}

	messages, err := readAll(ctx, path, m.logger)
	if err != nil {
		return 0, fmt.Errorf("select %s: %w", folder, err)
	}

	m.selected = folder
	m.messages = messages
	return uint32(len(messages)), nil
}

// Search returns the ids of messages whose Date header falls within r.
// Messages without a parsable Date are always included.
func (m *Mailbox) Search(ctx context.Context, r search.DateRange) ([]string, error) {
	if m.selected == "" {
		return nil, ErrNotSelected
	}

	ids := make([]string, 0, len(m.messages))
	for idx, raw := range m.messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if date, ok := headerDate(raw); ok && !r.Contains(date) {
			continue
		}
		ids = append(ids, strconv.Itoa(idx+1))
	}
	return ids, nil
}

func (m *Mailbox) Fetch(ctx context.Context, id string) ([]byte, error) {
	if m.selected == "" {
		return nil, ErrNotSelected
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 || n > len(m.messages) {
		return nil, fmt.Errorf("message %q not in %s", id, m.selected)
	}
	raw := m.messages[n-1]
	if raw == nil {
		return nil, fmt.Errorf("message %s in %s: %w", id, m.selected, errUnreadable)
	}
	return raw, nil
}

func (m *Mailbox) Close() error {
	m.messages = nil
	m.selected = ""
	return nil
}

func readAll(ctx context.Context, path string, logger *slog.Logger) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	var messages [][]byte
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return messages, nil
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			// keep the position so later ids stay stable
			if logger != nil {
				logger.Warn("mbox message unreadable", "path", path, "index", idx+1, "err", err)
			}
			raw = nil
		}
		messages = append(messages, raw)
	}
}

func headerDate(raw []byte) (t time.Time, ok bool) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return t, false
	}
	date := msg.Header.Get("Date")
	if date == "" {
		return t, false
	}
	t, err = mail.ParseDate(date)
	return t, err == nil
}
