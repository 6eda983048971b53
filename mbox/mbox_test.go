package mbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-export/export"
	"github.com/dhcgn/mail-export/extract"
	"github.com/dhcgn/mail-export/filter"
	"github.com/dhcgn/mail-export/model"
	"github.com/dhcgn/mail-export/search"
)

const sample = `From alice@example.com Fri Jan 05 10:00:00 2024
From: Alice <alice@example.com>
To: me@example.com
Subject: January
Date: Fri, 05 Jan 2024 10:00:00 +0000

first body

From bob@example.com Sat Mar 02 10:00:00 2024
From: bob@example.com
To: me@example.com
Subject: March
Date: Sat, 02 Mar 2024 10:00:00 +0000

>From the archive
second body

From carol@example.com Sun Mar 03 10:00:00 2024
From: carol@example.com
Subject: no date

third body
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestOpen_SingleFileIsInbox(t *testing.T) {
	path := writeFile(t, t.TempDir(), "export.mbox", sample)

	m, err := Open(Options{Path: path}, nil)
	require.NoError(t, err)

	lines, err := m.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{search.Inbox}, search.DiscoverFolders(lines, nil))

	count, err := m.Select(context.Background(), search.Inbox)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)

	raw, err := m.Fetch(context.Background(), "2")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: March")
	assert.Contains(t, string(raw), "From the archive")
}

func TestOpen_DirectoryFolders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "inbox.mbox", sample)
	writeFile(t, dir, "Archive.mbox", sample)
	writeFile(t, dir, "notes.txt", "ignored")

	m, err := Open(Options{Path: dir}, nil)
	require.NoError(t, err)

	lines, err := m.ListFolders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"INBOX", "Archive"}, search.DiscoverFolders(lines, nil))

	_, err = m.Select(context.Background(), "Missing")
	assert.ErrorIs(t, err, search.ErrNoSuchFolder)
}

func TestMailbox_SearchByDate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "export.mbox", sample)
	m, err := Open(Options{Path: path}, nil)
	require.NoError(t, err)

	_, err = m.Select(context.Background(), search.Inbox)
	require.NoError(t, err)

	ids, err := m.Search(context.Background(), search.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	ids, err = m.Search(context.Background(), search.DateRange{
		Since:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Before: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids)
}

const zoned = `From bob@x.com Fri Jan 05 00:00:00 2024
From: bob@x.com
Subject: early
Date: Fri, 05 Jan 2024 01:00:00 +0200

first

From bob@x.com Sat Jan 06 00:00:00 2024
From: bob@x.com
Subject: late
Date: Fri, 05 Jan 2024 23:30:00 -0500

second

From bob@x.com Sat Jan 06 00:00:00 2024
From: bob@x.com
Subject: next day
Date: Sat, 06 Jan 2024 01:00:00 +0200

third
`

func TestMailbox_SearchUsesMessageCalendarDay(t *testing.T) {
	path := writeFile(t, t.TempDir(), "zoned.mbox", zoned)
	m, err := Open(Options{Path: path}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Select(ctx, search.Inbox)
	require.NoError(t, err)

	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	ids, err := m.Search(ctx, search.RangeFor(filter.Criteria{Start: day, End: day}))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	raw, err := m.Fetch(ctx, "2")
	require.NoError(t, err)
	msg, err := extract.Normalize(search.Inbox, "2", raw, time.Now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(export.BaseFileName(msg), "2024-01-05_"))
}

func TestMailbox_RequiresSelect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "export.mbox", sample)
	m, err := Open(Options{Path: path}, nil)
	require.NoError(t, err)

	_, err = m.Search(context.Background(), search.DateRange{})
	assert.ErrorIs(t, err, ErrNotSelected)
	_, err = m.Fetch(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotSelected)

	_, err = m.Select(context.Background(), search.Inbox)
	require.NoError(t, err)
	_, err = m.Fetch(context.Background(), "9")
	assert.Error(t, err)
}

func TestOpen_MissingPath(t *testing.T) {
	_, err := Open(Options{Path: filepath.Join(t.TempDir(), "nope.mbox")}, nil)
	assert.Error(t, err)

	_, err = Open(Options{Path: "  "}, nil)
	assert.Error(t, err)
}

func TestFixture_NormalizesEveryMessage(t *testing.T) {
	m, err := Open(Options{Path: filepath.Join("testdata", "archive.mbox")}, nil)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	_, err = m.Select(ctx, search.Inbox)
	require.NoError(t, err)

	ids, err := m.Search(ctx, search.DateRange{})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	now := func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	var msgs []model.Message
	for _, id := range ids {
		raw, err := m.Fetch(ctx, id)
		require.NoError(t, err)
		msg, err := extract.Normalize(search.Inbox, id, raw, now)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}

	assert.Equal(t, "René Dupont <rene@example.com>", msgs[0].From)
	assert.Equal(t, "Quartalsbericht – Q4", msgs[0].Subject)
	assert.Equal(t, "Report attached.", msgs[0].Text)
	assert.True(t, msgs[0].HTMLNative)
	assert.NotContains(t, msgs[0].Text, "attachment text")

	assert.True(t, msgs[1].DateFallback)
	assert.Equal(t, now(), msgs[1].Date)
	assert.Contains(t, msgs[1].Text, "From here on")

	assert.Equal(t, "readable part", msgs[2].Text)
	require.Len(t, msgs[2].Skipped, 1)
	assert.Equal(t, "1", msgs[2].Skipped[0].Part)
	assert.Equal(t, "me@example.com, ops@example.com audit@example.com", msgs[2].Recipients())
}
