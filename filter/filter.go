package filter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/dhcgn/mail-export/model"
)

// Criteria captures the search configuration of one run.
type Criteria struct {
	Sender    string
	Recipient string
	Keywords  string
	// Start and End bound the message date by calendar day, both
	// inclusive. Zero values leave the bound open.
	Start         time.Time
	End           time.Time
	CaseSensitive bool
}

// HasDateRange reports whether any date bound is set.
func (c Criteria) HasDateRange() bool {
	return !c.Start.IsZero() || !c.End.IsZero()
}

// Matcher evaluates the sender, recipient and keyword predicates of a
// Criteria. A Matcher holds no mutable state.
type Matcher struct {
	caseSensitive bool
	sender        string
	recipient     string
	keywords      string
}

// New prepares a Matcher for the given criteria.
func New(c Criteria) *Matcher {
	m := &Matcher{caseSensitive: c.CaseSensitive}
	m.sender = m.fold(c.Sender)
	m.recipient = m.fold(c.Recipient)
	m.keywords = m.fold(c.Keywords)
	return m
}

// Matches reports whether msg satisfies all three predicates.
func (m *Matcher) Matches(msg model.Message) bool {
	return m.SenderMatches(msg) && m.RecipientMatches(msg) && m.KeywordMatches(msg)
}

// SenderMatches tests the From header.
func (m *Matcher) SenderMatches(msg model.Message) bool {
	return m.contains(msg.From, m.sender)
}

// RecipientMatches tests To, Cc and Bcc together.
func (m *Matcher) RecipientMatches(msg model.Message) bool {
	return m.contains(msg.Recipients(), m.recipient)
}

// KeywordMatches tests the subject followed by the canonical text.
func (m *Matcher) KeywordMatches(msg model.Message) bool {
	if m.keywords == "" {
		return true
	}
	return m.contains(msg.Subject+" "+msg.Text, m.keywords)
}

func (m *Matcher) contains(haystack, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(m.fold(haystack), term)
}

func (m *Matcher) fold(s string) string {
	if m.caseSensitive || s == "" {
		return s
	}
	// A cases.Caser must not be shared.
	return cases.Fold().String(s)
}
