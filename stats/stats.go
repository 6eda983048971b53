package stats

import (
	"sync"
)

type Stage string

const (
	StageSearch Stage = "search"
	StageExport Stage = "export"
)

type EventType string

const (
	EventTypeScanned   EventType = "scanned"
	EventTypeMatched   EventType = "matched"
	EventTypeExported  EventType = "exported"
	EventTypeCollision EventType = "collision"
	EventTypeError     EventType = "error"
)

type Event struct {
	Stage     Stage
	Type      EventType
	Folder    string
	MessageID string
	Err       error
	Detail    string
}

// Emitter receives run events as they happen.
type Emitter interface {
	EmitEvent(evt Event)
}

type Summary struct {
	Scanned    int
	Matched    int
	Exported   int
	Collisions int
	Errors     int
	LastError  error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"matched", s.Matched,
		"exported", s.Exported,
		"collisions", s.Collisions,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector folds events into a Summary.
type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) EmitEvent(evt Event) {
	c.apply(evt)
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeMatched:
		c.summary.Matched++
	case EventTypeExported:
		c.summary.Exported++
	case EventTypeCollision:
		c.summary.Collisions++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// Fanout forwards every event to each non-nil emitter in order.
type Fanout []Emitter

func (f Fanout) EmitEvent(evt Event) {
	for _, e := range f {
		if e != nil {
			e.EmitEvent(evt)
		}
	}
}
