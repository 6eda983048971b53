package progress

import (
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mail-export/stats"
)

// Bar tracks export progress. A disabled or nil Bar ignores every call.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	started time.Time
	mu      sync.Mutex
	enabled bool
}

var _ stats.Emitter = (*Bar)(nil)

// New starts a progress bar over total messages when enabled.
func New(total int, enabled bool) *Bar {
	bar := &Bar{
		total:   total,
		started: time.Now(),
		enabled: enabled && total > 0,
	}

	if bar.enabled {
		pterm.Info.Printf("Messages to export: %d\n", total)
		pb, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Exporting messages").
			Start()
		if err != nil {
			bar.enabled = false
			return bar
		}
		bar.pb = pb
	}

	return bar
}

// EmitEvent advances the bar once per finished export, whether it
// succeeded or failed.
func (b *Bar) EmitEvent(evt stats.Event) {
	if b == nil || !b.enabled || b.pb == nil || evt.Stage != stats.StageExport {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeExported:
		b.pb.Increment()
		if evt.Detail != "" {
			b.pb.UpdateTitle("Exported: " + truncate(evt.Detail, 40))
		}
	case stats.EventTypeError:
		b.pb.Increment()
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	case stats.EventTypeCollision:
		pterm.Warning.Printf("Name collision: %s\n", evt.Detail)
	}
}

// Stop finalizes the bar and prints the summary.
func (b *Bar) Stop(summary stats.Summary) {
	if b == nil || !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	_, _ = b.pb.Stop()

	pterm.Println()
	pterm.DefaultSection.Println("Summary")
	pterm.Info.Printf("Duration: %v\n", time.Since(b.started).Round(time.Millisecond))
	pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Matched: %d\n", summary.Matched)
	pterm.Info.Printf("Exported: %d\n", summary.Exported)
	pterm.Info.Printf("Name collisions: %d\n", summary.Collisions)
	pterm.Info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
