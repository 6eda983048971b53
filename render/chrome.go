package render

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

type ChromeOptions struct {
	// ExecPath overrides browser discovery on PATH.
	ExecPath string
	// Timeout bounds one render. Defaults to 60s.
	Timeout time.Duration
}

// Chrome prints through a headless Chrome or Chromium. It has full CSS
// support.
type Chrome struct {
	opts     ChromeOptions
	execPath string
}

func NewChrome(opts ChromeOptions) *Chrome {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) Name() string { return BackendChrome }

func (c *Chrome) Available(ctx context.Context) error {
	if c.opts.ExecPath != "" {
		path, err := exec.LookPath(c.opts.ExecPath)
		if err != nil {
			return fmt.Errorf("chrome not found at %s: %w", c.opts.ExecPath, err)
		}
		c.execPath = path
		return nil
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			c.execPath = path
			return nil
		}
	}
	return fmt.Errorf("no chrome or chromium executable on PATH")
}

func (c *Chrome) Render(ctx context.Context, doc Document) ([]byte, error) {
	if c.execPath == "" {
		if err := c.Available(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(c.execPath))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var out []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc.HTML)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			out = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print: %w", err)
	}
	return out, nil
}
