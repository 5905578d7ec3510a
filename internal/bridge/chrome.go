// Package bridge drives the user's browser tab over the Chrome DevTools
// protocol. It is the only component allowed to touch page content.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/raorajnish/Fillora-Kaizen/internal/agent"
	"github.com/raorajnish/Fillora-Kaizen/internal/command"
)

const actionTimeout = 15 * time.Second

// ChromeBridge attaches to a running Chrome, or launches one, and executes
// the capture and fill scripts in the active tab. It implements
// agent.PageBridge.
type ChromeBridge struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewChromeBridge connects to the DevTools endpoint at devtoolsURL when one
// is given (e.g. ws://127.0.0.1:9222), otherwise it launches its own Chrome.
func NewChromeBridge(devtoolsURL string, headless bool) (*ChromeBridge, error) {
	b := &ChromeBridge{}

	if devtoolsURL != "" {
		log.Printf("connecting to Chrome at %s", devtoolsURL)
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), devtoolsURL)
	} else {
		log.Printf("launching Chrome (headless: %v)", headless)
		opts := []chromedp.ExecAllocatorOption{
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("disable-popup-blocking", true),
			chromedp.WindowSize(1440, 900),
		}
		if headless {
			opts = append(opts, chromedp.Headless)
		} else {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	b.browserCtx, b.cancel = chromedp.NewContext(b.allocCtx)

	// Force the browser connection up front so a bad DevTools URL fails
	// here rather than on the first voice command.
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("bridge: cannot reach Chrome: %w", err)
	}
	return b, nil
}

// Navigate opens url in the active tab.
func (b *ChromeBridge) Navigate(ctx context.Context, url string) error {
	tabCtx, cancel, err := b.activeTab(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("bridge: navigate: %w", err)
	}
	return nil
}

// Capture snapshots the active tab's URL, title and rendered HTML.
func (b *ChromeBridge) Capture(ctx context.Context) (agent.PageCapture, error) {
	var snap agent.PageCapture

	tabCtx, cancel, err := b.activeTab(ctx)
	if err != nil {
		return snap, err
	}
	defer cancel()

	if err := chromedp.Run(tabCtx, chromedp.Evaluate(captureScript, &snap)); err != nil {
		return snap, fmt.Errorf("bridge: capture page: %w", err)
	}
	return snap, nil
}

// Fill writes the field values into the active tab. Fields whose selectors
// do not resolve are skipped, as are fields with an empty value so an
// unfilled analysis entry cannot blank out what the page already holds;
// only a script-level failure is an error.
func (b *ChromeBridge) Fill(ctx context.Context, fields []command.FormField) error {
	fields = fillTargets(fields)
	if len(fields) == 0 {
		return nil
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("bridge: encode fields: %w", err)
	}

	tabCtx, cancel, err := b.activeTab(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	var filled int
	script := fmt.Sprintf(fillScriptTemplate, payload)
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(script, &filled)); err != nil {
		return fmt.Errorf("bridge: fill form: %w", err)
	}
	log.Printf("bridge: filled %d of %d fields", filled, len(fields))
	return nil
}

// activeTab attaches to the frontmost page target. The returned context is
// bounded by actionTimeout and by ctx.
func (b *ChromeBridge) activeTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	infos, err := chromedp.Targets(b.browserCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("bridge: list targets: %w", err)
	}
	tgt := pickPageTarget(infos)
	if tgt == nil {
		return nil, nil, fmt.Errorf("bridge: no page tab found")
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(tgt.TargetID))
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, actionTimeout)

	stop := context.AfterFunc(ctx, timeoutCancel)
	cancel := func() {
		stop()
		timeoutCancel()
		tabCancel()
	}
	return tabCtx, cancel, nil
}

// fillTargets drops fields with no value before they reach the page.
func fillTargets(fields []command.FormField) []command.FormField {
	out := make([]command.FormField, 0, len(fields))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// pickPageTarget chooses the tab to operate on: the first real page,
// skipping devtools and extension surfaces.
func pickPageTarget(infos []*target.Info) *target.Info {
	for _, ti := range infos {
		if ti.Type != "page" {
			continue
		}
		if strings.HasPrefix(ti.URL, "devtools://") || strings.HasPrefix(ti.URL, "chrome-extension://") {
			continue
		}
		return ti
	}
	return nil
}

// Close tears down the browser connection. A launched Chrome exits with it.
func (b *ChromeBridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
