// Package browser is the CDP browser pool (spec.md §4.4): it fetches
// rendered HTML from sites that cannot be scraped with a raw HTTP client,
// by driving a single shared, long-lived Chrome instance over the Chrome
// DevTools Protocol. Grounded on
// original_source/src/genealogy_extractors/cdp_client.py's semaphore,
// tab-lifecycle, bot-check, and daily-limit rules, reimplemented on
// github.com/chromedp/chromedp and github.com/chromedp/cdproto in place
// of the original's Playwright driver.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// BotCheckDetected is raised when a blocking challenge is present and
// could not be auto-dismissed. The tab is intentionally left open so an
// operator can complete it by hand.
type BotCheckDetected struct {
	Source string
}

func (e *BotCheckDetected) Error() string {
	return fmt.Sprintf("bot verification detected on %s requires human intervention", e.Source)
}

// DailyLimitReached is raised when a source's own quota message is found
// on the page.
type DailyLimitReached struct {
	Source string
}

func (e *DailyLimitReached) Error() string {
	return fmt.Sprintf("%s daily search limit reached, try again tomorrow", e.Source)
}

// Config tunes the pool's concurrency and tab-lifecycle timing.
type Config struct {
	DebugHost       string
	DebugPort       int
	MaxConcurrent   int
	CleanupInterval time.Duration
	NavigateTimeout time.Duration
	SelectorTimeout time.Duration
	RenderDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebugHost == "" {
		c.DebugHost = "127.0.0.1"
	}

	if c.DebugPort == 0 {
		c.DebugPort = 9222
	}

	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}

	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 60 * time.Second
	}

	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}

	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = 20 * time.Second
	}

	if c.RenderDelay <= 0 {
		c.RenderDelay = 2 * time.Second
	}

	return c
}

// Pool drives one external Chrome instance through a fixed-capacity
// semaphore, so at most MaxConcurrent tabs are ever in flight at once.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	adminCtx    context.Context
	cancelAdmin context.CancelFunc

	sem chan struct{}

	mu            sync.Mutex
	lastCleanup   time.Time
	activeFetches atomic.Int64
}

// Connect joins the existing first browser context at cfg.DebugHost:
// DebugPort over the DevTools protocol - the same browser instance an
// operator's long-lived, logged-in session runs in - rather than
// launching a fresh, cookie-less Chrome.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()

	debugURL := fmt.Sprintf("http://%s:%d", cfg.DebugHost, cfg.DebugPort)

	wsURL, err := devtoolsWebSocketURL(ctx, debugURL)
	if err != nil {
		return nil, fmt.Errorf("discover devtools websocket url at %s: %w", debugURL, err)
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, wsURL)

	adminCtx, cancelAdmin := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(adminCtx); err != nil {
		cancelAdmin()
		cancelAlloc()

		return nil, fmt.Errorf("attach to browser at %s: %w", debugURL, err)
	}

	return &Pool{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		adminCtx:    adminCtx,
		cancelAdmin: cancelAdmin,
		sem:         make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

func devtoolsWebSocketURL(ctx context.Context, debugURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, debugURL+"/json/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode /json/version response: %w", err)
	}

	if payload.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("no webSocketDebuggerUrl in /json/version response")
	}

	return payload.WebSocketDebuggerURL, nil
}

// Close releases the remote allocator. It does not close the operator's
// browser, only this process's connection to it.
func (p *Pool) Close() {
	p.cancelAdmin()
	p.cancelAlloc()
}

// Fetch navigates a fresh tab to url and returns the rendered HTML.
func (p *Pool) Fetch(ctx context.Context, url, sourceKey, waitForSelector string) (string, error) {
	return p.run(ctx, sourceKey, waitForSelector, chromedp.Navigate(url))
}

// FetchForm runs actions (typically: navigate, fill fields, click submit)
// in a fresh tab under the same semaphore, dialog-handling, and
// tab-lifecycle rules as Fetch. Used by sources that require form
// interaction instead of a templated GET URL.
func (p *Pool) FetchForm(ctx context.Context, sourceKey, waitForSelector string, actions ...chromedp.Action) (string, error) {
	return p.run(ctx, sourceKey, waitForSelector, actions...)
}

func (p *Pool) run(ctx context.Context, sourceKey, waitForSelector string, actions ...chromedp.Action) (string, error) {
	p.sweepStaleTabs(p.adminCtx)

	p.activeFetches.Add(1)
	defer p.activeFetches.Add(-1)

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.sem }()

	tabCtx, cancelTab := chromedp.NewContext(p.allocCtx)

	closeTab := true
	defer func() {
		if closeTab {
			cancelTab()
		}
	}()

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() { _ = chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true)) }()
		}
	})

	navCtx, cancelNav := context.WithTimeout(tabCtx, p.cfg.NavigateTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, actions...); err != nil {
		return "", fmt.Errorf("navigate for %s: %w", sourceKey, err)
	}

	if waitForSelector != "" {
		selCtx, cancelSel := context.WithTimeout(tabCtx, p.cfg.SelectorTimeout)
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(waitForSelector, chromedp.ByQuery))
		cancelSel()
	}

	select {
	case <-time.After(p.cfg.RenderDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if err := p.detectBotCheck(tabCtx, sourceKey); err != nil {
		closeTab = false

		return "", err
	}

	var content string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page content for %s: %w", sourceKey, err)
	}

	if detectDailyLimit(content) {
		return "", &DailyLimitReached{Source: sourceKey}
	}

	return content, nil
}

const maxBotCheckAttempts = 3

// sweepStaleTabs closes orphaned about:blank tabs when more than
// cfg.CleanupInterval has passed since the last sweep and no fetch is
// currently in flight - the sweeper must never close a tab in use.
func (p *Pool) sweepStaleTabs(ctx context.Context) {
	p.mu.Lock()
	due := time.Since(p.lastCleanup) >= p.cfg.CleanupInterval
	p.mu.Unlock()

	if !due || p.activeFetches.Load() > 0 {
		return
	}

	p.mu.Lock()
	p.lastCleanup = time.Now()
	p.mu.Unlock()

	infos, err := chromedp.Targets(ctx)
	if err != nil {
		p.logger.Warn("list browser targets for tab sweep failed", "error", err)

		return
	}

	var blanks []string
	for _, info := range infos {
		if info.URL == "about:blank" {
			blanks = append(blanks, string(info.TargetID))
		}
	}

	if len(blanks) == len(infos) && len(blanks) > 0 {
		blanks = blanks[1:]
	}

	closed := 0

	for _, id := range blanks {
		if err := chromedp.Run(ctx, target.CloseTarget(target.ID(id))); err != nil {
			continue
		}

		closed++
	}

	if closed > 0 {
		p.logger.Info("closed stale about:blank tabs", "count", closed)
	}
}
