// Package collector owns the browser session. It navigates the library
// page, snapshots rendered ad cards into renderer-independent trees, and
// runs the extractor over them. The collector keeps the last scan's
// catalog so records can be looked up by library ID afterwards.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/adpack/config"
	"github.com/use-agent/adpack/extractor"
	"github.com/use-agent/adpack/models"
)

// ScannedCard is one ad card found during a scan.
type ScannedCard struct {
	Record models.AdRecord

	// HTML is the card's outerHTML snapshot, kept for raw exports.
	HTML string
}

// Collector drives one browser and one library tab.
type Collector struct {
	browser   *rod.Browser
	cfg       config.BrowserConfig
	colCfg    config.CollectorConfig
	heur      extractor.Heuristics
	startTime time.Time

	mu       sync.Mutex
	page     *rod.Page
	catalog  map[string]ScannedCard
	lastScan time.Time
}

// New launches a headless browser and connects to it. Close must be
// called on shutdown to avoid zombie Chrome processes.
func New(browserCfg config.BrowserConfig, colCfg config.CollectorConfig, heur extractor.Heuristics) (*Collector, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewExportError(models.ErrCodeBrowserCrash,
			"failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewExportError(models.ErrCodeBrowserCrash,
			"failed to connect to browser", err)
	}

	return &Collector{
		browser:   browser,
		cfg:       browserCfg,
		colCfg:    colCfg,
		heur:      heur,
		startTime: time.Now(),
		catalog:   make(map[string]ScannedCard),
	}, nil
}

// Navigate opens the library page in the collector's single tab,
// creating it on first use. Stealth JS is installed before the first
// navigation so it applies to every document the tab loads.
func (c *Collector) Navigate(ctx context.Context, target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.colCfg.NavigationTimeout)
	defer cancel()

	if c.page == nil {
		page, err := c.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return models.NewExportError(models.ErrCodeBrowserCrash,
				"failed to create page", err)
		}
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr)
		}
		c.page = page
	}

	p := c.page.Context(ctx)

	// A plausible Referer keeps the first navigation from looking like a
	// cold bot visit.
	if u, parseErr := url.Parse(target); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(p)
	}

	if err := p.Navigate(target); err != nil {
		return categorizeError(err, "navigation to library page failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	slog.Info("library page loaded", "url", target)
	return nil
}

// cardPayload is the in-page serialization of one discovered card.
type cardPayload struct {
	ID   string          `json:"id"`
	HTML string          `json:"html"`
	Root *extractor.Node `json:"root"`
}

// Scan snapshots every ad card on the current page and extracts a record
// from each. The scan replaces the collector's catalog.
func (c *Collector) Scan(ctx context.Context) ([]models.AdRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.page == nil {
		return nil, models.NewExportError(models.ErrCodeNavigation,
			"no page open, navigate first", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.colCfg.ScanTimeout)
	defer cancel()
	p := c.page.Context(ctx)

	res, err := p.Eval(scanJS, c.colCfg.CardSelector)
	if err != nil {
		return nil, categorizeError(err, "card scan failed")
	}

	var payloads []cardPayload
	if err := json.Unmarshal([]byte(res.Value.Str()), &payloads); err != nil {
		return nil, models.NewExportError(models.ErrCodeInternal,
			"card scan returned malformed data", err)
	}

	catalog := make(map[string]ScannedCard, len(payloads))
	records := make([]models.AdRecord, 0, len(payloads))
	for _, pl := range payloads {
		if pl.Root == nil {
			continue
		}
		rec := extractor.Extract(pl.Root, pl.ID, c.heur)
		catalog[rec.ID] = ScannedCard{Record: rec, HTML: pl.HTML}
		records = append(records, rec)
	}
	c.catalog = catalog
	c.lastScan = time.Now()

	slog.Info("scan complete", "cards", len(records))
	return records, nil
}

// Lookup returns the record from the last scan for a library ID.
func (c *Collector) Lookup(id string) (models.AdRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.catalog[id]
	return card.Record, ok
}

// CardHTML returns the card's HTML snapshot from the last scan.
func (c *Collector) CardHTML(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.catalog[id]
	return card.HTML, ok
}

// State reports the browser connection state for health checks.
func (c *Collector) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return "disconnected"
	}
	if c.page == nil {
		return "idle"
	}
	return "ready"
}

// Uptime reports how long the browser has been up.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Close kills the browser process. Call on graceful shutdown.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	slog.Info("collector shutting down: closing browser")
	c.browser.MustClose()
	slog.Info("collector shutdown complete")
}

// categorizeError wraps raw errors into typed ExportErrors so the API
// layer can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.ExportError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExportError(models.ErrCodeNavigation, fmt.Sprintf("%s: timed out", msg), err)
	case errors.Is(err, context.Canceled):
		return models.NewExportError(models.ErrCodeNavigation, "request canceled", err)
	default:
		return models.NewExportError(models.ErrCodeNavigation, msg, err)
	}
}
