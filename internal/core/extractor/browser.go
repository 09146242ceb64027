package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// DefaultRenderTimeout bounds a single headless render.
const DefaultRenderTimeout = 45 * time.Second

// BrowserRenderer loads pages in a stealth headless Chromium so that
// JavaScript-built content is present in the returned HTML.
type BrowserRenderer struct {
	visible bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewBrowserRenderer creates a renderer. visible shows the browser window,
// which is only useful when debugging locally.
func NewBrowserRenderer(visible bool, timeout time.Duration, logger *slog.Logger) *BrowserRenderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserRenderer{visible: visible, timeout: timeout, logger: logger}
}

// blockedResources are never loaded; text extraction does not need them.
var blockedResources = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage: true,
	proto.NetworkResourceTypeMedia: true,
	proto.NetworkResourceTypeFont:  true,
}

// Render navigates to pageURL and returns the document HTML once the page
// has loaded and gone idle.
func (r *BrowserRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := newProfileDir()
	if err != nil {
		return "", fmt.Errorf("failed to create browser profile: %w", err)
	}
	defer os.RemoveAll(profile)

	l := r.createLauncher(profile)
	defer l.Cleanup()

	u, err := l.Context(ctx).Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if blockedResources[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return "", fmt.Errorf("failed to set up request filter: %w", err)
	}
	go router.Run()
	defer router.Stop()

	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("page did not load: %w", err)
	}
	// Late XHR content; a timeout here still leaves a usable document.
	if err := page.WaitIdle(3 * time.Second); err != nil {
		r.logger.Debug("page did not go idle", "url", pageURL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	r.logger.Debug("page rendered", "url", pageURL, "bytes", len(html))
	return html, nil
}

func (r *BrowserRenderer) createLauncher(profile string) *launcher.Launcher {
	l := launcher.New().
		Headless(!r.visible).
		UserDataDir(profile).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("no-first-run").
		Set("window-size", "1366,900").
		Set("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Set in the Docker image.
	if bin := os.Getenv("ROD_BROWSER"); bin != "" {
		l = l.Bin(bin)
	}
	return l
}

// newProfileDir creates an empty Chromium profile owned by a single render.
// Render removes it when done.
func newProfileDir() (string, error) {
	return os.MkdirTemp("", config.AppDirName+"-browser-*")
}
