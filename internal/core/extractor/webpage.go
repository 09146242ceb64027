package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/guiyumin/vbrief/internal/core/apperr"
)

const (
	// MinPageChars is the shortest page text accepted before falling back
	// to a rendered copy or giving up.
	MinPageChars = 100

	maxPageBytes = 10 << 20
)

// Page is the readable content of a fetched webpage.
type Page struct {
	Title    string
	Text     string
	Rendered bool
}

// PageFetcher retrieves the readable text of a webpage.
type PageFetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*Page, error)
}

// Renderer returns the HTML of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// WebpageFetcher fetches pages over HTTP and extracts their main content.
type WebpageFetcher struct {
	client    *http.Client
	userAgent string
	renderer  Renderer
	logger    *slog.Logger
}

// NewWebpageFetcher creates a fetcher. renderer may be nil to disable the
// headless browser fallback.
func NewWebpageFetcher(timeout time.Duration, userAgent string, renderer Renderer, logger *slog.Logger) *WebpageFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebpageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		renderer:  renderer,
		logger:    logger,
	}
}

// Fetch downloads u and extracts its readable text.
func (f *WebpageFetcher) Fetch(ctx context.Context, u *url.URL) (*Page, error) {
	body, contentType, err := f.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var page *Page
	if isPlainText(contentType) {
		page = &Page{Text: strings.TrimSpace(string(body))}
	} else {
		page = extractHTML(body, u)
	}

	if utf8.RuneCountInString(page.Text) < MinPageChars && f.renderer != nil {
		f.logger.Debug("static page too short, rendering", "url", u.String(), "chars", utf8.RuneCountInString(page.Text))
		html, err := f.renderer.Render(ctx, u.String())
		if err != nil {
			f.logger.Warn("browser render failed", "url", u.String(), "error", err)
		} else if rendered := extractHTML([]byte(html), u); utf8.RuneCountInString(rendered.Text) > utf8.RuneCountInString(page.Text) {
			rendered.Rendered = true
			page = rendered
		}
	}

	if utf8.RuneCountInString(page.Text) < MinPageChars {
		return nil, apperr.New(apperr.ExtractionFailed,
			"no meaningful text found on this page (it may be paywalled or rendered by JavaScript)")
	}
	return page, nil
}

func (f *WebpageFetcher) get(ctx context.Context, u *url.URL) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.InvalidSource, err, "invalid URL")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, "", apperr.Wrap(apperr.ExtractionFailed, err, "website took too long to respond")
		}
		return nil, "", apperr.Wrap(apperr.ExtractionFailed, err, "failed to fetch %s", u.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", apperr.New(apperr.ExtractionFailed, "failed to fetch URL: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.ExtractionFailed, err, "failed to read %s", u.Host)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func isPlainText(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/plain"
}

// extractHTML runs readability over the document and converts the article
// to markdown, falling back to a goquery scrape of the main container.
func extractHTML(body []byte, u *url.URL) *Page {
	page := &Page{}
	if article, err := readability.FromReader(bytes.NewReader(body), u); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		if md, err := htmltomarkdown.ConvertString(article.Content); err == nil {
			page.Text = strings.TrimSpace(md)
		}
		if page.Text == "" {
			page.Text = collapseWhitespace(article.TextContent)
		}
	}
	if utf8.RuneCountInString(page.Text) >= MinPageChars {
		return page
	}

	title, text, err := scrapeHTML(body)
	if err != nil {
		return page
	}
	if page.Title == "" {
		page.Title = title
	}
	if utf8.RuneCountInString(text) > utf8.RuneCountInString(page.Text) {
		page.Text = text
	}
	return page
}

var noiseSelectors = "script, style, noscript, iframe, svg, nav, header, footer, aside, form, .advertisement, .ads, .sidebar, .comments"

var contentSelectors = []string{"article", "main", "[role='main']", ".content", ".post-content", ".entry-content", "#content"}

func scrapeHTML(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noiseSelectors).Remove()

	var text string
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			text = collapseWhitespace(s.Text())
			if text != "" {
				break
			}
		}
	}
	if text == "" {
		text = collapseWhitespace(doc.Find("body").Text())
	}
	return title, text, nil
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
