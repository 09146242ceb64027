// Package captions finds and decodes published caption tracks for a video.
package captions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/guiyumin/vbrief/internal/core/ytdlp"
)

// preferredFormats is the order tracks are tried within one language.
var preferredFormats = []string{FormatJSON3, FormatVTT, FormatSRV3, FormatSRT}

// Inspector lists a video's metadata and caption tracks.
type Inspector interface {
	Inspect(ctx context.Context, videoURL string) (*ytdlp.Info, error)
}

// Fetcher downloads a caption track body.
type Fetcher interface {
	Fetch(ctx context.Context, trackURL string) ([]byte, error)
}

// Captions is the outcome of a lookup. Info is set whenever the metadata lookup
// succeeded, even if no usable track was found.
type Captions struct {
	Text      string
	Language  string
	Format    string
	Automatic bool
	Info      *ytdlp.Info
}

// DurationSeconds returns the inspected duration, or 0 when unknown.
func (c Captions) DurationSeconds() float64 {
	if c.Info == nil {
		return 0
	}
	return c.Info.Duration
}

// Resolver looks up captions with human-authored tracks taking precedence
// over auto-generated ones.
type Resolver struct {
	inspector Inspector
	fetcher   Fetcher
	language  string
	logger    *slog.Logger
}

// NewResolver returns a Resolver for the given preferred language ("en" if
// empty). A nil fetcher uses HTTPFetcher with a 30 s timeout.
func NewResolver(inspector Inspector, fetcher Fetcher, language string, logger *slog.Logger) *Resolver {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(30*time.Second, "")
	}
	if language == "" || language == "auto" {
		language = "en"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{inspector: inspector, fetcher: fetcher, language: language, logger: logger}
}

// Resolve inspects the video and returns the first track that decodes to
// non-empty text. found is false when no such track exists; that is the
// normal "captions unavailable" signal, not an error. err is reserved for
// metadata lookup failures and context cancellation.
func (r *Resolver) Resolve(ctx context.Context, videoURL string) (Captions, bool, error) {
	info, err := r.inspector.Inspect(ctx, videoURL)
	if err != nil {
		return Captions{}, false, fmt.Errorf("failed to inspect %s: %w", videoURL, err)
	}
	result := Captions{Info: info}

	groups := []struct {
		automatic bool
		tracks    map[string][]ytdlp.Track
	}{
		{false, info.Subtitles},
		{true, info.AutomaticCaptions},
	}

	for _, g := range groups {
		lang, tracks := SelectLanguage(g.tracks, r.language)
		if len(tracks) == 0 {
			continue
		}
		for _, t := range OrderTracks(tracks) {
			if err := ctx.Err(); err != nil {
				return result, false, err
			}
			text, err := r.fetchAndDecode(ctx, t, g.automatic)
			if err != nil {
				r.logger.Debug("caption track unusable",
					"lang", lang, "ext", t.Ext, "automatic", g.automatic, "error", err)
				continue
			}
			if text == "" {
				continue
			}
			r.logger.Info("captions resolved",
				"video", info.ID, "lang", lang, "ext", t.Ext, "automatic", g.automatic)
			result.Text = text
			result.Language = lang
			result.Format = t.Ext
			result.Automatic = g.automatic
			return result, true, nil
		}
	}

	r.logger.Info("no captions available", "video", info.ID, "lang", r.language)
	return result, false, nil
}

func (r *Resolver) fetchAndDecode(ctx context.Context, t ytdlp.Track, automatic bool) (string, error) {
	if t.URL == "" {
		return "", fmt.Errorf("track has no url")
	}
	body, err := r.fetcher.Fetch(ctx, t.URL)
	if err != nil {
		return "", err
	}
	return Decode(t.Ext, body, automatic)
}

// SelectLanguage picks the track list for lang: an exact code match first,
// then the alphabetically first "lang-*" variant (en-US, en-GB, ...).
func SelectLanguage(tracks map[string][]ytdlp.Track, lang string) (string, []ytdlp.Track) {
	if t, ok := tracks[lang]; ok && len(t) > 0 {
		return lang, t
	}

	var variants []string
	for code, t := range tracks {
		if len(t) > 0 && strings.HasPrefix(code, lang+"-") {
			variants = append(variants, code)
		}
	}
	if len(variants) == 0 {
		return "", nil
	}
	sort.Strings(variants)
	return variants[0], tracks[variants[0]]
}

// OrderTracks returns the decodable tracks ordered by format preference.
// Formats outside the preference list are dropped.
func OrderTracks(tracks []ytdlp.Track) []ytdlp.Track {
	var ordered []ytdlp.Track
	for _, f := range preferredFormats {
		for _, t := range tracks {
			if strings.EqualFold(t.Ext, f) {
				ordered = append(ordered, t)
			}
		}
	}
	return ordered
}

// HTTPFetcher fetches caption tracks over HTTP.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher returns a fetcher with the given timeout and User-Agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, trackURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("caption fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}
