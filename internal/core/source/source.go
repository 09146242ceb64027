// Package source classifies a requested source into an acquisition strategy.
package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/guiyumin/vbrief/internal/core/apperr"
)

// Kind is the kind of reference a caller supplies.
type Kind string

const (
	KindPage    Kind = "page"
	KindURL     Kind = "url"
	KindYouTube Kind = "youtube"
	KindText    Kind = "text"
)

// Strategy is how text will be acquired for a source.
type Strategy string

const (
	StrategyWebpage Strategy = "webpage"
	StrategyYouTube Strategy = "youtube"
	StrategyRaw     Strategy = "text"
)

// DefaultMinRawChars is the shortest pasted text accepted for summarization.
const DefaultMinRawChars = 20

// Descriptor is a reference to content to summarize. Reference is a URL for
// page/url/youtube and the raw text itself for text.
type Descriptor struct {
	Kind      Kind   `json:"kind"`
	Reference string `json:"reference"`
}

// Classified is a validated Descriptor with its resolved strategy.
type Classified struct {
	Descriptor
	Strategy Strategy
	URL      *url.URL // nil for raw text
	VideoID  string   // set for StrategyYouTube
}

// Text returns the trimmed raw text for StrategyRaw sources.
func (c *Classified) Text() string {
	return strings.TrimSpace(c.Reference)
}

// youtubeHosts are the hosts served by the YouTube path.
var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtu.be":                 true,
	"www.youtu.be":             true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Classify validates d and picks its strategy. It performs no I/O: a
// malformed reference fails with InvalidSource before any network work.
func Classify(d Descriptor, minRawChars int) (*Classified, error) {
	if minRawChars <= 0 {
		minRawChars = DefaultMinRawChars
	}

	kind := Kind(strings.ToLower(strings.TrimSpace(string(d.Kind))))
	switch kind {
	case KindText:
		text := strings.TrimSpace(d.Reference)
		if len([]rune(text)) < minRawChars {
			return nil, apperr.New(apperr.InvalidSource, "Text must be at least %d characters", minRawChars)
		}
		return &Classified{
			Descriptor: Descriptor{Kind: kind, Reference: d.Reference},
			Strategy:   StrategyRaw,
		}, nil

	case KindPage, KindURL:
		u, err := ParseAbsoluteURL(d.Reference)
		if err != nil {
			return nil, err
		}
		c := &Classified{
			Descriptor: Descriptor{Kind: kind, Reference: u.String()},
			Strategy:   StrategyWebpage,
			URL:        u,
		}
		if id, ok := VideoID(u); ok {
			c.Strategy = StrategyYouTube
			c.VideoID = id
		}
		return c, nil

	case KindYouTube:
		u, err := ParseAbsoluteURL(d.Reference)
		if err != nil {
			return nil, err
		}
		id, ok := VideoID(u)
		if !ok {
			return nil, apperr.New(apperr.InvalidSource, "Invalid YouTube URL")
		}
		return &Classified{
			Descriptor: Descriptor{Kind: kind, Reference: u.String()},
			Strategy:   StrategyYouTube,
			URL:        u,
			VideoID:    id,
		}, nil

	case "":
		return nil, apperr.New(apperr.InvalidSource, "source kind is required")
	default:
		return nil, apperr.New(apperr.InvalidSource, "unknown source kind %q", d.Kind)
	}
}

// ParseAbsoluteURL parses ref and requires an http(s) scheme and a host.
func ParseAbsoluteURL(ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.New(apperr.InvalidSource, "No URL provided")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidSource, err, "malformed URL")
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, apperr.New(apperr.InvalidSource, "URL must start with http:// or https://")
	}
	if u.Hostname() == "" {
		return nil, apperr.New(apperr.InvalidSource, "URL is missing a host")
	}
	return u, nil
}

// IsVideoHost reports whether u points at a recognised video-hosting domain.
func IsVideoHost(u *url.URL) bool {
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// VideoID extracts the 11-character video id from a recognised video URL.
func VideoID(u *url.URL) (string, bool) {
	if u == nil || !IsVideoHost(u) {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")

	var id string
	if strings.HasSuffix(host, "youtu.be") {
		id, _, _ = strings.Cut(path, "/")
	} else {
		parts := strings.Split(path, "/")
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case len(parts) >= 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live" || parts[0] == "v"):
			id = parts[1]
		}
	}

	if !videoIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}

// CanonicalVideoURL returns the normalised watch URL for a video id, so
// trivial variations (youtu.be, tracking params, m. subdomain) share a key.
func CanonicalVideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
