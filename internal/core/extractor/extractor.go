// Package extractor turns a classified source into plain text.
package extractor

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/langdetect"
	"github.com/guiyumin/vbrief/internal/core/source"
)

// Provenance records how a Result's text was obtained.
type Provenance string

const (
	ProvenanceCaptions     Provenance = "captions"
	ProvenanceSpeechToText Provenance = "speech-to-text"
	ProvenanceRaw          Provenance = "raw"
	ProvenanceWebpage      Provenance = "webpage"
)

// Stage is a coarse progress marker reported while a source is acquired.
type Stage string

const (
	StageFetchingPage      Stage = "fetching_page"
	StageCheckingCaptions  Stage = "checking_captions"
	StageTranscribingAudio Stage = "transcribing_audio"
)

// StageFunc receives stage transitions. It may be nil.
type StageFunc func(Stage)

func (f StageFunc) report(s Stage) {
	if f != nil {
		f(s)
	}
}

// DefaultMinTextChars is the shortest acquired text worth summarizing.
const DefaultMinTextChars = 50

// Result is the text acquired for one source.
type Result struct {
	Text            string     `json:"text"`
	Provenance      Provenance `json:"provenance"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Title           string     `json:"title,omitempty"`
	Language        string     `json:"language,omitempty"`
}

// Config wires an Extractor. Any of Pages, Videos may be nil, in which case
// sources needing them fail with ExtractionFailed.
type Config struct {
	Pages        PageFetcher
	Videos       *VideoExtractor
	Detector     *langdetect.Detector
	MinTextChars int
	Logger       *slog.Logger
}

// Extractor dispatches a classified source to the matching acquisition path.
type Extractor struct {
	pages    PageFetcher
	videos   *VideoExtractor
	detector *langdetect.Detector
	minText  int
	logger   *slog.Logger
}

func New(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minText := cfg.MinTextChars
	if minText <= 0 {
		minText = DefaultMinTextChars
	}
	return &Extractor{
		pages:    cfg.Pages,
		videos:   cfg.Videos,
		detector: cfg.Detector,
		minText:  minText,
		logger:   logger,
	}
}

// Extract acquires the text for c. Errors carry an apperr kind; the
// internal CaptionsUnavailable kind never escapes.
func (e *Extractor) Extract(ctx context.Context, c *source.Classified, onStage StageFunc) (*Result, error) {
	var (
		res *Result
		err error
	)

	switch c.Strategy {
	case source.StrategyRaw:
		res = &Result{Text: c.Text(), Provenance: ProvenanceRaw}
	case source.StrategyWebpage:
		res, err = e.extractPage(ctx, c, onStage)
	case source.StrategyYouTube:
		if e.videos == nil {
			return nil, apperr.New(apperr.ExtractionFailed, "video extraction is not configured")
		}
		res, err = e.videos.Extract(ctx, c.VideoID, onStage)
	default:
		return nil, apperr.New(apperr.InvalidSource, "unsupported source strategy %q", c.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if res.Provenance != ProvenanceRaw && utf8.RuneCountInString(res.Text) < e.minText {
		return nil, apperr.New(apperr.ExtractionFailed,
			"extracted text is too short to summarize (%d characters)", utf8.RuneCountInString(res.Text))
	}

	if res.Language == "" {
		res.Language = e.detector.Detect(res.Text)
	}

	e.logger.Info("source extracted",
		"strategy", c.Strategy,
		"provenance", res.Provenance,
		"chars", utf8.RuneCountInString(res.Text),
		"language", res.Language)
	return res, nil
}

func (e *Extractor) extractPage(ctx context.Context, c *source.Classified, onStage StageFunc) (*Result, error) {
	if e.pages == nil {
		return nil, apperr.New(apperr.ExtractionFailed, "webpage extraction is not configured")
	}
	onStage.report(StageFetchingPage)

	page, err := e.pages.Fetch(ctx, c.URL)
	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			return nil, apperr.Wrap(apperr.ExtractionFailed, err, "failed to fetch %s", c.URL.Host)
		}
		return nil, err
	}
	return &Result{Text: page.Text, Provenance: ProvenanceWebpage, Title: page.Title}, nil
}
