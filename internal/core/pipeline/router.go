// Package pipeline routes a summarization request through classification,
// text acquisition, the summarization provider and the conversation context.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/conversation"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/source"
)

// Stages reported around text acquisition. The acquisition stages
// themselves come from the extractor package.
const (
	StageClassifying       extractor.Stage = "classifying"
	StageFetchingPage                      = extractor.StageFetchingPage
	StageCheckingCaptions                  = extractor.StageCheckingCaptions
	StageTranscribingAudio                 = extractor.StageTranscribingAudio
	StageSummarizing       extractor.Stage = "summarizing"
	StageDone              extractor.Stage = "done"
)

// Extractor acquires text for a classified source.
type Extractor interface {
	Extract(ctx context.Context, c *source.Classified, onStage extractor.StageFunc) (*extractor.Result, error)
}

// Request is one summarization request.
type Request struct {
	Source source.Descriptor
	Length summarizer.Length
	// Conversation receives the new context on success. May be nil.
	Conversation *conversation.Manager
	OnStage      extractor.StageFunc
}

// Metadata describes how a Response was produced.
type Metadata struct {
	Source          string  `json:"source,omitempty"`
	SourceType      string  `json:"source_type"`
	Length          string  `json:"length"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Language        string  `json:"language,omitempty"`
	Title           string  `json:"title,omitempty"`
	InputLength     int     `json:"input_length"`
	WordCount       int     `json:"word_count"`
	Timestamp       float64 `json:"timestamp"`
	Provider        string  `json:"provider"`
}

// Response is the assembled result of a summarization.
type Response struct {
	Heading      string   `json:"heading"`
	Summary      string   `json:"summary"`
	Highlights   []string `json:"highlights"`
	OriginalText string   `json:"original_text"`
	Provenance   string   `json:"provenance"`
	Citation     string   `json:"citation,omitempty"`
	Metadata     Metadata `json:"metadata"`
}

// Options configures a Router.
type Options struct {
	MinRawTextChars int
	MaxFollowUps    int
	// Summaries caches provider results. Nil disables caching.
	Summaries *SummaryCache
	Now       func() time.Time
}

// Router ties classification, extraction and summarization together.
type Router struct {
	extractor    Extractor
	provider     summarizer.Provider
	minRawChars  int
	maxFollowUps int
	summaries    *SummaryCache
	now          func() time.Time
	logger       *slog.Logger
}

func NewRouter(ex Extractor, provider summarizer.Provider, opts Options, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinRawTextChars <= 0 {
		opts.MinRawTextChars = source.DefaultMinRawChars
	}
	if opts.MaxFollowUps <= 0 {
		opts.MaxFollowUps = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		extractor:    ex,
		provider:     provider,
		minRawChars:  opts.MinRawTextChars,
		maxFollowUps: opts.MaxFollowUps,
		summaries:    opts.Summaries,
		now:          opts.Now,
		logger:       logger,
	}
}

// MaxFollowUps is the follow-up cap applied to new conversations.
func (r *Router) MaxFollowUps() int {
	return r.maxFollowUps
}

// NewConversation returns an empty conversation answered by the router's
// provider and capped at MaxFollowUps.
func (r *Router) NewConversation(logger *slog.Logger) *conversation.Manager {
	if logger == nil {
		logger = r.logger
	}
	return conversation.NewManager(r.provider, r.maxFollowUps, logger)
}

// ProviderName returns the configured provider's name.
func (r *Router) ProviderName() string {
	return r.provider.Name()
}

// Summarize classifies the source, acquires its text and summarizes it.
// The conversation context is replaced only when every step succeeds.
func (r *Router) Summarize(ctx context.Context, req Request) (*Response, error) {
	report := req.OnStage
	if report == nil {
		report = func(extractor.Stage) {}
	}

	report(StageClassifying)
	c, err := r.Classify(req.Source)
	if err != nil {
		return nil, err
	}

	log := r.logger.With("strategy", c.Strategy)
	if c.URL != nil {
		log = log.With("url", c.URL.String())
	}

	res, err := r.extractor.Extract(ctx, c, report)
	if err != nil {
		log.Warn("extraction failed", "kind", apperr.KindOf(err), "error", err)
		return nil, err
	}

	length := req.Length
	if length == "" {
		length = summarizer.Medium
	}

	report(StageSummarizing)
	sum, err := r.summarize(ctx, log, res, length)
	if err != nil {
		return nil, err
	}

	resp := r.assemble(c, res, sum, length)

	if req.Conversation != nil {
		req.Conversation.Begin(conversation.Context{
			SourceReference: sourceReference(c),
			SourceType:      string(c.Strategy),
			Provenance:      string(res.Provenance),
			Heading:         sum.Heading,
			Summary:         sum.Summary,
			Highlights:      append([]string(nil), sum.Highlights...),
			OriginalText:    res.Text,
			CreatedAt:       r.now(),
		})
	}

	report(StageDone)
	return resp, nil
}

// summarize consults the summary cache before calling the provider. Only
// successful results are cached.
func (r *Router) summarize(ctx context.Context, log *slog.Logger, res *extractor.Result, length summarizer.Length) (*summarizer.Result, error) {
	if sum, ok := r.summaries.Get(res.Text, length); ok {
		log.Info("summary cache hit", "length", length)
		return sum, nil
	}

	start := r.now()
	sum, err := r.provider.Summarize(ctx, res.Text, length)
	if err != nil {
		log.Warn("summarization failed", "provider", r.provider.Name(), "error", err)
		return nil, apperr.Wrap(apperr.ProviderError, err, "the %s provider failed to summarize", r.provider.Name())
	}
	log.Info("summarized",
		"provider", r.provider.Name(),
		"provenance", res.Provenance,
		"length", length,
		"took", r.now().Sub(start).Round(time.Millisecond))

	r.summaries.Add(res.Text, length, sum)
	return sum, nil
}

// Classify validates d without any I/O.
func (r *Router) Classify(d source.Descriptor) (*source.Classified, error) {
	return source.Classify(d, r.minRawChars)
}

// SummarizeText summarizes pasted text.
func (r *Router) SummarizeText(ctx context.Context, text string, length summarizer.Length, conv *conversation.Manager) (*Response, error) {
	return r.Summarize(ctx, Request{
		Source:       source.Descriptor{Kind: source.KindText, Reference: text},
		Length:       length,
		Conversation: conv,
	})
}

// FollowUp asks question against conv's active context.
func (r *Router) FollowUp(ctx context.Context, conv *conversation.Manager, question string) (*conversation.Exchange, error) {
	if conv == nil {
		return nil, apperr.New(apperr.NoActiveContext, "no active summary; summarize something first")
	}
	return conv.Ask(ctx, question)
}

// Answer handles a follow-up whose context is held by the caller. The
// follow-up cap is enforced by counting the questions already in history.
func (r *Router) Answer(ctx context.Context, question, grounding string, history []summarizer.Turn) (*conversation.Exchange, error) {
	question = strings.TrimSpace(question)
	grounding = strings.TrimSpace(grounding)

	switch {
	case question == "":
		return nil, apperr.New(apperr.InvalidRequest, "No question provided")
	case grounding == "":
		return nil, apperr.New(apperr.NoActiveContext, "no summary context supplied")
	}

	used := conversation.CountUserTurns(history)
	if used >= r.maxFollowUps {
		return nil, apperr.New(apperr.FollowUpLimitReached,
			"follow-up limit of %d reached; summarize again to start a new conversation", r.maxFollowUps)
	}

	answer, err := r.provider.Answer(ctx, question, summarizer.Truncate(grounding), history)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderError, err, "failed to answer follow-up")
	}
	used++
	return &conversation.Exchange{Answer: answer, TurnsUsed: used, Remaining: r.maxFollowUps - used}, nil
}

func (r *Router) assemble(c *source.Classified, res *extractor.Result, sum *summarizer.Result, length summarizer.Length) *Response {
	now := r.now()
	highlights := sum.Highlights
	if highlights == nil {
		highlights = []string{}
	}

	resp := &Response{
		Heading:      sum.Heading,
		Summary:      sum.Summary,
		Highlights:   highlights,
		OriginalText: res.Text,
		Provenance:   string(res.Provenance),
		Metadata: Metadata{
			Source:          sourceReference(c),
			SourceType:      string(c.Strategy),
			Length:          string(length),
			DurationSeconds: res.DurationSeconds,
			Language:        res.Language,
			Title:           res.Title,
			InputLength:     utf8.RuneCountInString(res.Text),
			WordCount:       len(strings.Fields(res.Text)),
			Timestamp:       float64(now.UnixNano()) / float64(time.Second),
			Provider:        r.provider.Name(),
		},
	}
	if c.URL != nil {
		resp.Citation = Citation(c.URL, sum.Summary, now)
	}
	return resp
}

func sourceReference(c *source.Classified) string {
	if c.URL != nil {
		return c.URL.String()
	}
	return ""
}

const citationSnippetChars = 50

// Citation formats an MLA-style web citation:
//
//	"<first 50 characters of the summary>..." example.com, 19 Oct. 2026. Web.
func Citation(u *url.URL, summary string, at time.Time) string {
	if u == nil {
		return ""
	}
	snippet := strings.ReplaceAll(summary, "\n", " ")
	if r := []rune(snippet); len(r) > citationSnippetChars {
		snippet = string(r[:citationSnippetChars])
	}
	return fmt.Sprintf(`"%s..." %s, %s. Web.`, snippet, u.Host, at.Format("02 Jan. 2006"))
}
