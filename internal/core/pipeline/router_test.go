package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/audio"
	"github.com/guiyumin/vbrief/internal/core/captions"
	"github.com/guiyumin/vbrief/internal/core/conversation"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/source"
	"github.com/guiyumin/vbrief/internal/core/ytdlp"
)

type fakeProvider struct {
	result      *summarizer.Result
	err         error
	answer      string
	answerErr   error
	summarized  []string
	lengths     []summarizer.Length
	answerCalls int
}

func (p *fakeProvider) Summarize(ctx context.Context, text string, length summarizer.Length) (*summarizer.Result, error) {
	p.summarized = append(p.summarized, text)
	p.lengths = append(p.lengths, length)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *fakeProvider) Answer(ctx context.Context, question, grounding string, history []summarizer.Turn) (string, error) {
	p.answerCalls++
	return p.answer, p.answerErr
}

func (p *fakeProvider) Name() string { return "fake" }

type countingExtractor struct {
	calls int
	inner Extractor
}

func (e *countingExtractor) Extract(ctx context.Context, c *source.Classified, onStage extractor.StageFunc) (*extractor.Result, error) {
	e.calls++
	return e.inner.Extract(ctx, c, onStage)
}

type fakeCaptions struct {
	caps  captions.Captions
	found bool
}

func (f *fakeCaptions) Resolve(ctx context.Context, videoURL string) (captions.Captions, bool, error) {
	return f.caps, f.found, nil
}

type fakeAudio struct {
	text  string
	calls int
}

func (f *fakeAudio) Transcribe(ctx context.Context, videoURL string, knownDuration float64) (*audio.Transcript, error) {
	f.calls++
	return &audio.Transcript{Text: f.text, Language: "en", DurationSeconds: knownDuration}, nil
}

var fixedNow = time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)

const transcript = "Welcome back to the channel. Today we are looking at how rivers carve canyons over millions of years."

func newRouter(t *testing.T, caps *fakeCaptions, stt *fakeAudio, provider *fakeProvider) (*Router, *countingExtractor) {
	t.Helper()
	ex := &countingExtractor{inner: extractor.New(extractor.Config{
		Videos: extractor.NewVideoExtractor(caps, stt, nil, nil),
	})}
	return NewRouter(ex, provider, Options{Now: func() time.Time { return fixedNow }}, nil), ex
}

func okProvider() *fakeProvider {
	return &fakeProvider{
		result: &summarizer.Result{Heading: "Rivers", Summary: "Rivers carve canyons slowly.", Highlights: []string{"erosion"}},
		answer: "Over millions of years.",
	}
}

func TestShortTextRejectedWithoutExtraction(t *testing.T) {
	provider := okProvider()
	r, ex := newRouter(t, &fakeCaptions{}, &fakeAudio{}, provider)

	_, err := r.SummarizeText(context.Background(), "too short", summarizer.Medium, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidSource))
	assert.Zero(t, ex.calls)
	assert.Empty(t, provider.summarized)
}

func TestRawTextSummarized(t *testing.T) {
	provider := okProvider()
	r, _ := newRouter(t, &fakeCaptions{}, &fakeAudio{}, provider)
	conv := conversation.NewManager(provider, 3, nil)

	text := "  The quarterly report shows growth across every region.  "
	resp, err := r.SummarizeText(context.Background(), text, summarizer.Short, conv)
	require.NoError(t, err)

	assert.Equal(t, "raw", resp.Provenance)
	assert.Empty(t, resp.Citation)
	assert.Equal(t, "text", resp.Metadata.SourceType)
	assert.Equal(t, 8, resp.Metadata.WordCount)
	assert.Equal(t, []string{strings.TrimSpace(text)}, provider.summarized)

	snap, ok := conv.Snapshot()
	require.True(t, ok)
	assert.Zero(t, snap.TurnsUsed)
	assert.Equal(t, 3, conv.Remaining())
}

func TestRepeatedSummaryServedFromCache(t *testing.T) {
	provider := okProvider()
	ex := extractor.New(extractor.Config{})
	r := NewRouter(ex, provider, Options{
		Summaries: NewSummaryCache(100),
		Now:       func() time.Time { return fixedNow },
	}, nil)
	text := "The quarterly report shows growth across every region."

	tests := []struct {
		name      string
		length    summarizer.Length
		wantCalls int
	}{
		{"first request calls the provider", summarizer.Short, 1},
		{"same text and length is cached", summarizer.Short, 1},
		{"other length calls the provider", summarizer.Long, 2},
		{"each length is cached separately", summarizer.Long, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := r.SummarizeText(context.Background(), text, tt.length, nil)
			require.NoError(t, err)
			assert.Equal(t, "Rivers carve canyons slowly.", resp.Summary)
			assert.Equal(t, string(tt.length), resp.Metadata.Length)
			assert.Len(t, provider.summarized, tt.wantCalls)
		})
	}
}

func TestFailedSummaryNotCached(t *testing.T) {
	provider := okProvider()
	provider.err = errors.New("rate limited")
	r := NewRouter(extractor.New(extractor.Config{}), provider, Options{Summaries: NewSummaryCache(100)}, nil)
	text := "The quarterly report shows growth across every region."

	_, err := r.SummarizeText(context.Background(), text, summarizer.Medium, nil)
	require.Error(t, err)

	provider.err = nil
	_, err = r.SummarizeText(context.Background(), text, summarizer.Medium, nil)
	require.NoError(t, err)
	assert.Len(t, provider.summarized, 2)
}

func TestCaptionedVideo(t *testing.T) {
	caps := &fakeCaptions{found: true, caps: captions.Captions{
		Text: transcript, Language: "en", Info: &ytdlp.Info{Title: "Canyons", Duration: 180},
	}}
	stt := &fakeAudio{}
	r, _ := newRouter(t, caps, stt, okProvider())

	var stages []extractor.Stage
	resp, err := r.Summarize(context.Background(), Request{
		Source:  source.Descriptor{Kind: source.KindYouTube, Reference: "https://youtu.be/dQw4w9WgXcQ"},
		OnStage: func(s extractor.Stage) { stages = append(stages, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, "captions", resp.Provenance)
	assert.Equal(t, 180.0, resp.Metadata.DurationSeconds)
	assert.Equal(t, "medium", resp.Metadata.Length)
	assert.Zero(t, stt.calls)
	assert.Equal(t, []extractor.Stage{StageClassifying, StageCheckingCaptions, StageSummarizing, StageDone}, stages)
	assert.Equal(t, `"Rivers carve canyons slowly...." youtu.be, 19 Oct. 2026. Web.`, resp.Citation)
}

func TestCaptionlessVideoUsesSpeechToText(t *testing.T) {
	caps := &fakeCaptions{caps: captions.Captions{Info: &ytdlp.Info{Duration: 240}}}
	stt := &fakeAudio{text: transcript}
	r, _ := newRouter(t, caps, stt, okProvider())

	resp, err := r.Summarize(context.Background(), Request{
		Source: source.Descriptor{Kind: source.KindURL, Reference: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
	})
	require.NoError(t, err)
	assert.Equal(t, "speech-to-text", resp.Provenance)
	assert.Equal(t, "youtube", resp.Metadata.SourceType)
	assert.Greater(t, len(resp.OriginalText), 50)
	assert.Equal(t, 1, stt.calls)
}

func TestProviderFailureKeepsContext(t *testing.T) {
	provider := okProvider()
	r, _ := newRouter(t, &fakeCaptions{}, &fakeAudio{}, provider)
	conv := conversation.NewManager(provider, 3, nil)

	_, err := r.SummarizeText(context.Background(), "The first document is long enough to summarize.", summarizer.Medium, conv)
	require.NoError(t, err)
	_, err = r.FollowUp(context.Background(), conv, "What is it about?")
	require.NoError(t, err)

	provider.err = errors.New("upstream 503")
	_, err = r.SummarizeText(context.Background(), "The second document would replace the first one.", summarizer.Medium, conv)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ProviderError))

	snap, ok := conv.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "The first document is long enough to summarize.", snap.OriginalText)
	assert.Equal(t, 1, snap.TurnsUsed)
}

func TestNewSummaryResetsFollowUps(t *testing.T) {
	provider := okProvider()
	r, _ := newRouter(t, &fakeCaptions{}, &fakeAudio{}, provider)
	conv := conversation.NewManager(provider, 3, nil)

	_, err := r.SummarizeText(context.Background(), "The first document is long enough to summarize.", summarizer.Medium, conv)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		ex, err := r.FollowUp(context.Background(), conv, "question")
		require.NoError(t, err)
		assert.Equal(t, i, ex.TurnsUsed)
	}
	_, err = r.FollowUp(context.Background(), conv, "one more")
	assert.True(t, apperr.Is(err, apperr.FollowUpLimitReached))

	_, err = r.SummarizeText(context.Background(), "A brand new document starts a new conversation.", summarizer.Medium, conv)
	require.NoError(t, err)
	ex, err := r.FollowUp(context.Background(), conv, "question")
	require.NoError(t, err)
	assert.Equal(t, 1, ex.TurnsUsed)
	assert.Equal(t, 2, ex.Remaining)
}

func TestFollowUpWithoutConversation(t *testing.T) {
	r, _ := newRouter(t, &fakeCaptions{}, &fakeAudio{}, okProvider())
	_, err := r.FollowUp(context.Background(), nil, "anything?")
	assert.True(t, apperr.Is(err, apperr.NoActiveContext))
}

func TestStatelessAnswer(t *testing.T) {
	provider := okProvider()
	r, _ := newRouter(t, &fakeCaptions{}, &fakeAudio{}, provider)

	history := []summarizer.Turn{
		{Role: summarizer.RoleUser, Content: "q1"},
		{Role: summarizer.RoleAssistant, Content: "a1"},
		{Role: summarizer.RoleUser, Content: "q2"},
		{Role: summarizer.RoleAssistant, Content: "a2"},
	}
	ex, err := r.Answer(context.Background(), "q3", "grounding text", history)
	require.NoError(t, err)
	assert.Equal(t, 3, ex.TurnsUsed)
	assert.Zero(t, ex.Remaining)

	history = append(history,
		summarizer.Turn{Role: summarizer.RoleUser, Content: "q3"},
		summarizer.Turn{Role: summarizer.RoleAssistant, Content: "a3"})
	_, err = r.Answer(context.Background(), "q4", "grounding text", history)
	assert.True(t, apperr.Is(err, apperr.FollowUpLimitReached))
	assert.Equal(t, 1, provider.answerCalls)

	_, err = r.Answer(context.Background(), " ", "grounding text", nil)
	assert.True(t, apperr.Is(err, apperr.InvalidRequest))
	_, err = r.Answer(context.Background(), "q", "", nil)
	assert.True(t, apperr.Is(err, apperr.NoActiveContext))

	provider.answerErr = errors.New("boom")
	_, err = r.Answer(context.Background(), "q", "grounding text", nil)
	assert.True(t, apperr.Is(err, apperr.ProviderError))
}

func TestCitation(t *testing.T) {
	u, _ := url.Parse("https://www.example.com/a/b?c=d")
	summary := "Line one\nline two of a summary that keeps going well past fifty characters."
	got := Citation(u, summary, fixedNow)
	assert.Equal(t, `"Line one line two of a summary that keeps going we..." www.example.com, 19 Oct. 2026. Web.`, got)

	assert.Empty(t, Citation(nil, summary, fixedNow))
}
