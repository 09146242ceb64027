package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
	"github.com/guiyumin/vbrief/internal/core/extractor"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/core/source"
)

type stubProvider struct {
	summarizeErr error
}

func (p *stubProvider) Summarize(ctx context.Context, text string, length summarizer.Length) (*summarizer.Result, error) {
	if p.summarizeErr != nil {
		return nil, p.summarizeErr
	}
	return &summarizer.Result{Heading: "Heading", Summary: "A short summary of " + string(length) + " length.", Highlights: []string{"one"}}, nil
}

func (p *stubProvider) Answer(ctx context.Context, question, grounding string, history []summarizer.Turn) (string, error) {
	return "answer to " + question, nil
}

func (p *stubProvider) Name() string { return "stub" }

// stubExtractor passes raw text through and serves a fixed transcript for
// everything else. block makes it wait for cancellation.
type stubExtractor struct {
	block bool
}

func (e *stubExtractor) Extract(ctx context.Context, c *source.Classified, onStage extractor.StageFunc) (*extractor.Result, error) {
	if c.Strategy == source.StrategyRaw {
		return &extractor.Result{Text: c.Text(), Provenance: extractor.ProvenanceRaw}, nil
	}
	if onStage != nil {
		onStage(extractor.StageCheckingCaptions)
	}
	if e.block {
		<-ctx.Done()
		return nil, apperr.Wrap(apperr.TranscriptionFailure, ctx.Err(), "transcription interrupted")
	}
	return &extractor.Result{
		Text:            "A transcript that is comfortably longer than fifty characters in total.",
		Provenance:      extractor.ProvenanceCaptions,
		DurationSeconds: 180,
	}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, opts Options, provider *stubProvider, ex pipeline.Extractor) *Server {
	t.Helper()
	router := pipeline.NewRouter(ex, provider, pipeline.Options{}, nil)
	s := NewServer(router, opts, nil)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

const longText = "The city council approved a new transit plan on Monday evening."

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{APIKey: "secret", Transcriber: "whisper.cpp"}, &stubProvider{}, &stubExtractor{})

	rec, env := do(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode[map[string]string](t, env.Data)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "stub", data["provider"])
	assert.Equal(t, "whisper.cpp", data["transcriber"])
}

func TestSummarizeTextTooShort(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})

	rec, env := do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": "tiny"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	data := decode[map[string]string](t, env.Data)
	assert.Equal(t, string(apperr.InvalidSource), data["error_kind"])
	assert.Equal(t, "Text must be at least 20 characters", data["message"])
	assert.Zero(t, s.sessions.Len())
}

func TestSummarizeAndFollowUps(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})

	rec, env := do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": longText, "length": "S"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decode[map[string]any](t, env.Data)
	assert.Equal(t, "raw", payload["provenance"])
	assert.Equal(t, "A short summary of short length.", payload["summary"])
	sessionID, _ := payload["session_id"].(string)
	require.NotEmpty(t, sessionID)

	for i := 1; i <= 3; i++ {
		rec, env = do(t, s, http.MethodPost, "/api/follow-up", map[string]string{"session_id": sessionID, "question": "why?"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ex := decode[map[string]any](t, env.Data)
		assert.EqualValues(t, i, ex["turns_used"])
		assert.EqualValues(t, 3-i, ex["remaining"])
	}

	rec, env = do(t, s, http.MethodPost, "/api/follow-up", map[string]string{"session_id": sessionID, "question": "again?"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(apperr.FollowUpLimitReached), decode[map[string]string](t, env.Data)["error_kind"])

	rec, env = do(t, s, http.MethodGet, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 0, snap["remaining"])

	rec, _ = do(t, s, http.MethodDelete, "/api/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/api/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummarizeURLReusesSession(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})

	body := map[string]string{"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "session_id": "panel-1"}
	rec, env := do(t, s, http.MethodPost, "/api/summarize-url", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decode[map[string]any](t, env.Data)
	assert.Equal(t, "panel-1", payload["session_id"])
	assert.Equal(t, "captions", payload["provenance"])
	assert.Contains(t, payload["citation"], "www.youtube.com")

	meta, _ := payload["metadata"].(map[string]any)
	assert.Equal(t, "youtube", meta["source_type"])
	assert.EqualValues(t, 180, meta["duration_seconds"])
}

func TestFollowUpErrors(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})

	rec, _ := do(t, s, http.MethodPost, "/api/follow-up", map[string]string{"session_id": "missing", "question": "q"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/follow-up", map[string]string{"question": "", "grounding_text": "text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatelessFollowUp(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})

	body := map[string]any{
		"question":       "what next?",
		"grounding_text": longText,
		"history": []map[string]string{
			{"role": "user", "content": "q1"},
			{"role": "assistant", "content": "a1"},
		},
	}
	rec, env := do(t, s, http.MethodPost, "/api/follow-up", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ex := decode[map[string]any](t, env.Data)
	assert.Equal(t, "answer to what next?", ex["answer"])
	assert.EqualValues(t, 2, ex["turns_used"])
}

func TestProviderErrorStatus(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{summarizeErr: errors.New("quota exceeded")}, &stubExtractor{})

	rec, env := do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": longText})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	data := decode[map[string]string](t, env.Data)
	assert.Equal(t, string(apperr.ProviderError), data["error_kind"])
	assert.NotContains(t, data["message"], "*apperr")
}

func TestUnknownLengthDefaultsToMedium(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})
	rec, env := do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": longText, "length": "huge"})
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decode[map[string]any](t, env.Data)
	assert.Equal(t, "A short summary of medium length.", payload["summary"])
	meta := payload["metadata"].(map[string]any)
	assert.Equal(t, "medium", meta["length"])
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, Options{APIKey: "secret"}, &stubProvider{}, &stubExtractor{})

	rec, _ := do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": longText})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/summarize", map[string]string{"text": longText}, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Options{APIKey: "secret"}, &stubProvider{}, &stubExtractor{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"preflight skips auth", http.MethodOptions, "/api/summarize", http.StatusNoContent},
		{"simple request", http.MethodGet, "/api/health", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Origin", "chrome-extension://abc")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/follow-up", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-api-key")
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.InvalidSource, http.StatusBadRequest},
		{apperr.InvalidRequest, http.StatusBadRequest},
		{apperr.NoActiveContext, http.StatusNotFound},
		{apperr.FollowUpInProgress, http.StatusConflict},
		{apperr.FollowUpLimitReached, http.StatusTooManyRequests},
		{apperr.DurationExceeded, http.StatusRequestEntityTooLarge},
		{apperr.EmptyAudio, http.StatusUnprocessableEntity},
		{apperr.ExtractionFailed, http.StatusUnprocessableEntity},
		{apperr.TranscriptionFailure, http.StatusUnprocessableEntity},
		{apperr.ProviderError, http.StatusBadGateway},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.kind))
		})
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})
	s.jobQueue.Start()

	body := map[string]any{"source": map[string]string{"kind": "youtube", "reference": "https://youtu.be/dQw4w9WgXcQ"}}
	rec, env := do(t, s, http.MethodPost, "/api/jobs", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode[map[string]string](t, env.Data)
	id := created["id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		job := s.jobQueue.GetJob(id)
		return job != nil && job.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec, env = do(t, s, http.MethodGet, "/api/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[map[string]any](t, env.Data)
	assert.Equal(t, string(pipeline.StageDone), job["stage"])
	result, _ := job["result"].(map[string]any)
	assert.Equal(t, "captions", result["provenance"])
	assert.Equal(t, created["session_id"], result["session_id"])

	conv, ok := s.sessions.Get(created["session_id"])
	require.True(t, ok)
	_, active := conv.Snapshot()
	assert.True(t, active)
}

func TestJobCancel(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{block: true})
	s.jobQueue.Start()

	body := map[string]any{"source": map[string]string{"kind": "url", "reference": "https://example.com/article"}}
	_, env := do(t, s, http.MethodPost, "/api/jobs", body)
	id := decode[map[string]string](t, env.Data)["id"]

	require.Eventually(t, func() bool {
		job := s.jobQueue.GetJob(id)
		return job != nil && job.Stage == extractor.StageCheckingCaptions
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ := do(t, s, http.MethodDelete, "/api/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return s.jobQueue.GetJob(id).Status == JobStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	rec, _ = do(t, s, http.MethodDelete, "/api/jobs/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "finished job is removed")
	rec, _ = do(t, s, http.MethodGet, "/api/jobs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobRejectsInvalidSource(t *testing.T) {
	s := newTestServer(t, Options{}, &stubProvider{}, &stubExtractor{})
	body := map[string]any{"source": map[string]string{"kind": "youtube", "reference": "https://vimeo.com/123"}}
	rec, _ := do(t, s, http.MethodPost, "/api/jobs", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
