package summarizer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/config"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		in   string
		want Length
	}{
		{"", Medium},
		{"S", Short},
		{"short", Short},
		{"M", Medium},
		{"l", Long},
		{"XL", Detailed},
		{"detailed", Detailed},
	}
	for _, tt := range tests {
		got, ok := ParseLength(tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, in := range []string{"huge", "XXL", "brief"} {
		got, ok := ParseLength(in)
		assert.False(t, ok, in)
		assert.Equal(t, Medium, got, in)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Result
	}{
		{
			name:    "plain json",
			content: `{"heading":"H","summary":"S","highlights":["a","b"]}`,
			want:    Result{Heading: "H", Summary: "S", Highlights: []string{"a", "b"}},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"heading\":\"H\",\"summary\":\"S\",\"highlights\":[]}\n```",
			want:    Result{Heading: "H", Summary: "S", Highlights: []string{}},
		},
		{
			name:    "chatter around json",
			content: "Sure! Here it is:\n{\"heading\":\"H\",\"summary\":\"S\"}\nEnjoy.",
			want:    Result{Heading: "H", Summary: "S", Highlights: []string{}},
		},
		{
			name:    "missing heading",
			content: `{"summary":"S"}`,
			want:    Result{Heading: "Summary", Summary: "S", Highlights: []string{}},
		},
		{
			name:    "not json",
			content: "Just a paragraph of prose.",
			want:    Result{Heading: "Summary", Summary: "Just a paragraph of prose.", Highlights: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, &tt.want, parseResponse(tt.content))
		})
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("é", MaxInputChars+10)
	got := Truncate(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, MaxInputChars+3, len([]rune(got)))
}

func TestSummarizeUserPrompt(t *testing.T) {
	p := summarizeUserPrompt("content body", Short)
	assert.Contains(t, p, lengthInstructions[Short])
	assert.Contains(t, p, "content body")

	p = summarizeUserPrompt("x", Length("bogus"))
	assert.Contains(t, p, lengthInstructions[Medium])
}

func TestNewRequiresKey(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "qwen", "gemini"} {
		_, err := New(config.ProviderConfig{Name: name})
		assert.Error(t, err, name)
	}
	_, err := New(config.ProviderConfig{Name: "mystery", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "qwen", "gemini"} {
		p, err := New(config.ProviderConfig{Name: name, APIKey: "k"})
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}
}

// chatServer answers every chat completion with reply and records requests.
func chatServer(t *testing.T, status int, reply string, requests *[]map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		*requests = append(*requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAISummarize(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusOK, `{"heading":"Go","summary":"A **language**.","highlights":["go"]}`, &requests)
	defer srv.Close()

	p, err := NewOpenAI(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	res, err := p.Summarize(context.Background(), "Go is a programming language.", Long)
	require.NoError(t, err)
	assert.Equal(t, "Go", res.Heading)
	assert.Equal(t, []string{"go"}, res.Highlights)

	require.Len(t, requests, 1)
	assert.Equal(t, DefaultOpenAIModel, requests[0]["model"])
	msgs := requests[0]["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIAnswerSendsHistory(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusOK, "  It is fast.  ", &requests)
	defer srv.Close()

	p, err := NewQwen(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	history := []Turn{
		{Role: RoleUser, Content: "What is Go?"},
		{Role: RoleAssistant, Content: "A language."},
	}
	answer, err := p.Answer(context.Background(), "Is it fast?", "Go compiles quickly.", history)
	require.NoError(t, err)
	assert.Equal(t, "It is fast.", answer)

	msgs := requests[0]["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].(map[string]any)["content"], "Go compiles quickly.")
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "Is it fast?", msgs[3].(map[string]any)["content"])
}

func TestOpenAIErrorNotRetried(t *testing.T) {
	var requests []map[string]any
	srv := chatServer(t, http.StatusInternalServerError, "", &requests)
	defer srv.Close()

	p, err := NewGemini(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = p.Summarize(context.Background(), "text", Medium)
	assert.Error(t, err)
	assert.Len(t, requests, 1)
}

func TestAnthropicSummarize(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["system"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"{\"heading\":\"H\",\"summary\":\"S\",\"highlights\":[]}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}
		}`))
	}))
	defer srv.Close()

	p, err := NewAnthropic(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := p.Summarize(context.Background(), "text", Short)
	require.NoError(t, err)
	assert.Equal(t, "H", res.Heading)
	assert.Equal(t, 1, calls)
}
