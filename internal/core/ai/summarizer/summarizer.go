// Package summarizer turns extracted text into structured summaries and
// answers follow-up questions against it.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// MaxInputChars caps the text sent to a provider.
const MaxInputChars = 30000

// Length is the requested summary size.
type Length string

const (
	Short    Length = "short"
	Medium   Length = "medium"
	Long     Length = "long"
	Detailed Length = "detailed"
)

// ParseLength accepts the long names and the S/M/L/XL shorthand used by the
// browser panel. Empty and unknown values mean Medium; ok is false only for
// a non-empty value that was not recognised.
func ParseLength(s string) (l Length, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m", "medium":
		return Medium, true
	case "s", "short":
		return Short, true
	case "l", "long":
		return Long, true
	case "xl", "detailed":
		return Detailed, true
	default:
		return Medium, false
	}
}

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a follow-up conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Result contains the summarization output.
type Result struct {
	Heading    string   `json:"heading"`
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
}

// Provider generates summaries and grounded answers. Implementations do not
// retry; failures go straight back to the caller.
type Provider interface {
	// Summarize generates a summary from the given text.
	Summarize(ctx context.Context, text string, length Length) (*Result, error)

	// Answer responds to question using only grounding and the prior turns.
	Answer(ctx context.Context, question, grounding string, history []Turn) (string, error)

	// Name returns the provider name.
	Name() string
}

// New creates a Provider from configuration.
func New(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case "", "openai":
		return NewOpenAI(cfg)
	case "anthropic":
		return NewAnthropic(cfg)
	case "qwen":
		return NewQwen(cfg)
	case "gemini":
		return NewGemini(cfg)
	default:
		return nil, fmt.Errorf("unsupported summarization provider: %s", cfg.Name)
	}
}

// Truncate cuts text to at most MaxInputChars runes, marking the cut.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxInputChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxInputChars]) + "..."
}
