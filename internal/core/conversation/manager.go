// Package conversation holds the context created by a summarization and
// meters the follow-up questions asked against it.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/apperr"
)

// DefaultMaxFollowUps is the per-context follow-up quota.
const DefaultMaxFollowUps = 3

// Context is the state bound to one summarization.
type Context struct {
	SourceReference string            `json:"source_reference"`
	SourceType      string            `json:"source_type"`
	Provenance      string            `json:"provenance"`
	Heading         string            `json:"heading"`
	Summary         string            `json:"summary"`
	Highlights      []string          `json:"highlights"`
	OriginalText    string            `json:"original_text"`
	History         []summarizer.Turn `json:"history"`
	TurnsUsed       int               `json:"turns_used"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Grounding is the text follow-up answers are based on: the extracted
// source when there is one, otherwise the summary itself.
func (c *Context) Grounding() string {
	if strings.TrimSpace(c.OriginalText) != "" {
		return summarizer.Truncate(c.OriginalText)
	}
	return c.Summary
}

func (c *Context) clone() Context {
	out := *c
	out.Highlights = append([]string(nil), c.Highlights...)
	out.History = append([]summarizer.Turn(nil), c.History...)
	return out
}

// Answerer produces a grounded answer; summarizer.Provider satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question, grounding string, history []summarizer.Turn) (string, error)
}

// Exchange is the outcome of an accepted follow-up.
type Exchange struct {
	Answer    string `json:"answer"`
	TurnsUsed int    `json:"turns_used"`
	Remaining int    `json:"remaining"`
}

// Manager is a two-state machine: Empty (no context) or Active (one
// context). At most one follow-up runs at a time.
type Manager struct {
	mu           sync.Mutex
	answerer     Answerer
	maxFollowUps int
	logger       *slog.Logger

	current    *Context
	generation uint64 // bumped on every Begin/Reset
	inFlight   bool
}

// NewManager returns an Empty manager. maxFollowUps <= 0 means the default.
func NewManager(answerer Answerer, maxFollowUps int, logger *slog.Logger) *Manager {
	if maxFollowUps <= 0 {
		maxFollowUps = DefaultMaxFollowUps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{answerer: answerer, maxFollowUps: maxFollowUps, logger: logger}
}

// Begin replaces any current context with c, clearing its history and
// follow-up count.
func (m *Manager) Begin(c Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c = c.clone()
	c.History = nil
	c.TurnsUsed = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	m.current = &c
	m.generation++
	m.inFlight = false
}

// Reset returns the manager to Empty.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	m.generation++
	m.inFlight = false
}

// Snapshot returns a copy of the active context.
func (m *Manager) Snapshot() (Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Context{}, false
	}
	return m.current.clone(), true
}

// Remaining reports how many follow-ups the active context has left.
func (m *Manager) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return 0
	}
	return m.maxFollowUps - m.current.TurnsUsed
}

// MaxFollowUps returns the quota per context.
func (m *Manager) MaxFollowUps() int {
	return m.maxFollowUps
}

// Ask answers question against the active context. Rejected questions and
// provider failures leave the context untouched. If the context is replaced
// while the answer is being produced, the answer is dropped and
// NoActiveContext is returned.
func (m *Manager) Ask(ctx context.Context, question string) (*Exchange, error) {
	question = strings.TrimSpace(question)

	m.mu.Lock()
	switch {
	case m.current == nil:
		m.mu.Unlock()
		return nil, apperr.New(apperr.NoActiveContext, "no active summary; summarize something first")
	case question == "":
		m.mu.Unlock()
		return nil, apperr.New(apperr.InvalidRequest, "question is empty")
	case m.inFlight:
		m.mu.Unlock()
		return nil, apperr.New(apperr.FollowUpInProgress, "a follow-up question is already being answered")
	case m.current.TurnsUsed >= m.maxFollowUps:
		m.mu.Unlock()
		return nil, apperr.New(apperr.FollowUpLimitReached,
			"follow-up limit of %d reached; summarize again to start a new conversation", m.maxFollowUps)
	}

	gen := m.generation
	grounding := m.current.Grounding()
	history := append([]summarizer.Turn(nil), m.current.History...)
	m.inFlight = true
	m.mu.Unlock()

	answer, err := m.answerer.Answer(ctx, question, grounding, history)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen || m.current == nil {
		m.logger.Info("discarding follow-up answer for replaced context")
		return nil, apperr.New(apperr.NoActiveContext, "the summary was replaced before the answer arrived")
	}
	m.inFlight = false

	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderError, err, "failed to answer follow-up")
	}

	m.current.History = append(m.current.History,
		summarizer.Turn{Role: summarizer.RoleUser, Content: question},
		summarizer.Turn{Role: summarizer.RoleAssistant, Content: answer},
	)
	m.current.TurnsUsed++

	return &Exchange{
		Answer:    answer,
		TurnsUsed: m.current.TurnsUsed,
		Remaining: m.maxFollowUps - m.current.TurnsUsed,
	}, nil
}

// CountUserTurns counts the questions already asked in a history supplied
// by a stateless caller.
func CountUserTurns(history []summarizer.Turn) int {
	n := 0
	for _, t := range history {
		if t.Role == summarizer.RoleUser {
			n++
		}
	}
	return n
}
