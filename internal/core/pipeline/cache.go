package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
)

// SummaryCache remembers provider results by input text and length so a
// repeated request does not pay for a second completion. A nil cache is
// valid and never hits.
type SummaryCache struct {
	entries *lru.Cache[string, summarizer.Result]
}

// NewSummaryCache returns a cache holding up to size summaries, or nil when
// size is not positive.
func NewSummaryCache(size int) *SummaryCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, summarizer.Result](size)
	if err != nil {
		return nil
	}
	return &SummaryCache{entries: c}
}

// SummaryKey is the hex SHA-256 of text and length.
func SummaryKey(text string, length summarizer.Length) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(length))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached result, so callers may modify it.
func (c *SummaryCache) Get(text string, length summarizer.Length) (*summarizer.Result, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.entries.Get(SummaryKey(text, length))
	if !ok {
		return nil, false
	}
	r.Highlights = append([]string(nil), r.Highlights...)
	return &r, true
}

func (c *SummaryCache) Add(text string, length summarizer.Length, r *summarizer.Result) {
	if c == nil || r == nil {
		return
	}
	v := *r
	v.Highlights = append([]string(nil), r.Highlights...)
	c.entries.Add(SummaryKey(text, length), v)
}

func (c *SummaryCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
