package extractor

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/guiyumin/vbrief/internal/core/source"
)

// TranscriptCache remembers video transcripts by canonical video URL so a
// repeated request skips caption lookup and transcription. A nil cache is
// valid and never hits.
type TranscriptCache struct {
	entries *lru.Cache[string, Result]
}

// NewTranscriptCache returns a cache holding up to size transcripts, or nil
// when size is not positive.
func NewTranscriptCache(size int) *TranscriptCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, Result](size)
	if err != nil {
		return nil
	}
	return &TranscriptCache{entries: c}
}

// CacheKey is the hex SHA-256 of the video's canonical URL.
func CacheKey(videoID string) string {
	sum := sha256.Sum256([]byte(source.CanonicalVideoURL(videoID)))
	return hex.EncodeToString(sum[:])
}

func (c *TranscriptCache) Get(videoID string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.entries.Get(CacheKey(videoID))
	if !ok {
		return nil, false
	}
	return &r, true
}

func (c *TranscriptCache) Add(videoID string, r *Result) {
	if c == nil || r == nil {
		return
	}
	c.entries.Add(CacheKey(videoID), *r)
}

func (c *TranscriptCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
