package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
)

func TestSummaryKey(t *testing.T) {
	base := SummaryKey("some text", summarizer.Medium)
	assert.Len(t, base, 64)
	assert.Equal(t, base, SummaryKey("some text", summarizer.Medium))

	tests := []struct {
		name   string
		text   string
		length summarizer.Length
	}{
		{"other length", "some text", summarizer.Short},
		{"other text", "some text!", summarizer.Medium},
		{"boundary shift", "some textm", "edium"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, SummaryKey(tt.text, tt.length))
		})
	}
}

func TestSummaryCache(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		var c *SummaryCache = NewSummaryCache(0)
		assert.Nil(t, c)
		c.Add("text", summarizer.Short, &summarizer.Result{Summary: "s"})
		_, ok := c.Get("text", summarizer.Short)
		assert.False(t, ok)
		assert.Zero(t, c.Len())
	})

	t.Run("hit returns a copy", func(t *testing.T) {
		c := NewSummaryCache(4)
		require.NotNil(t, c)
		c.Add("text", summarizer.Short, &summarizer.Result{Summary: "s", Highlights: []string{"a"}})

		got, ok := c.Get("text", summarizer.Short)
		require.True(t, ok)
		got.Highlights[0] = "changed"

		again, ok := c.Get("text", summarizer.Short)
		require.True(t, ok)
		assert.Equal(t, []string{"a"}, again.Highlights)

		_, ok = c.Get("text", summarizer.Long)
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewSummaryCache(2)
		c.Add("one", summarizer.Medium, &summarizer.Result{Summary: "1"})
		c.Add("two", summarizer.Medium, &summarizer.Result{Summary: "2"})
		c.Add("three", summarizer.Medium, &summarizer.Result{Summary: "3"})

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("one", summarizer.Medium)
		assert.False(t, ok)
		_, ok = c.Get("three", summarizer.Medium)
		assert.True(t, ok)
	})
}
