package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/ai/summarizer"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
)

func sampleResponse() *pipeline.Response {
	return &pipeline.Response{
		Heading:      "Rivers and Time",
		Summary:      "Rivers carve canyons slowly.",
		Highlights:   []string{"Erosion is slow", "Water wins"},
		OriginalText: "Rivers carve canyons slowly over millions of years.",
		Provenance:   "captions",
		Citation:     `"Rivers carve canyons slowly...." youtu.be, 19 Oct. 2026. Web.`,
		Metadata: pipeline.Metadata{
			Source:          "https://youtu.be/abc123def45",
			SourceType:      "youtube",
			DurationSeconds: 754,
			Language:        "en",
			Timestamp:       float64(time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local).Unix()),
		},
	}
}

func TestMarkdown(t *testing.T) {
	history := []summarizer.Turn{
		{Role: summarizer.RoleUser, Content: "How slow?"},
		{Role: summarizer.RoleAssistant, Content: "Millions of years."},
	}

	md := Markdown(sampleResponse(), history, false)

	assert.Contains(t, md, "# Rivers and Time\n")
	assert.Contains(t, md, "**Source:** https://youtu.be/abc123def45\n")
	assert.Contains(t, md, "**Text from:** captions\n")
	assert.Contains(t, md, "**Duration:** 12m 34s\n")
	assert.Contains(t, md, "**Summarized:** 2026-10-19 09:30:00\n")
	assert.Contains(t, md, "- Erosion is slow\n")
	assert.Contains(t, md, "**Q:** How slow?\n\nMillions of years.\n")
	assert.Contains(t, md, "*\"Rivers carve canyons slowly....\" youtu.be, 19 Oct. 2026. Web.*")
	assert.NotContains(t, md, "## Source Text")

	md = Markdown(sampleResponse(), nil, true)
	assert.Contains(t, md, "## Source Text\n\nRivers carve canyons slowly over millions of years.\n")
	assert.NotContains(t, md, "## Follow-up Questions")
}

func TestMarkdownRawSourceOmitted(t *testing.T) {
	resp := sampleResponse()
	resp.Heading = ""
	resp.Provenance = "raw"

	md := Markdown(resp, nil, true)
	assert.Contains(t, md, "# Summary\n")
	assert.NotContains(t, md, "## Source Text")
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, WriteSummary(path, sampleResponse(), nil, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Summary\n\nRivers carve canyons slowly.\n")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
}
