package ytdlp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line       string
		ok         bool
		downloaded int64
		total      int64
	}{
		{"[download]  50.0% of  2.00MiB at  1.00MiB/s ETA 00:01", true, 1024 * 1024, 2 * 1024 * 1024},
		{"[download] 100% of ~ 10.00KiB in 00:00", true, 10 * 1024, 10 * 1024},
		{"[ExtractAudio] Destination: audio.mp3", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			downloaded, total, ok := parseProgress(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.downloaded, downloaded)
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestScanProgressCallsBack(t *testing.T) {
	input := strings.Join([]string{
		"[youtube] dQw4w9WgXcQ: Downloading webpage",
		"[download]  10.0% of  1.00MiB at 1.00MiB/s ETA 00:01",
		"[download] 100.0% of  1.00MiB at 1.00MiB/s ETA 00:00",
	}, "\n")

	var calls int
	var last int64
	scanProgress(strings.NewReader(input), func(downloaded, total int64) {
		calls++
		last = downloaded
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1024*1024), last)
}

func TestInfoDecodesCaptionListings(t *testing.T) {
	raw := `{
		"id": "dQw4w9WgXcQ",
		"title": "Example",
		"duration": 213,
		"subtitles": {"en": [{"ext": "vtt", "url": "https://example.com/en.vtt"}]},
		"automatic_captions": {"en": [{"ext": "json3", "url": "https://example.com/en.json3"}]}
	}`

	var info Info
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	assert.Equal(t, 213.0, info.Duration)
	assert.Equal(t, "vtt", info.Subtitles["en"][0].Ext)
	assert.Equal(t, "json3", info.AutomaticCaptions["en"][0].Ext)
}
