package transcriber

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/vbrief/internal/core/config"
)

func TestParseWhisperOutput(t *testing.T) {
	out := "[00:00:00.000 --> 00:00:02.500] Hello there.\n" +
		"[00:00:02.500 --> 00:00:05.000] General Kenobi.\n" +
		"continued line\n"

	segs := parseWhisperOutput(out)
	require.Len(t, segs, 2)
	assert.Equal(t, "Hello there.", segs[0].Text)
	assert.Equal(t, 2500*time.Millisecond, segs[0].End)
	assert.Equal(t, "General Kenobi. continued line", segs[1].Text)

	assert.Equal(t, "Hello there. General Kenobi. continued line", cleanTranscriptText(out))
}

func TestParseTimestamp(t *testing.T) {
	assert.Equal(t, time.Hour+2*time.Minute+3500*time.Millisecond, parseTimestamp("01:02:03.500"))
	assert.Equal(t, time.Duration(0), parseTimestamp("02:03"))
}

func TestResampleTo16kHz(t *testing.T) {
	src := make([]float32, 32000)
	assert.Len(t, resampleTo16kHz(src, 32000), 16000)
	assert.Len(t, resampleTo16kHz(src, 16000), 32000)
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]float32, whisperSampleRate) // one second
	for i := range samples {
		samples[i] = 0.25
	}
	require.NoError(t, writeWAV(path, samples, whisperSampleRate))

	got, rate, err := readWAVSamples(path)
	require.NoError(t, err)
	assert.Equal(t, whisperSampleRate, rate)
	require.Len(t, got, len(samples))
	assert.InDelta(t, 0.25, got[100], 0.001)
}

func TestModelPath(t *testing.T) {
	dir := "/models"
	assert.Equal(t, filepath.Join(dir, "ggml-base.bin"), ModelPath(dir, ""))
	assert.Equal(t, filepath.Join(dir, "ggml-small.bin"), ModelPath(dir, "whisper-small"))
	assert.Equal(t, filepath.Join(dir, "custom.bin"), ModelPath(dir, "custom"))
	assert.Equal(t, "/abs/model.bin", ModelPath(dir, "/abs/model.bin"))
}

func TestEnsureModelUnknown(t *testing.T) {
	m := NewModelManager(t.TempDir(), nil)
	_, err := m.EnsureModel(t.Context(), "not-a-model")
	assert.Error(t, err)
}

func TestNewDisabled(t *testing.T) {
	_, err := New(config.TranscriptionConfig{Engine: "none"}, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(config.TranscriptionConfig{Engine: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestNewOpenAI(t *testing.T) {
	_, err := NewOpenAI(config.TranscriptionConfig{})
	assert.Error(t, err, "missing key")

	o, err := NewOpenAI(config.TranscriptionConfig{APIKey: "sk-test", Model: "whisper-base", Language: "EN"})
	require.NoError(t, err)
	assert.Equal(t, "whisper-1", o.model)
	assert.Equal(t, "en", o.language)
	assert.Equal(t, "openai", o.Name())
}

func TestChunkWindows(t *testing.T) {
	assert.Nil(t, chunkWindows(0, 10, 2))
	assert.Equal(t, [][2]int{{0, 7}}, chunkWindows(7, 10, 2))
	assert.Equal(t, [][2]int{{0, 10}, {8, 18}, {16, 20}}, chunkWindows(20, 10, 2))
	// exact fit ends without an empty tail window
	assert.Equal(t, [][2]int{{0, 10}, {8, 18}}, chunkWindows(18, 10, 2))
}

func TestSplitAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	// 10m05s so the second chunk holds the overlap plus five seconds
	samples := make([]float32, (10*60+5)*whisperSampleRate)
	require.NoError(t, writeWAV(path, samples, whisperSampleRate))

	chunks, cleanup, err := splitAudio(t.Context(), path)
	require.NoError(t, err)
	defer cleanup()

	require.Len(t, chunks, 2)
	assert.Equal(t, time.Duration(0), chunks[0].Start)
	assert.Equal(t, 10*time.Minute, chunks[0].End)
	assert.Equal(t, 9*time.Minute+50*time.Second, chunks[1].Start)
	assert.Equal(t, 10*time.Minute+5*time.Second, chunks[1].End)
	assert.FileExists(t, chunks[1].Path)

	cleanup()
	assert.NoFileExists(t, chunks[1].Path)
}

func TestMergeResults(t *testing.T) {
	chunks := []audioChunk{
		{Index: 1, Start: 0, End: 10 * time.Minute},
		{Index: 2, Start: 9*time.Minute + 50*time.Second, End: 12 * time.Minute},
	}
	results := []*Result{
		{
			Text:     "the river runs past the old mill and into the valley below",
			Language: "en",
			Segments: []Segment{{Start: 0, End: 5 * time.Second, Text: "the river runs"}},
		},
		{
			Text: "into the valley below where the town begins",
			Segments: []Segment{
				{Start: 2 * time.Second, End: 8 * time.Second, Text: "into the valley below"},
				{Start: 12 * time.Second, End: 15 * time.Second, Text: "where the town begins"},
			},
		},
	}

	merged, err := mergeResults(results, chunks)
	require.NoError(t, err)
	assert.Equal(t, "the river runs past the old mill and into the valley below where the town begins", merged.Text)
	assert.Equal(t, "en", merged.Language)
	assert.Equal(t, 12*time.Minute, merged.Duration)
	require.Len(t, merged.Segments, 2)
	assert.Equal(t, 10*time.Minute+2*time.Second, merged.Segments[1].Start)
}

func TestRemoveOverlapText(t *testing.T) {
	prev := "one two three four five six"
	assert.Equal(t, "seven eight", removeOverlapText(prev, "four five six seven eight"))
	assert.Equal(t, "a b c d e f", removeOverlapText(prev, "a b c d e f"))
	assert.Equal(t, "short", removeOverlapText("too few", "short"))
}
