package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// chunkDuration keeps a 16 kHz 16-bit mono WAV chunk (about 19 MB)
	// under the Whisper API upload limit.
	chunkDuration = 10 * time.Minute

	// chunkOverlap is shared between neighbouring chunks so no word is cut.
	chunkOverlap = 10 * time.Second
)

// audioChunk is one window of a longer recording.
type audioChunk struct {
	Index int
	Path  string
	Start time.Duration
	End   time.Duration
}

// chunkWindows returns [start, end) sample offsets covering n samples in
// windows of size with overlap shared between neighbours.
func chunkWindows(n, size, overlap int) [][2]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	stride := size - overlap
	if stride <= 0 {
		stride = size
	}

	var out [][2]int
	for start := 0; start < n; start += stride {
		end := min(start+size, n)
		out = append(out, [2]int{start, end})
		if end == n {
			break
		}
	}
	return out
}

// splitAudio decodes filePath and writes WAV chunks into a temp directory.
// The returned cleanup removes them.
func splitAudio(ctx context.Context, filePath string) ([]audioChunk, func(), error) {
	samples, err := loadSamples(ctx, filePath)
	if err != nil {
		return nil, nil, err
	}

	dir, err := os.MkdirTemp(filepath.Dir(filePath), "chunks-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	rate := whisperSampleRate
	size := int(chunkDuration.Seconds()) * rate
	overlap := int(chunkOverlap.Seconds()) * rate

	var chunks []audioChunk
	for i, w := range chunkWindows(len(samples), size, overlap) {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.wav", i+1))
		if err := writeWAV(path, samples[w[0]:w[1]], rate); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to write chunk %d: %w", i+1, err)
		}
		chunks = append(chunks, audioChunk{
			Index: i + 1,
			Path:  path,
			Start: sampleOffset(w[0], rate),
			End:   sampleOffset(w[1], rate),
		})
	}
	return chunks, cleanup, nil
}

func sampleOffset(i, rate int) time.Duration {
	return time.Duration(i) * time.Second / time.Duration(rate)
}

// transcribeChunks runs fn over each chunk in order and merges the results.
func transcribeChunks(ctx context.Context, chunks []audioChunk, fn func(context.Context, string) (*Result, error)) (*Result, error) {
	results := make([]*Result, 0, len(chunks))
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := fn(ctx, c.Path)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", c.Index, len(chunks), err)
		}
		results = append(results, r)
	}
	return mergeResults(results, chunks)
}

// mergeResults stitches chunk transcripts back together, shifting segment
// times by each chunk's start and dropping what the overlap repeats.
func mergeResults(results []*Result, chunks []audioChunk) (*Result, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to merge")
	}
	if len(results) == 1 {
		return results[0], nil
	}

	merged := &Result{Language: results[0].Language}
	var text strings.Builder

	for i, r := range results {
		start := chunks[i].Start
		for _, seg := range r.Segments {
			if i > 0 && seg.Start < chunkOverlap {
				continue
			}
			merged.Segments = append(merged.Segments, Segment{
				Start: start + seg.Start,
				End:   start + seg.End,
				Text:  seg.Text,
			})
		}

		t := r.Text
		if i > 0 {
			t = removeOverlapText(results[i-1].Text, t)
		}
		if t = strings.TrimSpace(t); t != "" {
			if text.Len() > 0 {
				text.WriteString(" ")
			}
			text.WriteString(t)
		}
	}

	merged.Text = text.String()
	merged.Duration = chunks[len(chunks)-1].End
	return merged, nil
}

// removeOverlapText drops the leading words of curr that repeat the tail
// of prev.
func removeOverlapText(prev, curr string) string {
	prevWords := strings.Fields(prev)
	currWords := strings.Fields(curr)
	if len(prevWords) < 5 || len(currWords) < 5 {
		return curr
	}

	matchLen := min(20, len(prevWords))
	suffix := prevWords[len(prevWords)-matchLen:]

	// the longest tail of prev that opens curr wins
	for i := 0; i < matchLen; i++ {
		n := matchLen - i
		if n > len(currWords) || n < 3 {
			continue
		}
		if equalFold(suffix[i:], currWords[:n]) {
			return strings.Join(currWords[n:], " ")
		}
	}
	return curr
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.Trim(a[i], ".,!?;:"), strings.Trim(b[i], ".,!?;:")) {
			return false
		}
	}
	return true
}
