//go:build cgo

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperTranscriber implements Transcriber using the whisper.cpp bindings.
// The model is loaded once; each call gets its own context.
type WhisperTranscriber struct {
	mu        sync.Mutex // whisper.cpp contexts share model state
	model     whisper.Model
	modelPath string
	language  string
}

// NewWhisperTranscriber loads a ggml model.
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found: %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
		language:  normalizeLanguage(language),
	}, nil
}

// Name returns the provider name.
func (w *WhisperTranscriber) Name() string {
	return "whisper.cpp"
}

// Transcribe converts an audio file to text using whisper.cpp.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	samples, err := loadSamples(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, errors.New("audio contains no samples")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if w.language != "auto" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}

	// the encoder-begin callback is the only cancellation point whisper.cpp offers
	abort := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, abort, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to process audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segments []Segment
	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get segment: %w", err)
		}

		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  text,
		})
		parts = append(parts, text)
	}

	return &Result{
		Text:     strings.Join(parts, " "),
		Segments: segments,
		Language: wctx.Language(),
		Duration: time.Duration(float64(len(samples)) / whisperSampleRate * float64(time.Second)),
	}, nil
}

// Close releases the model resources.
func (w *WhisperTranscriber) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}
