// Package transcriber provides speech-to-text transcription.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// ErrDisabled is returned by New when transcription is switched off.
var ErrDisabled = errors.New("transcription disabled")

// Segment represents a timestamped portion of transcript.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result contains the transcription output.
type Result struct {
	Text     string
	Segments []Segment
	Language string
	Duration time.Duration
}

// Transcriber converts audio to text. The spoken language is fixed when the
// Transcriber is built.
type Transcriber interface {
	// Transcribe converts an audio file to text.
	Transcribe(ctx context.Context, filePath string) (*Result, error)

	// Name returns the provider name.
	Name() string
}

// New creates a Transcriber for the configured engine. Local engines load
// their model here, so callers should build one and share it; the result may
// implement io.Closer.
func New(cfg config.TranscriptionConfig, logger *slog.Logger) (Transcriber, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Engine {
	case "openai":
		return NewOpenAI(cfg)
	case "", "local":
		return NewLocal(cfg, logger)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported transcription engine: %s", cfg.Engine)
	}
}

// normalizeLanguage maps "" to "auto" and lowercases explicit codes.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "auto"
	}
	return lang
}
