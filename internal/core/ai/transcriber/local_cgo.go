//go:build cgo

package transcriber

import (
	"context"
	"log/slog"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// NewLocal loads the configured whisper.cpp model in-process, downloading a
// known model on first use.
func NewLocal(cfg config.TranscriptionConfig, logger *slog.Logger) (Transcriber, error) {
	modelsDir := cfg.ModelsDir
	if modelsDir == "" {
		modelsDir = config.DefaultModelsDir()
	}

	manager := NewModelManager(modelsDir, logger)
	modelPath, err := manager.EnsureModel(context.Background(), cfg.Model)
	if err != nil {
		return nil, err
	}

	logger.Info("loading whisper model", "path", modelPath, "language", normalizeLanguage(cfg.Language))
	return NewWhisperTranscriber(modelPath, cfg.Language)
}
