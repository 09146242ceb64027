//go:build !cgo

package transcriber

import (
	"context"
	"log/slog"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// NewLocal returns a runner around the whisper-cli binary; builds without cgo
// cannot link whisper.cpp.
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

	return NewWhisperRunner(cfg.Binary, modelPath, cfg.Language, logger)
}
