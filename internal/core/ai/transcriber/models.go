package transcriber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ASRModel represents a whisper.cpp ggml model.
type ASRModel struct {
	Name        string // Short name (e.g., "whisper-base")
	FileName    string // ggml filename inside the models directory
	Size        string // Human-readable size
	Description string
	URL         string
}

// ASRModels lists available models.
var ASRModels = []ASRModel{
	{
		Name:        "whisper-tiny",
		FileName:    "ggml-tiny.bin",
		Size:        "78MB",
		Description: "Fastest, basic quality",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	},
	{
		Name:        "whisper-base",
		FileName:    "ggml-base.bin",
		Size:        "148MB",
		Description: "Good for quick drafts",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	},
	{
		Name:        "whisper-small",
		FileName:    "ggml-small.bin",
		Size:        "488MB",
		Description: "Balanced for most uses",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	},
	{
		Name:        "whisper-medium",
		FileName:    "ggml-medium.bin",
		Size:        "1.5GB",
		Description: "Higher accuracy",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	},
	{
		Name:        "whisper-large-v3-turbo",
		FileName:    "ggml-large-v3-turbo.bin",
		Size:        "1.6GB",
		Description: "Best quality + fast",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
	},
}

// DefaultModel is used when none is configured.
const DefaultModel = "whisper-base"

// GetModel returns a model by name.
func GetModel(name string) *ASRModel {
	for _, m := range ASRModels {
		if m.Name == name {
			return &m
		}
	}
	return nil
}

// ModelPath resolves a configured model to a file path. Known names map to
// their ggml file; anything else is treated as a filename or absolute path.
func ModelPath(modelsDir, name string) string {
	if name == "" {
		name = DefaultModel
	}
	if m := GetModel(name); m != nil {
		return filepath.Join(modelsDir, m.FileName)
	}
	if filepath.IsAbs(name) {
		return name
	}
	if !strings.HasSuffix(name, ".bin") {
		name += ".bin"
	}
	return filepath.Join(modelsDir, name)
}

// ModelManager handles model downloads and caching.
type ModelManager struct {
	modelsDir string
	client    *http.Client
	logger    *slog.Logger
}

// NewModelManager creates a new model manager.
func NewModelManager(modelsDir string, logger *slog.Logger) *ModelManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelManager{modelsDir: modelsDir, client: http.DefaultClient, logger: logger}
}

// IsModelDownloaded checks if a model file is present.
func (m *ModelManager) IsModelDownloaded(name string) bool {
	info, err := os.Stat(ModelPath(m.modelsDir, name))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// EnsureModel downloads a known model if it is not already present and
// returns its path.
func (m *ModelManager) EnsureModel(ctx context.Context, name string) (string, error) {
	path := ModelPath(m.modelsDir, name)
	if m.IsModelDownloaded(name) {
		return path, nil
	}

	model := GetModel(name)
	if model == nil {
		return "", fmt.Errorf("model not found: %s", path)
	}
	if err := m.download(ctx, model.URL, path); err != nil {
		return "", err
	}
	return path, nil
}

func (m *ModelManager) download(ctx context.Context, url, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download model: HTTP %d", resp.StatusCode)
	}

	m.logger.Info("downloading whisper model", "url", url, "size", formatBytes(resp.ContentLength))

	// write to a sibling file so an interrupted download is never mistaken
	// for a model
	tmp := target + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("download failed: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}

// formatBytes formats bytes to human readable string
func formatBytes(b int64) string {
	if b < 0 {
		return "unknown"
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
