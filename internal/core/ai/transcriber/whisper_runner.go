//go:build !cgo

package transcriber

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// WhisperRunner transcribes audio using the whisper.cpp CLI binary.
// This is used when CGO is disabled (CGO_ENABLED=0).
type WhisperRunner struct {
	binaryPath string
	modelPath  string
	language   string
	logger     *slog.Logger
}

// NewWhisperRunner creates a new whisper runner. An empty binary searches
// PATH for whisper-cli, then main (older whisper.cpp releases).
func NewWhisperRunner(binary, modelPath, language string, logger *slog.Logger) (*WhisperRunner, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found: %s", modelPath)
	}

	binaryPath, err := findWhisperBinary(binary)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WhisperRunner{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		language:   normalizeLanguage(language),
		logger:     logger,
	}, nil
}

func findWhisperBinary(binary string) (string, error) {
	candidates := []string{"whisper-cli", "whisper-cpp", "main"}
	if binary != "" {
		candidates = []string{binary}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("whisper.cpp binary not found (tried %s)", strings.Join(candidates, ", "))
}

// Name returns the provider name.
func (w *WhisperRunner) Name() string {
	return "whisper.cpp"
}

// Transcribe converts an audio file to text using whisper.cpp CLI.
func (w *WhisperRunner) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wavPath, cleanup, err := ensureWAV(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare audio: %w", err)
	}
	defer cleanup()

	tmpDir, err := os.MkdirTemp("", "whisper-output-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputBase := filepath.Join(tmpDir, "output")

	numThreads := runtime.NumCPU()
	if numThreads > 8 {
		numThreads = 8
	}

	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-otxt",
		"-of", outputBase,
		"-t", strconv.Itoa(numThreads),
		"-l", w.language,
	}

	w.logger.Debug("running whisper.cpp",
		"model", filepath.Base(w.modelPath), "threads", numThreads, "language", w.language)

	cmd := exec.CommandContext(ctx, w.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("whisper failed: %w: %s", err, tail(stderr.String()))
	}

	content, err := os.ReadFile(outputBase + ".txt")
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	text := strings.TrimSpace(string(content))
	duration, _ := wavDuration(wavPath)

	return &Result{
		Text:     cleanTranscriptText(text),
		Segments: parseWhisperOutput(text),
		Language: w.language,
		Duration: duration,
	}, nil
}

func tail(s string) string {
	var last string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	return last
}

func wavDuration(path string) (time.Duration, error) {
	samples, rate, err := readWAVSamples(path)
	if err != nil || rate == 0 {
		return 0, err
	}
	return time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second)), nil
}
