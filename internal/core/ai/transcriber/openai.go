package transcriber

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/guiyumin/vbrief/internal/core/config"
	openai "github.com/sashabaranov/go-openai"
)

// maxOpenAIFileSize is the Whisper API upload limit.
const maxOpenAIFileSize = 25 * 1024 * 1024

// OpenAI implements Transcriber using OpenAI Whisper API.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAI creates a new OpenAI transcriber.
func NewOpenAI(cfg config.TranscriptionConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" || GetModel(model) != nil {
		// local model names mean nothing to the API
		model = openai.Whisper1
	}

	return &OpenAI{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: normalizeLanguage(cfg.Language),
	}, nil
}

// Name returns the provider name.
func (o *OpenAI) Name() string {
	return "openai"
}

// Transcribe converts an audio file to text using OpenAI Whisper.
func (o *OpenAI) Transcribe(ctx context.Context, filePath string) (*Result, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	if info.Size() > maxOpenAIFileSize {
		chunks, cleanup, err := splitAudio(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to split %d byte audio file: %w", info.Size(), err)
		}
		defer cleanup()
		return transcribeChunks(ctx, chunks, o.transcribeFile)
	}
	return o.transcribeFile(ctx, filePath)
}

func (o *OpenAI) transcribeFile(ctx context.Context, filePath string) (*Result, error) {
	// verbose output carries segments and the detected language
	req := openai.AudioRequest{
		Model:    o.model,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if o.language != "auto" {
		req.Language = o.language
	}

	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcription API error: %w", err)
	}

	result := &Result{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  seg.Text,
		})
	}

	return result, nil
}
