package summarizer

import (
	"fmt"

	"github.com/guiyumin/vbrief/internal/core/config"
)

const (
	// QwenDefaultBaseURL is the OpenAI-compatible endpoint for Qwen
	QwenDefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// NewQwen creates a Provider for Alibaba Qwen via its OpenAI-compatible API.
// The key is a DashScope API key.
func NewQwen(cfg config.ProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Qwen API key not provided")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = QwenDefaultBaseURL
	}

	p := newChatProvider("qwen", cfg.APIKey, baseURL, modelOrDefault(cfg.Model, DefaultQwenModel))
	p.maxTokens = 2000
	return p, nil
}
