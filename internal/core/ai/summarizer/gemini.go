package summarizer

import (
	"fmt"

	"github.com/guiyumin/vbrief/internal/core/config"
)

// GeminiDefaultBaseURL is Google's OpenAI-compatible endpoint.
const GeminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewGemini creates a Provider for Google Gemini via its OpenAI-compatible API.
func NewGemini(cfg config.ProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not provided")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = GeminiDefaultBaseURL
	}

	return newChatProvider("gemini", cfg.APIKey, baseURL, modelOrDefault(cfg.Model, DefaultGeminiModel)), nil
}
