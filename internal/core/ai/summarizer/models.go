package summarizer

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultQwenModel      = "qwen-plus"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return DefaultAnthropicModel
	case "qwen":
		return DefaultQwenModel
	case "gemini":
		return DefaultGeminiModel
	default:
		return DefaultOpenAIModel
	}
}

func modelOrDefault(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
