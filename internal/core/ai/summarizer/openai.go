package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/guiyumin/vbrief/internal/core/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI implements Provider over the Chat Completions API. Qwen and Gemini
// reuse it through their OpenAI-compatible endpoints.
type OpenAI struct {
	client    openai.Client
	model     openai.ChatModel
	name      string
	maxTokens int64
}

// NewOpenAI creates a new OpenAI provider.
func NewOpenAI(cfg config.ProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	return newChatProvider("openai", cfg.APIKey, cfg.BaseURL, modelOrDefault(cfg.Model, DefaultOpenAIModel)), nil
}

func newChatProvider(name, apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// failures surface to the caller instead of being retried here
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     openai.ChatModel(model),
		name:      name,
		maxTokens: 4000,
	}
}

// Name returns the provider name.
func (o *OpenAI) Name() string {
	return o.name
}

// Summarize generates a summary from the given text.
func (o *OpenAI) Summarize(ctx context.Context, text string, length Length) (*Result, error) {
	content, err := o.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SummarizationPrompt),
		openai.UserMessage(summarizeUserPrompt(text, length)),
	}, 0.3)
	if err != nil {
		return nil, err
	}
	return parseResponse(content), nil
}

// Answer responds to a follow-up question.
func (o *OpenAI) Answer(ctx context.Context, question, grounding string, history []Turn) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(answerSystemPrompt(grounding)),
	}
	for _, turn := range history {
		if turn.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(question))

	content, err := o.complete(ctx, messages, 0.5)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (o *OpenAI) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, temperature float64) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   openai.Int(o.maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", o.name, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no response from %s API", o.name)
	}
	return resp.Choices[0].Message.Content, nil
}
