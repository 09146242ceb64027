package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/guiyumin/vbrief/internal/core/config"
)

// Anthropic implements Provider using Anthropic Claude.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates a new Anthropic provider.
func NewAnthropic(cfg config.ProviderConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key not provided")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &Anthropic{
		client: &client,
		model:  modelOrDefault(cfg.Model, DefaultAnthropicModel),
	}, nil
}

// Name returns the provider name.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// Summarize generates a summary from the given text using Anthropic Claude.
func (a *Anthropic) Summarize(ctx context.Context, text string, length Length) (*Result, error) {
	content, err := a.complete(ctx, SummarizationPrompt, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(summarizeUserPrompt(text, length))),
	})
	if err != nil {
		return nil, err
	}
	return parseResponse(content), nil
}

// Answer responds to a follow-up question.
func (a *Anthropic) Answer(ctx context.Context, question, grounding string, history []Turn) (string, error) {
	var messages []anthropic.MessageParam
	for _, turn := range history {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(question)))

	content, err := a.complete(ctx, answerSystemPrompt(grounding), messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (a *Anthropic) complete(ctx context.Context, system string, messages []anthropic.MessageParam) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4000,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	if content.Len() == 0 {
		return "", fmt.Errorf("no response from anthropic API")
	}
	return content.String(), nil
}
