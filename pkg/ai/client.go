package ai

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

const defaultModel = "gemini-2.0-flash"

// Config points the client at any OpenAI-compatible chat completion endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client wraps the chat completion API. A Client built without an API key is
// disabled and every caller falls back to non-AI behaviour.
type Client struct {
	api    *openai.Client
	model  string
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger, opts ...option.RequestOption) *Client {
	c := &Client{model: cfg.Model, logger: logger}
	if c.model == "" {
		c.model = defaultModel
	}
	if cfg.APIKey == "" {
		logger.Info("AI service disabled, no API key provided")
		return c
	}

	base := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	api := openai.NewClient(append(base, opts...)...)
	c.api = &api
	logger.Info("AI service initialized", zap.String("model", c.model))
	return c
}

func (c *Client) IsEnabled() bool {
	return c != nil && c.api != nil
}

func (c *Client) generateCompletion(ctx context.Context, systemMessage, userMessage string, maxTokens int64) (string, error) {
	if !c.IsEnabled() {
		return "", &AIError{Message: "AI service is not enabled"}
	}

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemMessage),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(userMessage),
					},
				},
			},
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		c.logger.Warn("AI completion failed", zap.Error(err))
		return "", &AIError{Message: "failed to generate AI response", Cause: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &AIError{Message: "AI returned empty response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// AIError represents an AI service error
type AIError struct {
	Message string
	Cause   error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AIError) Unwrap() error {
	return e.Cause
}
