package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
)

// DefaultSystemMessage frames every completion as SQL generation.
const DefaultSystemMessage = "You translate questions into a single read-only SQL SELECT statement. Reply with SQL only."

// Client provides access to OpenAI-compatible LLM endpoints.
type Client struct {
	client        *openai.Client
	endpoint      string
	model         string
	temperature   float64
	maxTokens     int
	systemMessage string
	logger        *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint      string // Base URL, e.g., "https://api.openai.com/v1"
	Model         string // Model name, e.g., "gpt-4o-mini"
	APIKey        string // Optional for local endpoints
	Temperature   float64
	MaxTokens     int
	SystemMessage string // Defaults to DefaultSystemMessage
}

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	system := cfg.SystemMessage
	if system == "" {
		system = DefaultSystemMessage
	}

	return &Client{
		client:        openai.NewClientWithConfig(clientConfig),
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		systemMessage: system,
		logger:        logger.Named("llm"),
	}, nil
}

// Complete sends one system + user message pair and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: c.systemMessage},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.String("prompt", logging.SanitizePrompt(prompt)))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return "", c.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewErrorWithContext(ErrorTypeResponse, "no choices in response", false, nil, c.model, c.endpoint, 0)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) classify(err error) error {
	llmErr := ClassifyError(err)
	llmErr.Model = c.model
	llmErr.Endpoint = c.endpoint
	return llmErr
}
