package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/logging"
)

const anthropicEndpoint = "https://api.anthropic.com/v1"

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client        *anthropic.Client
	endpoint      string
	model         string
	temperature   float64
	maxTokens     int
	systemMessage string
	logger        *zap.Logger
}

// NewAnthropicClient creates a Messages API client. An empty or OpenAI
// endpoint in cfg selects the public Anthropic endpoint.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	var opts []anthropic.ClientOption
	if endpoint == "" || strings.Contains(endpoint, "api.openai.com") {
		endpoint = anthropicEndpoint
	} else {
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	system := cfg.SystemMessage
	if system == "" {
		system = DefaultSystemMessage
	}

	return &AnthropicClient{
		client:        anthropic.NewClient(cfg.APIKey, opts...),
		endpoint:      endpoint,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     maxTokens,
		systemMessage: system,
		logger:        logger.Named("llm"),
	}, nil
}

// Complete sends the prompt as a single user message and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.String("prompt", logging.SanitizePrompt(prompt)))

	start := time.Now()
	temperature := float32(c.temperature)

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      c.systemMessage,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		llmErr.Endpoint = c.endpoint
		return "", llmErr
	}

	c.logger.Info("LLM request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", NewErrorWithContext(ErrorTypeResponse, "no text content in response", false, nil, c.model, c.endpoint, 0)
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *AnthropicClient) Endpoint() string {
	return c.endpoint
}
