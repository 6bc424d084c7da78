package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/usecase/chat"
)

// CompletionConfig holds the completion provider settings.
type CompletionConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// CompletionClient drives chat completions with tool support on an
// OpenAI-compatible API. Calls go through a circuit breaker so a flapping
// provider fails fast instead of stacking up blocked turns.
type CompletionClient struct {
	client      *openai.Client
	model       string
	temperature float32
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

// NewCompletionClient creates the completion client. The breaker opens after
// three consecutive failures and probes again after 30 seconds.
func NewCompletionClient(cfg *CompletionConfig) *CompletionClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completion",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("completion breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &CompletionClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		breaker:     breaker,
		logger:      logger,
	}
}

// Complete implements chat.CompletionClient.
func (c *CompletionClient) Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolDefinition) (chat.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toAPIMessages(messages),
		Tools:       toAPITools(tools),
		Temperature: c.temperature,
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return chat.Completion{}, fmt.Errorf("completion breaker open: %w", domain.ErrCompletionUnavailable)
		}
		return chat.Completion{}, fmt.Errorf("completion request: %v: %w", err, domain.ErrCompletionUnavailable)
	}

	resp := result.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return chat.Completion{}, fmt.Errorf("empty completion response: %w", domain.ErrCompletionUnavailable)
	}

	choice := resp.Choices[0].Message
	out := chat.Completion{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// BreakerState reports the breaker state for health reporting.
func (c *CompletionClient) BreakerState() string {
	return c.breaker.State().String()
}

func toAPIMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toAPITools(tools []chat.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
