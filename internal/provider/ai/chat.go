package ai

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// OpenAIChat streams completions from an OpenAI-compatible chat endpoint.
type OpenAIChat struct {
	client *openai.Client
	model  string
}

// NewOpenAIChat builds a streaming chat client. baseURL may be empty for the
// public API or point at a compatible gateway.
func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIChat{client: openai.NewClientWithConfig(cfg), model: model}
}

// Stream requests a completion and forwards content deltas on the returned
// token channel. The channel closes when the model finishes or ctx is
// cancelled; a terminal failure is delivered on the error channel.
func (c *OpenAIChat) Stream(ctx context.Context, system string, history []Turn, user string) (<-chan string, <-chan error) {
	tokens := make(chan string)
	errs := make(chan error, 1)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	go func() {
		defer close(tokens)
		defer close(errs)

		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			errs <- fmt.Errorf("create chat stream: %w", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// Cancellation is the caller's own signal, not a failure.
				if ctx.Err() != nil {
					return
				}
				errs <- fmt.Errorf("chat stream: %w", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case tokens <- delta:
			case <-ctx.Done():
				return
			}
		}
	}()

	return tokens, errs
}
