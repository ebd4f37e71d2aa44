package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"holefill/completion"
	"holefill/types"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is used when neither the config nor the request names one
const DefaultModel = openai.GPT4Dot1Mini

var _ completion.Backend = (*Client)(nil)

// Client streams chat completions from the OpenAI API
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a backend from provider config. An empty URL uses the
// public OpenAI endpoint.
func NewClient(config *types.ProviderConfig) *Client {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.ProviderURL != "" {
		cfg.BaseURL = config.ProviderURL
	}

	model := config.ProviderModel
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Stream implements completion.Backend
func (c *Client) Stream(ctx context.Context, req *types.BackendRequest) (completion.Stream, error) {
	s, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return &chatStream{stream: s}, nil
}

func (c *Client) buildRequest(req *types.BackendRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == types.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	model := c.model
	if req.Config.Model != "" {
		model = req.Config.Model
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (types.Chunk, error) {
	res, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return types.Chunk{}, io.EOF
	}
	if err != nil {
		return types.Chunk{}, fmt.Errorf("openai: %w", err)
	}

	if len(res.Choices) == 0 {
		return types.Chunk{Event: "usage"}, nil
	}
	choice := res.Choices[0]
	if choice.Delta.Content == "" && choice.FinishReason != "" {
		return types.Chunk{Event: string(choice.FinishReason)}, nil
	}
	if choice.Delta.Content == "" {
		return types.Chunk{Event: "delta"}, nil
	}
	return types.Chunk{Text: choice.Delta.Content}, nil
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}
