package gemini

import (
	"context"
	"fmt"
	"io"
	"iter"

	"holefill/completion"
	"holefill/types"

	"google.golang.org/genai"
)

// DefaultModel is used when neither the config nor the request names one
const DefaultModel = "gemini-2.0-flash"

var _ completion.Backend = (*Client)(nil)

// Client streams content generation from the Gemini API
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a backend from provider config
func NewClient(ctx context.Context, config *types.ProviderConfig) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.ProviderURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.ProviderURL}
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	model := config.ProviderModel
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: c, model: model}, nil
}

// Stream implements completion.Backend
func (c *Client) Stream(ctx context.Context, req *types.BackendRequest) (completion.Stream, error) {
	model := c.model
	if req.Config.Model != "" {
		model = req.Config.Model
	}

	seq := c.client.Models.GenerateContentStream(ctx, model, contents(req), generateConfig(req))
	next, stop := iter.Pull2(seq)
	return &contentStream{next: next, stop: stop}, nil
}

func contents(req *types.BackendRequest) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func generateConfig(req *types.BackendRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, "")
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	return cfg
}

type contentStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *contentStream) Recv() (types.Chunk, error) {
	res, err, valid := s.next()
	if !valid {
		return types.Chunk{}, io.EOF
	}
	if err != nil {
		return types.Chunk{}, fmt.Errorf("gemini: %w", err)
	}

	if text := res.Text(); text != "" {
		return types.Chunk{Text: text}, nil
	}
	if len(res.Candidates) > 0 && res.Candidates[0].FinishReason != "" {
		return types.Chunk{Event: string(res.Candidates[0].FinishReason)}, nil
	}
	return types.Chunk{Event: "metadata"}, nil
}

func (s *contentStream) Close() error {
	s.stop()
	return nil
}
