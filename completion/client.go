package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"holefill/logger"
	"holefill/prompt"
	"holefill/types"
)

// Result details
const (
	DetailCompletion = "holefill"
	DetailError      = "holefill: error"
)

// Client performs one backend round trip per Complete call
type Client struct {
	Backend Backend
}

// NewClient creates a completion client over a backend
func NewClient(backend Backend) *Client {
	return &Client{Backend: backend}
}

// Complete sends the rendered prompt, drains the stream and extracts the
// delimited completion. Backend failures become a single empty result with
// an error detail. A cancelled context yields no results.
func (c *Client) Complete(ctx context.Context, req *types.CompletionRequest) []*types.CompletionResult {
	defer logger.Trace("completion.Complete")()

	if ctx.Err() != nil {
		return nil
	}

	text, err := c.roundTrip(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("completion: cancelled: %v", err)
			return nil
		}
		logger.Warn("completion: backend failed: %v", err)
		return []*types.CompletionResult{{Text: "", Detail: DetailError}}
	}

	logger.Debug("completion: response (%d chars): %q", len(text), text)

	return []*types.CompletionResult{{
		Text:   Extract(text),
		Detail: DetailCompletion,
	}}
}

func (c *Client) roundTrip(ctx context.Context, req *types.CompletionRequest) (text string, err error) {
	// A panicking backend is a failed request
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	stream, err := c.Backend.Stream(ctx, &types.BackendRequest{
		SystemPrompt: prompt.SystemInstruction,
		Messages:     []types.Message{{Role: types.RoleUser, Content: req.Prompt}},
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		Config:       req.Backend,
	})
	if err != nil {
		return "", fmt.Errorf("failed to open stream: %w", err)
	}
	defer stream.Close()

	return drain(ctx, stream)
}

// drain concatenates text chunks in delivery order until end of stream
func drain(ctx context.Context, stream Stream) (string, error) {
	var textBuilder strings.Builder
	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return textBuilder.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("stream: %w", err)
		}
		if chunk.IsText() {
			textBuilder.WriteString(chunk.Text)
		}
	}
}

// Extract returns the text between the first open tag and the first close
// tag after it, or "" when either is missing.
func Extract(response string) string {
	start := strings.Index(response, prompt.CompletionOpenTag)
	if start < 0 {
		return ""
	}
	start += len(prompt.CompletionOpenTag)

	end := strings.Index(response[start:], prompt.CompletionCloseTag)
	if end < 0 {
		return ""
	}
	return response[start : start+end]
}
