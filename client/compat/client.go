package compat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"holefill/completion"
	"holefill/logger"
	"holefill/types"

	"github.com/andybalholm/brotli"
)

// ChatPath is appended to the provider URL
const ChatPath = "/v1/chat/completions"

var _ completion.Backend = (*Client)(nil)

// ChatRequest matches the OpenAI Chat Completions API format
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatMessage is a single message in a ChatRequest
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk represents a single SSE chunk from a streaming response
type StreamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client is an OpenAI-compatible streaming chat client for self-hosted
// servers (llama.cpp, vLLM, Ollama)
type Client struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
	Model      string
	Compress   bool
}

// NewClient creates a client from provider config
func NewClient(config *types.ProviderConfig) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: time.Duration(config.CompletionTimeout) * time.Millisecond,
		},
		URL:      strings.TrimRight(config.ProviderURL, "/"),
		APIKey:   config.APIKey,
		Model:    config.ProviderModel,
		Compress: config.CompressRequests,
	}
}

// Stream implements completion.Backend
func (c *Client) Stream(ctx context.Context, req *types.BackendRequest) (completion.Stream, error) {
	defer logger.Trace("compat.Stream")()

	body, err := c.encode(c.buildRequest(req))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.URL+ChatPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.Compress {
		httpReq.Header.Set("Content-Encoding", "br")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	return &sseStream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

func (c *Client) buildRequest(req *types.BackendRequest) *ChatRequest {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	model := c.Model
	if req.Config.Model != "" {
		model = req.Config.Model
	}

	return &ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
}

// encode marshals the request without HTML escaping, brotli-compressed when enabled
func (c *Client) encode(req *ChatRequest) (io.Reader, error) {
	var reqBodyBuf bytes.Buffer
	encoder := json.NewEncoder(&reqBodyBuf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if !c.Compress {
		return &reqBodyBuf, nil
	}

	// Quality 1 for speed
	var compressedBuf bytes.Buffer
	brotliWriter := brotli.NewWriterLevel(&compressedBuf, 1)
	if _, err := brotliWriter.Write(reqBodyBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}
	if err := brotliWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return &compressedBuf, nil
}

// sseStream reads one SSE data line per Recv
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (types.Chunk, error) {
	for !s.done && s.scanner.Scan() {
		line := s.scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if line == "data: [DONE]" {
			s.done = true
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			return types.Chunk{}, fmt.Errorf("malformed chunk: %w", err)
		}
		if chunk.Error != nil {
			return types.Chunk{}, fmt.Errorf("server error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			return types.Chunk{Event: "empty"}, nil
		}

		choice := chunk.Choices[0]
		switch {
		case choice.Delta.Content != "":
			return types.Chunk{Text: choice.Delta.Content}, nil
		case choice.FinishReason != "":
			return types.Chunk{Event: choice.FinishReason}, nil
		default:
			return types.Chunk{Event: "delta"}, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return types.Chunk{}, fmt.Errorf("scanner error: %w", err)
	}
	return types.Chunk{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
