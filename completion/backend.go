package completion

import (
	"context"

	"holefill/types"
)

// Backend is a language-model service that streams a response to a chat request.
// Implemented by client/openai, client/gemini and client/compat.
type Backend interface {
	Stream(ctx context.Context, req *types.BackendRequest) (Stream, error)
}

// Stream is a finite, ordered sequence of chunks.
// Recv returns io.EOF once the backend signals end of stream.
type Stream interface {
	Recv() (types.Chunk, error)
	Close() error
}
