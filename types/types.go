package types

// CursorLocation identifies a point in the text source (0-indexed line, 0-indexed byte column)
type CursorLocation struct {
	Line      int
	Character int
}

// Range is a half-open span between two cursor locations
type Range struct {
	Start CursorLocation
	End   CursorLocation
}

// IsEmpty reports whether the range is zero-width
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// InputFingerprint identifies the cursor state a completion was requested for.
// Two fingerprints are equal iff all fields match exactly.
type InputFingerprint struct {
	Line       int
	Character  int
	LinePrefix string
}

// CompletionRequest is built fresh for every backend round trip
type CompletionRequest struct {
	Prompt       string
	MaxTokens    int
	Temperature  float64
	CursorOffset int
	Backend      BackendConfig
}

// BackendConfig is passed through to the backend untouched
type BackendConfig struct {
	Provider ProviderType
	Model    string
}

// CompletionResult is a single completion produced by a round trip
type CompletionResult struct {
	Text   string
	Detail string
}

// Suggestion is what the host editor inserts: text at a zero-width range at the cursor
type Suggestion struct {
	InsertText string
	Range      Range
}

// MessageRole is the author of a backend message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat message sent to a backend
type Message struct {
	Role    MessageRole
	Content string
}

// BackendRequest is what a Completion Backend receives
type BackendRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	Config       BackendConfig
}

// Chunk is one element of a backend stream. A chunk with a non-empty Event
// is a typed event (role marker, finish reason, usage) and carries no text.
type Chunk struct {
	Text  string
	Event string
}

// IsText reports whether the chunk contributes to the accumulated response
func (c Chunk) IsText() bool {
	return c.Event == ""
}

// ProviderType represents the type of backend
type ProviderType string

const (
	ProviderTypeOpenAI ProviderType = "openai"
	ProviderTypeGemini ProviderType = "gemini"
	ProviderTypeCompat ProviderType = "compat"
)

// ProviderConfig holds configuration for backends
type ProviderConfig struct {
	ProviderURL         string  // Base URL of the provider server (empty = vendor default)
	APIKey              string  // Resolved API key for authenticated requests
	ProviderModel       string  // Model name
	ProviderTemperature float64 // Sampling temperature
	ProviderMaxTokens   int     // Max tokens to generate
	CompressRequests    bool    // Brotli-compress request bodies (compat only)
	CompletionTimeout   int     // Timeout for HTTP requests in milliseconds (0 = none)
}
