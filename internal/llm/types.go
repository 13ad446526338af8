package llm

import "context"

// Client represents any hosted text-generation provider.
type Client interface {
	// Complete sends instructions plus messages and returns a response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Model returns the model identifier.
	Model() string
}

// Message roles. The wire format follows the chat completions convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains all parameters for a completion call.
type CompletionRequest struct {
	Instructions string         `json:"instructions,omitempty"`
	Messages     []Message      `json:"messages"`
	Temperature  float64        `json:"temperature,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse is the provider's response.
type CompletionResponse struct {
	Content    string     `json:"content"`
	StopReason string     `json:"stop_reason"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption. Forwarded for cost reporting only;
// nothing in this layer branches on it.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config holds provider connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds, 0 means the client default
	Headers map[string]string
}
