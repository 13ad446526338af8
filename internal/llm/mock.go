package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// MockClient implements Client for development and tests. Responses are
// served per system-instruction match, falling back to a default body.
type MockClient struct {
	mu        sync.Mutex
	model     string
	responses map[string]string // instruction substring -> content
	fallback  string
	err       error
	calls     int
}

// NewMockClient builds a mock client with a generic structured response.
func NewMockClient(model string) *MockClient {
	return &MockClient{
		model:     model,
		responses: make(map[string]string),
		fallback:  `{"note": "mock response", "mock": true}`,
	}
}

// Respond registers content to return when the request instructions
// contain the given substring.
func (m *MockClient) Respond(instructionMatch, content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[instructionMatch] = content
	return m
}

// Fallback sets the content returned when no registered match applies.
func (m *MockClient) Fallback(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = content
	return m
}

// Fail makes every subsequent call return err.
func (m *MockClient) Fail(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Calls reports how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) Model() string { return m.model }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapRequestError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("no messages in request")
	}

	content := m.fallback
	instructions := strings.ToLower(req.Instructions)
	for match, response := range m.responses {
		if match != "" && strings.Contains(instructions, strings.ToLower(match)) {
			content = response
			break
		}
	}

	return &CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage: TokenUsage{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
	}, nil
}

