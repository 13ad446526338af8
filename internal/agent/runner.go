package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dealflow/internal/llm"
	"dealflow/internal/logging"
)

// Result is the normalized outcome of one agent execution. Exactly one of
// Output and Error is set; Success tells which.
type Result struct {
	AgentID  string
	Success  bool
	Output   *llm.Output
	Error    string
	Duration time.Duration
	Usage    llm.TokenUsage
}

// Runner binds one Definition to a generation client and executes its
// unit of work. A runner never panics and never returns a Go error: every
// failure becomes a failed Result.
//
// The retained conversation history is private to the runner. Concurrent
// ExecuteWithHistory calls on the same runner are serialized internally,
// but interleaving turns from different logical conversations is on the
// caller.
type Runner struct {
	def    Definition
	client llm.Client
	logger logging.Logger

	mu      sync.Mutex
	history []llm.Message
}

// NewRunner builds a runner for the given definition.
func NewRunner(def Definition, client llm.Client, logger logging.Logger) *Runner {
	return &Runner{
		def:    def,
		client: client,
		logger: logging.OrNop(logger),
	}
}

// Definition returns the runner's immutable configuration.
func (r *Runner) Definition() Definition { return r.def }

// Execute runs one stateless agent call.
func (r *Runner) Execute(ctx context.Context, input any, contextData map[string]any) Result {
	message, err := buildTaskMessage(input, contextData)
	if err != nil {
		return r.failure(time.Duration(0), fmt.Sprintf("build task message: %v", err))
	}
	return r.complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: message}}, nil)
}

// ExecuteWithHistory runs one call on top of the runner's retained
// conversation. On success the user turn and the raw assistant reply are
// appended to the history; a failed call leaves the history untouched.
func (r *Runner) ExecuteWithHistory(ctx context.Context, input any, contextData map[string]any) Result {
	message, err := buildTaskMessage(input, contextData)
	if err != nil {
		return r.failure(time.Duration(0), fmt.Sprintf("build task message: %v", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	turn := llm.Message{Role: llm.RoleUser, Content: message}
	messages := make([]llm.Message, 0, len(r.history)+1)
	messages = append(messages, r.history...)
	messages = append(messages, turn)

	return r.complete(ctx, messages, func(raw string) {
		r.history = append(r.history, turn, llm.Message{Role: llm.RoleAssistant, Content: raw})
	})
}

// History returns a copy of the retained conversation.
func (r *Runner) History() []llm.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Message(nil), r.history...)
}

// ResetHistory clears the retained conversation.
func (r *Runner) ResetHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// complete issues the generation call and normalizes the outcome. onSuccess
// runs before returning when the call succeeded, with the raw reply text.
func (r *Runner) complete(ctx context.Context, messages []llm.Message, onSuccess func(raw string)) Result {
	start := time.Now()

	resp, err := r.client.Complete(ctx, llm.CompletionRequest{
		Instructions: r.def.Instructions,
		Messages:     messages,
		Temperature:  r.def.Temperature,
		MaxTokens:    r.def.MaxOutputTokens,
	})
	duration := time.Since(start)

	if err != nil {
		r.logger.Debug("agent %s failed after %s: %v", r.def.ID, duration, err)
		return r.failure(duration, err.Error())
	}

	output := llm.Extract(resp.Content)
	if onSuccess != nil {
		onSuccess(resp.Content)
	}

	preview := messages[len(messages)-1].Content
	if len(preview) > 120 {
		preview = preview[:117] + "..."
	}
	r.logger.Debug("agent %s done in %s, %d prompt + %d completion tokens, parsed=%t, input: %s",
		r.def.ID, duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, output.Parsed, preview)

	return Result{
		AgentID:  r.def.ID,
		Success:  true,
		Output:   output,
		Duration: duration,
		Usage:    resp.Usage,
	}
}

func (r *Runner) failure(duration time.Duration, message string) Result {
	return Result{
		AgentID:  r.def.ID,
		Success:  false,
		Error:    message,
		Duration: duration,
	}
}

// buildTaskMessage assembles the text payload sent as the user turn. A
// non-empty context map is serialized into its own delimited block ahead
// of the task; string inputs pass through unserialized.
func buildTaskMessage(input any, contextData map[string]any) (string, error) {
	task, err := serializeBlock(input)
	if err != nil {
		return "", fmt.Errorf("serialize input: %w", err)
	}

	if len(contextData) == 0 {
		return "## Task\n" + task, nil
	}

	ctxBlock, err := json.MarshalIndent(contextData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize context: %w", err)
	}
	return "## Context\n" + string(ctxBlock) + "\n\n## Task\n" + task, nil
}

func serializeBlock(input any) (string, error) {
	if s, ok := input.(string); ok {
		return s, nil
	}
	encoded, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
