package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/llm"
)

func scoutDef() Definition {
	for _, def := range DefaultRoster() {
		if def.ID == AgentScout {
			return def
		}
	}
	panic("scout missing from roster")
}

func TestExecuteSuccess(t *testing.T) {
	mock := llm.NewMockClient("mock").Fallback(`{"score": 65, "signals": ["owner retiring"]}`)
	runner := NewRunner(scoutDef(), mock, nil)

	result := runner.Execute(context.Background(), map[string]any{"name": "Acme"}, nil)

	require.True(t, result.Success)
	assert.Equal(t, AgentScout, result.AgentID)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Output)
	require.True(t, result.Output.Parsed)

	score, ok := result.Output.Number("score")
	require.True(t, ok)
	assert.Equal(t, 65.0, score)
	assert.Equal(t, 150, result.Usage.TotalTokens)
}

func TestExecuteClientFailure(t *testing.T) {
	mock := llm.NewMockClient("mock").Fail(errors.New("provider down"))
	runner := NewRunner(scoutDef(), mock, nil)

	result := runner.Execute(context.Background(), "task", nil)

	require.False(t, result.Success)
	assert.Nil(t, result.Output)
	assert.Contains(t, result.Error, "provider down")
}

func TestExecuteUnparseableOutputStillSucceeds(t *testing.T) {
	mock := llm.NewMockClient("mock").Fallback("plain prose, no structure")
	runner := NewRunner(scoutDef(), mock, nil)

	result := runner.Execute(context.Background(), "task", nil)

	require.True(t, result.Success)
	require.NotNil(t, result.Output)
	assert.False(t, result.Output.Parsed)
	assert.Equal(t, "plain prose, no structure", result.Output.Raw)
}

func TestExecuteWithHistoryAppendsTurns(t *testing.T) {
	mock := llm.NewMockClient("mock").Fallback(`{"ack": true}`)
	runner := NewRunner(scoutDef(), mock, nil)

	first := runner.ExecuteWithHistory(context.Background(), "first task", nil)
	require.True(t, first.Success)

	history := runner.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Contains(t, history[0].Content, "first task")
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, `{"ack": true}`, history[1].Content)

	second := runner.ExecuteWithHistory(context.Background(), "second task", nil)
	require.True(t, second.Success)
	assert.Len(t, runner.History(), 4)

	runner.ResetHistory()
	assert.Empty(t, runner.History())
}

func TestExecuteWithHistoryFailureLeavesHistoryUntouched(t *testing.T) {
	mock := llm.NewMockClient("mock").Fallback(`{}`)
	runner := NewRunner(scoutDef(), mock, nil)

	require.True(t, runner.ExecuteWithHistory(context.Background(), "setup", nil).Success)
	require.Len(t, runner.History(), 2)

	mock.Fail(errors.New("boom"))
	result := runner.ExecuteWithHistory(context.Background(), "doomed", nil)

	require.False(t, result.Success)
	assert.Len(t, runner.History(), 2, "failed turn must not be retained")
}

func TestBuildTaskMessage(t *testing.T) {
	message, err := buildTaskMessage("inspect the books", nil)
	require.NoError(t, err)
	assert.Equal(t, "## Task\ninspect the books", message)

	message, err = buildTaskMessage(map[string]any{"name": "Acme"}, map[string]any{"thesis": "roll-up"})
	require.NoError(t, err)
	assert.Contains(t, message, "## Context")
	assert.Contains(t, message, `"thesis": "roll-up"`)
	assert.Contains(t, message, "## Task")
	assert.Contains(t, message, `"name": "Acme"`)
}

func TestBuildTaskMessageUnserializableInput(t *testing.T) {
	runner := NewRunner(scoutDef(), llm.NewMockClient("mock"), nil)

	result := runner.Execute(context.Background(), make(chan int), nil)

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "serialize input")
}
