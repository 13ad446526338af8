package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"dealflow/internal/agent"
	"dealflow/internal/llm"
	"dealflow/internal/logging"
)

// Orchestrator owns one runner per agent definition and composes them
// into pipelines, parallel groups, and the named business workflows.
type Orchestrator struct {
	runners map[string]*agent.Runner
	order   []string
	logger  logging.Logger
	metrics *Metrics

	mu      sync.Mutex
	history []HistoryEntry
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(logger) }
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(metrics *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// New builds an orchestrator over the given roster. All runners share the
// one generation client; definitions are injected rather than read from
// any global registry.
func New(defs []agent.Definition, client llm.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runners: make(map[string]*agent.Runner, len(defs)),
		order:   make([]string, 0, len(defs)),
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = defaultMetrics()
	}
	for _, def := range defs {
		o.runners[def.ID] = agent.NewRunner(def, client, o.logger)
		o.order = append(o.order, def.ID)
	}
	return o
}

// AgentIDs returns the roster identifiers in registration order.
func (o *Orchestrator) AgentIDs() []string {
	return append([]string(nil), o.order...)
}

// Runner exposes a runner by id, mainly for history-aware callers.
func (o *Orchestrator) Runner(agentID string) (*agent.Runner, bool) {
	runner, ok := o.runners[agentID]
	return runner, ok
}

// ExecuteAgent runs a single agent. An unknown id yields a failed result
// before any external call; every real execution is appended to the
// history log whether it succeeded or not.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, agentID string, input any, contextData map[string]any) agent.Result {
	runner, ok := o.runners[agentID]
	if !ok {
		o.logger.Warn("unknown agent requested: %s", agentID)
		return agent.Result{
			AgentID: agentID,
			Success: false,
			Error:   fmt.Sprintf("unknown agent %q", agentID),
		}
	}

	result := runner.Execute(ctx, input, contextData)
	o.record(result)
	return result
}

// PipelineResult aggregates a sequential run. FailedAt names the step
// that broke the chain when Success is false.
type PipelineResult struct {
	Success     bool
	Results     []agent.Result
	FinalOutput *llm.Output
	FailedAt    string
	Error       string
}

// ExecutePipeline runs agents strictly in order. Each step receives the
// previous step's output as input plus a context map accumulating every
// completed step's output under its role. The first failure stops the
// pipeline; completed steps are not rolled back.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, agentIDs []string, initialInput any) PipelineResult {
	contextData := make(map[string]any)
	input := initialInput
	results := make([]agent.Result, 0, len(agentIDs))

	for _, agentID := range agentIDs {
		result := o.ExecuteAgent(ctx, agentID, input, cloneContext(contextData))
		results = append(results, result)

		if !result.Success {
			o.logger.Info("pipeline stopped at %s: %s", agentID, result.Error)
			return PipelineResult{
				Success:  false,
				Results:  results,
				FailedAt: agentID,
				Error:    result.Error,
			}
		}

		value := outputValue(result.Output)
		contextData[o.roleOf(agentID)] = value
		input = value
	}

	var final *llm.Output
	if len(results) > 0 {
		final = results[len(results)-1].Output
	}
	return PipelineResult{Success: true, Results: results, FinalOutput: final}
}

// ParallelResult aggregates a fan-out run. Success is the conjunction of
// every branch; Outputs keeps each successful branch's output under its
// agent's role even when a sibling failed.
type ParallelResult struct {
	Success bool
	Results map[string]agent.Result
	Outputs map[string]*llm.Output
}

// ExecuteParallel runs all agents concurrently against the same input and
// context, then joins on all of them. There is no first-failure
// cancellation: a failed branch never interrupts its siblings.
func (o *Orchestrator) ExecuteParallel(ctx context.Context, agentIDs []string, input any, contextData map[string]any) ParallelResult {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	results := make(map[string]agent.Result, len(agentIDs))
	outputs := make(map[string]*llm.Output, len(agentIDs))

	for _, agentID := range agentIDs {
		agentID := agentID
		g.Go(func() error {
			result := o.ExecuteAgent(ctx, agentID, input, contextData)

			mu.Lock()
			defer mu.Unlock()
			results[agentID] = result
			if result.Success {
				outputs[o.roleOf(agentID)] = result.Output
			}
			// Branch failures surface through the aggregate, not the group.
			return nil
		})
	}
	_ = g.Wait()

	success := true
	for _, result := range results {
		if !result.Success {
			success = false
			break
		}
	}
	return ParallelResult{Success: success, Results: results, Outputs: outputs}
}

// roleOf maps a known agent id to its role, falling back to the id.
func (o *Orchestrator) roleOf(agentID string) string {
	if runner, ok := o.runners[agentID]; ok {
		if role := runner.Definition().Role; role != "" {
			return role
		}
	}
	return agentID
}

// outputValue flattens an extractor output for reuse as a next-step input
// or context value: the field map when parsed, the raw text otherwise.
func outputValue(output *llm.Output) any {
	if output == nil {
		return nil
	}
	if output.Parsed {
		return output.Fields
	}
	return output.Raw
}

func cloneContext(contextData map[string]any) map[string]any {
	if len(contextData) == 0 {
		return nil
	}
	clone := make(map[string]any, len(contextData))
	for k, v := range contextData {
		clone[k] = v
	}
	return clone
}
